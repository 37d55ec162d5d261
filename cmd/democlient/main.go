// Package main is a terminal demo client for the Memoh channel engine: it
// joins a channel via an invite or rejoin code and then loops
// post_message/sync_messages through a small bubbletea TUI. Grounded on
// memohai-Memoh/cmd/cli/main.go's flag/config wiring, replacing its
// single-agent chat loop with a multi-party channel transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/memohai/memoh/internal/democlient"
	"github.com/memohai/memoh/internal/version"
)

func main() {
	apiURL := flag.String("api-url", "http://127.0.0.1:8080", "Tool Facade HTTP base URL")
	invite := flag.String("invite", "", "invite or rejoin code")
	sessionID := flag.String("session-id", "", "session id (random uuid if empty)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("memoh democlient %s\n", version.GetInfo())
		return
	}
	if *invite == "" {
		fmt.Fprintln(os.Stderr, "usage: democlient -invite <code> [-api-url url] [-session-id id]")
		os.Exit(1)
	}

	sid := *sessionID
	if sid == "" {
		sid = uuid.NewString()
	}

	client := democlient.New(*apiURL, sid, *timeout)
	ctx := context.Background()

	joined, err := client.JoinChannel(ctx, *invite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "join failed: %v\n", err)
		os.Exit(1)
	}
	channelID, _ := joined["channel_id"].(string)
	if channelID == "" {
		fmt.Fprintln(os.Stderr, "join succeeded but no channel_id in response")
		os.Exit(1)
	}

	model := democlient.NewModel(ctx, client, channelID)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}
