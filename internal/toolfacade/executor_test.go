package toolfacade_test

import (
	"context"
	"testing"

	"github.com/memohai/memoh/internal/botmanager"
	"github.com/memohai/memoh/internal/botregistry"
	"github.com/memohai/memoh/internal/builtinbots"
	"github.com/memohai/memoh/internal/channelstore"
	"github.com/memohai/memoh/internal/hashing"
	"github.com/memohai/memoh/internal/sandbox"
	"github.com/memohai/memoh/internal/toolfacade"
	"github.com/memohai/memoh/internal/workspace"
)

func newTestExecutor(t *testing.T) *toolfacade.Executor {
	t.Helper()
	store := channelstore.New()
	reg := botregistry.New()
	if err := reg.Register(builtinbots.GuessBotName, builtinbots.GuessBot{}); err != nil {
		t.Fatalf("register guessbot: %v", err)
	}
	engine := sandbox.NewEngine(0, 0, 0)
	alloc, err := workspace.NewAllocator(t.TempDir())
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	mgr := botmanager.New(store, engine, reg, alloc)
	return toolfacade.NewExecutor(store, mgr)
}

// TestTwoPlayerSimpleExchange reproduces SPEC_FULL.md §10 scenario 1:
// two humans join a channel and exchange messages.
func TestTwoPlayerSimpleExchange(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()
	anon := toolfacade.ToolSessionContext{}

	created, cerr := exec.CreateChannel(ctx, anon, map[string]any{
		"name":  "room",
		"slots": []any{"invite:p1", "invite:p2"},
	})
	if cerr != nil {
		t.Fatalf("create_channel: %v", cerr)
	}
	channelID := created["channel_id"].(string)
	invites := created["invites"].([]map[string]any)
	if len(invites) != 2 {
		t.Fatalf("expected 2 invites, got %d", len(invites))
	}

	p1 := toolfacade.ToolSessionContext{SessionID: "sess-p1"}
	p2 := toolfacade.ToolSessionContext{SessionID: "sess-p2"}

	if _, jerr := exec.JoinChannel(ctx, p1, map[string]any{"invite_code": invites[0]["code"]}); jerr != nil {
		t.Fatalf("join p1: %v", jerr)
	}
	if _, jerr := exec.JoinChannel(ctx, p2, map[string]any{"invite_code": invites[1]["code"]}); jerr != nil {
		t.Fatalf("join p2: %v", jerr)
	}

	if _, perr := exec.PostMessage(ctx, p1, map[string]any{
		"channel_id": channelID, "body": map[string]any{"text": "hello"},
	}); perr != nil {
		t.Fatalf("post p1: %v", perr)
	}

	result, serr := exec.SyncMessages(ctx, p2, map[string]any{
		"channel_id": channelID, "cursor": int64(0), "timeout_ms": int64(0),
	})
	if serr != nil {
		t.Fatalf("sync p2: %v", serr)
	}
	messages := result["messages"].([]map[string]any)
	var sawHello bool
	for _, m := range messages {
		body, _ := m["body"].(map[string]any)
		if body != nil && body["text"] == "hello" {
			sawHello = true
		}
	}
	if !sawHello {
		t.Fatalf("expected p2 to observe p1's message, got %+v", messages)
	}

	if _, perr := exec.PostMessage(ctx, p2, map[string]any{
		"channel_id": channelID, "body": map[string]any{"text": "hi back"},
	}); perr != nil {
		t.Fatalf("post p2: %v", perr)
	}
}

// TestTransparencyVerification reproduces SPEC_FULL.md §10 scenario 3:
// a member retrieves a bot's code and independently recomputes its code
// hash from the returned code_ref.
func TestTransparencyVerification(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()
	anon := toolfacade.ToolSessionContext{}

	created, cerr := exec.CreateChannel(ctx, anon, map[string]any{
		"name":  "room",
		"slots": []any{"invite:p1"},
		"bots": []any{map[string]any{
			"name": "guess", "code_ref": "builtin://guess",
			"params": map[string]any{"range": []any{1, 10}, "target": 4},
		}},
	})
	if cerr != nil {
		t.Fatalf("create_channel: %v", cerr)
	}
	channelID := created["channel_id"].(string)
	invites := created["invites"].([]map[string]any)

	p1 := toolfacade.ToolSessionContext{SessionID: "sess-p1"}
	if _, jerr := exec.JoinChannel(ctx, p1, map[string]any{"invite_code": invites[0]["code"]}); jerr != nil {
		t.Fatalf("join: %v", jerr)
	}

	info, ierr := exec.GetChannelInfo(ctx, p1, map[string]any{"channel_id": channelID})
	if ierr != nil {
		t.Fatalf("get_channel_info: %v", ierr)
	}
	bots := info["bots"].([]botmanager.Summary)
	if len(bots) != 1 {
		t.Fatalf("expected 1 attached bot, got %d", len(bots))
	}

	code, gerr := exec.GetBotCode(ctx, p1, map[string]any{
		"channel_id": channelID, "bot_id": bots[0].BotID,
	})
	if gerr != nil {
		t.Fatalf("get_bot_code: %v", gerr)
	}
	if code["code_ref"] != "builtin://guess" {
		t.Fatalf("code_ref = %v, want builtin://guess", code["code_ref"])
	}
	if code["code_hash"] != bots[0].CodeHash {
		t.Fatalf("code_hash mismatch: %v vs %v", code["code_hash"], bots[0].CodeHash)
	}
	if recomputed := hashing.Code(code["code_ref"].(string)); code["code_hash"] != recomputed {
		t.Fatalf("code_hash %v does not match recomputed %v", code["code_hash"], recomputed)
	}
	if code["name"] != bots[0].Name {
		t.Fatalf("name mismatch: %v vs %v", code["name"], bots[0].Name)
	}
}
