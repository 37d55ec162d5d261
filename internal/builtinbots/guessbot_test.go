package builtinbots_test

import (
	"context"
	"testing"
	"time"

	"github.com/memohai/memoh/internal/builtinbots"
)

// fakeContext is a minimal in-memory botapi.Context for exercising a bot
// class's hooks directly, without a channelstore or sandbox behind it.
type fakeContext struct {
	posts []post
	state map[string]any
}

type post struct {
	kind string
	body map[string]any
}

func (f *fakeContext) Post(kind string, body map[string]any) (int64, time.Time, error) {
	f.posts = append(f.posts, post{kind: kind, body: body})
	return int64(len(f.posts)), time.Now(), nil
}

func (f *fakeContext) GetState() map[string]any {
	if f.state == nil {
		return map[string]any{}
	}
	return f.state
}

func (f *fakeContext) SetState(state map[string]any) { f.state = state }

func (f *fakeContext) WorkspaceDir() string { return "" }

func (f *fakeContext) lastKind() string {
	if len(f.posts) == 0 {
		return ""
	}
	return f.posts[len(f.posts)-1].kind
}

func TestGuessBotFullRound(t *testing.T) {
	bot := builtinbots.GuessBot{}
	ctx := &fakeContext{}

	if err := bot.RunHook(context.Background(), "on_init", ctx, map[string]any{
		"range": []any{1, 10}, "target": 7,
	}); err != nil {
		t.Fatalf("on_init: %v", err)
	}
	if ctx.lastKind() != "bot:commit" {
		t.Fatalf("expected bot:commit after init, got %q", ctx.lastKind())
	}

	if err := bot.RunHook(context.Background(), "on_join", ctx, "p1"); err != nil {
		t.Fatalf("on_join p1: %v", err)
	}
	if ctx.lastKind() == "bot:turn" {
		t.Fatalf("game should not start with only one player")
	}
	if err := bot.RunHook(context.Background(), "on_join", ctx, "p2"); err != nil {
		t.Fatalf("on_join p2: %v", err)
	}
	if ctx.lastKind() != "bot:turn" {
		t.Fatalf("expected bot:turn once two players joined, got %q", ctx.lastKind())
	}

	// p2 guesses out of turn.
	if err := bot.RunHook(context.Background(), "on_message", ctx, map[string]any{
		"sender": "p2", "type": "move", "action": "guess", "value": 5,
	}); err != nil {
		t.Fatalf("on_message out-of-turn: %v", err)
	}
	if ctx.lastKind() != "violation" {
		t.Fatalf("expected a BAD_TURN violation, got %q", ctx.lastKind())
	}

	// p1 (current turn) guesses low.
	if err := bot.RunHook(context.Background(), "on_message", ctx, map[string]any{
		"sender": "p1", "type": "move", "action": "guess", "value": 3,
	}); err != nil {
		t.Fatalf("on_message guess: %v", err)
	}
	if ctx.lastKind() != "bot:turn" {
		t.Fatalf("expected turn to advance to p2, got %q", ctx.lastKind())
	}

	// p2 guesses correctly.
	if err := bot.RunHook(context.Background(), "on_message", ctx, map[string]any{
		"sender": "p2", "type": "move", "action": "guess", "value": 7,
	}); err != nil {
		t.Fatalf("on_message winning guess: %v", err)
	}
	if ctx.lastKind() != "bot:game_end" {
		t.Fatalf("expected bot:game_end, got %q", ctx.lastKind())
	}

	var sawReveal bool
	for _, p := range ctx.posts {
		if p.kind == "bot:reveal" {
			sawReveal = true
			if verified, _ := p.body["verified"].(bool); !verified {
				t.Fatalf("reveal did not verify against the earlier commit")
			}
		}
	}
	if !sawReveal {
		t.Fatalf("expected a bot:reveal message, got %+v", ctx.posts)
	}
}

func TestGuessBotRejectsMoveBeforeGameStart(t *testing.T) {
	bot := builtinbots.GuessBot{}
	ctx := &fakeContext{}
	if err := bot.RunHook(context.Background(), "on_init", ctx, map[string]any{"target": 1}); err != nil {
		t.Fatalf("on_init: %v", err)
	}
	if err := bot.RunHook(context.Background(), "on_message", ctx, map[string]any{
		"sender": "p1", "type": "move", "action": "guess", "value": 1,
	}); err != nil {
		t.Fatalf("on_message: %v", err)
	}
	if ctx.lastKind() != "violation" {
		t.Fatalf("expected GAME_NOT_STARTED violation, got %q", ctx.lastKind())
	}
}
