package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memohai/memoh/internal/botapi"
)

type fakePost struct {
	kind string
	body map[string]any
}

type fakeContext struct {
	posts []fakePost
	state map[string]any
	dir   string
}

func (f *fakeContext) Post(kind string, body map[string]any) (int64, time.Time, error) {
	f.posts = append(f.posts, fakePost{kind: kind, body: body})
	return int64(len(f.posts)), time.Now(), nil
}

func (f *fakeContext) GetState() map[string]any    { return f.state }
func (f *fakeContext) SetState(state map[string]any) { f.state = state }
func (f *fakeContext) WorkspaceDir() string          { return f.dir }

// TestCompileRejectsDisallowedImport reproduces SPEC_FULL.md §10 scenario
// 4: a bot declaring "import os" is rejected before it ever runs.
func TestCompileRejectsDisallowedImport(t *testing.T) {
	e := NewEngine(0, 0, 0)
	_, err := e.Compile(`local os = require("os")`, "bot")
	if !errors.Is(err, botapi.ErrImportDenied) {
		t.Fatalf("Compile error = %v, want ErrImportDenied", err)
	}
}

func TestCompileAllowsAllowlistedImport(t *testing.T) {
	e := NewEngine(0, 0, 0)
	_, err := e.Compile(`
Bot = {}
function Bot.on_init(self, params)
	local json = require("json")
end
`, "bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestCompileRejectsEscapeHatchTokens(t *testing.T) {
	e := NewEngine(0, 0, 0)
	_, err := e.Compile(`local f = loadstring("return 1")`, "bot")
	if !errors.Is(err, botapi.ErrCompileError) {
		t.Fatalf("Compile error = %v, want ErrCompileError", err)
	}
}

func TestCompileRejectsSyntaxError(t *testing.T) {
	e := NewEngine(0, 0, 0)
	_, err := e.Compile(`function ( broken`, "bot")
	if !errors.Is(err, botapi.ErrCompileError) {
		t.Fatalf("Compile error = %v, want ErrCompileError", err)
	}
}

func TestRunHookTimesOutOnBusyLoop(t *testing.T) {
	e := NewEngine(30*time.Millisecond, 0, 0)
	class, err := e.Compile(`
Bot = {}
function Bot.on_init(self, params)
	while true do end
end
`, "bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fctx := &fakeContext{state: map[string]any{}}
	start := time.Now()
	err = class.RunHook(context.Background(), "on_init", fctx, nil)
	if !errors.Is(err, botapi.ErrHookTimeout) {
		t.Fatalf("RunHook error = %v, want ErrHookTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("RunHook took %v, expected to return promptly at the deadline", elapsed)
	}
}

// TestRunHookPassesParamsAndPosts exercises the "params" global and
// ctx.post, ensuring on_init's arguments make it into the Lua state and
// that posted messages reach the Context.
func TestRunHookPassesParamsAndPosts(t *testing.T) {
	e := NewEngine(time.Second, 0, 0)
	class, err := e.Compile(`
Bot = {}
function Bot.on_init(self)
	ctx.post("prompt", {text = "target is " .. tostring(params.target)})
end
`, "bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fctx := &fakeContext{state: map[string]any{}}
	if err := class.RunHook(context.Background(), "on_init", fctx, map[string]any{"target": float64(7)}); err != nil {
		t.Fatalf("RunHook: %v", err)
	}
	if len(fctx.posts) != 1 || fctx.posts[0].kind != "prompt" {
		t.Fatalf("posts = %+v, want one prompt post", fctx.posts)
	}
	if text, _ := fctx.posts[0].body["text"].(string); text != "target is 7" {
		t.Fatalf("text = %q, want %q", text, "target is 7")
	}
}

// TestRunHookStateRoundTrip exercises ctx.get_state/ctx.set_state.
func TestRunHookStateRoundTrip(t *testing.T) {
	e := NewEngine(time.Second, 0, 0)
	class, err := e.Compile(`
Bot = {}
function Bot.on_message(self, body)
	local state = ctx.get_state()
	state.count = (state.count or 0) + 1
	ctx.set_state(state)
end
`, "bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fctx := &fakeContext{state: map[string]any{"count": float64(4)}}
	if err := class.RunHook(context.Background(), "on_message", fctx, map[string]any{}); err != nil {
		t.Fatalf("RunHook: %v", err)
	}
	if count, _ := fctx.state["count"].(float64); count != 5 {
		t.Fatalf("state[count] = %v, want 5", fctx.state["count"])
	}
}

func TestRunHookRejectsMissingBotClass(t *testing.T) {
	e := NewEngine(time.Second, 0, 0)
	class, err := e.Compile(`local unrelated = 1`, "bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	fctx := &fakeContext{state: map[string]any{}}
	err = class.RunHook(context.Background(), "on_init", fctx, nil)
	if !errors.Is(err, botapi.ErrNoBotClass) {
		t.Fatalf("RunHook error = %v, want ErrNoBotClass", err)
	}
}

// TestRunHookSkipsUndeclaredHook ensures a bot that doesn't implement a
// hook is treated as a no-op rather than an error.
func TestRunHookSkipsUndeclaredHook(t *testing.T) {
	e := NewEngine(time.Second, 0, 0)
	class, err := e.Compile(`
Bot = {}
function Bot.on_init(self) end
`, "bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	fctx := &fakeContext{state: map[string]any{}}
	if err := class.RunHook(context.Background(), "on_join", fctx, "sess-1"); err != nil {
		t.Fatalf("RunHook on_join (undeclared) = %v, want nil", err)
	}
}

func TestResolveBotClassByDeclaredName(t *testing.T) {
	e := NewEngine(time.Second, 0, 0)
	class, err := e.Compile(`
guess = {}
function guess.on_init(self) end
`, "guess")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	fctx := &fakeContext{state: map[string]any{}}
	if err := class.RunHook(context.Background(), "on_init", fctx, nil); err != nil {
		t.Fatalf("RunHook: %v", err)
	}
}
