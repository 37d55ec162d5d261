// Package botapi defines the narrow interface shared by every bot
// execution backend — the embedded Lua sandbox and the compiled-in
// Go plugins — so BotManager can dispatch hooks uniformly regardless of
// which backend produced the bot class.
package botapi

import (
	"context"
	"errors"
	"time"
)

// Sandbox failure kinds (spec.md §7); IMPORT_DENIED and COMPILE_ERROR
// surface at attach time, HOOK_TIMEOUT and NO_BOT_CLASS can also occur
// per-hook.
var (
	ErrImportDenied = errors.New("IMPORT_DENIED")
	ErrCompileError = errors.New("COMPILE_ERROR")
	ErrHookTimeout  = errors.New("HOOK_TIMEOUT")
	ErrNoBotClass   = errors.New("NO_BOT_CLASS")
)

// Context is the capability handed to a bot at each hook invocation
// (spec.md §3 "Context"). It is ephemeral and re-created per hook call.
type Context interface {
	// Post appends a bot-originated message to the channel.
	Post(kind string, body map[string]any) (msgID int64, ts time.Time, err error)
	// GetState returns a copy of the bot's current private state.
	GetState() map[string]any
	// SetState replaces the bot's private state and increments its
	// version.
	SetState(state map[string]any)
	// WorkspaceDir is the scoped directory path unique to (channel, bot).
	WorkspaceDir() string
}

// Class is a compiled, resolved bot — either an embedded-Lua chunk or a
// compiled-in Go plugin — exposing the three hooks by name.
type Class interface {
	// RunHook invokes the named hook ("on_init", "on_join", "on_message")
	// with arg being nil, a session id string, or a message body
	// respectively. Implementations must honor ctx's deadline and
	// return ErrHookTimeout if exceeded.
	RunHook(ctx context.Context, hook string, bctx Context, arg any) error
}

// DefaultHookTimeout is the per-hook wall-clock budget absent
// configuration (spec.md §4.4).
const DefaultHookTimeout = 5 * time.Second
