// Package sandbox realizes spec.md §4.4: it compiles bot source under a
// restricted capability set and runs its hooks under a per-call
// deadline. It embeds github.com/yuin/gopher-lua rather than spawning an
// OS-level sandbox, since hooks must complete within a few seconds and
// per-hook container startup cannot meet that budget (SPEC_FULL.md
// §6.4).
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/time/rate"

	"github.com/memohai/memoh/internal/botapi"
)

// Engine compiles and runs Lua bot chunks.
type Engine struct {
	hookTimeout time.Duration
	egress      *rate.Limiter
}

// NewEngine returns a sandbox engine with the given per-hook timeout and
// a shared egress rate limiter for the requests module (default 5 rps,
// burst 10, tunable via internal/config.SandboxConfig).
func NewEngine(hookTimeout time.Duration, egressRPS, egressBurst int) *Engine {
	if hookTimeout <= 0 {
		hookTimeout = botapi.DefaultHookTimeout
	}
	if egressRPS <= 0 {
		egressRPS = 5
	}
	if egressBurst <= 0 {
		egressBurst = 10
	}
	return &Engine{
		hookTimeout: hookTimeout,
		egress:      rate.NewLimiter(rate.Limit(egressRPS), egressBurst),
	}
}

// Class is a compiled, restricted Lua bot chunk.
type Class struct {
	engine       *Engine
	source       string
	declaredName string
}

var _ botapi.Class = (*Class)(nil)

// Compile statically rejects disallowed imports and syntax errors, and
// returns a Class ready to run hooks. The chunk is re-executed fresh on
// every hook call (see RunHook), so "compile" here is a pre-flight
// check, not a one-time build step.
func (e *Engine) Compile(source, declaredName string) (*Class, error) {
	if err := prescan(source); err != nil {
		return nil, err
	}
	if _, err := lua.ParseAndCompile(strings.NewReader(source), "bot.lua"); err != nil {
		return nil, fmt.Errorf("%w: %v", botapi.ErrCompileError, err)
	}
	return &Class{engine: e, source: source, declaredName: declaredName}, nil
}

// RunHook re-executes the bot chunk with ctx/params/workspace_dir
// injected as globals, then invokes the named hook on the resolved bot
// table if present.
func (c *Class) RunHook(parent context.Context, hook string, bctx botapi.Context, arg any) error {
	deadline, cancel := context.WithTimeout(parent, c.engine.hookTimeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	defer L.Close()
	L.SetContext(deadline)

	stripGlobals(L)
	installRequire(L, c.engine)
	installContextGlobal(L, bctx)
	L.SetGlobal("workspace_dir", lua.LString(bctx.WorkspaceDir()))
	params, _ := arg.(map[string]any)
	L.SetGlobal("params", toLua(L, params))

	done := make(chan error, 1)
	go func() {
		done <- L.DoString(c.source)
	}()

	select {
	case err := <-done:
		if err != nil {
			if deadline.Err() == context.DeadlineExceeded {
				return botapi.ErrHookTimeout
			}
			return fmt.Errorf("bot chunk execution failed: %w", err)
		}
	case <-deadline.Done():
		// Defense in depth for a busy loop with no Lua call/loop
		// safepoints for SetContext to interrupt at; L.Close() above
		// will eventually reclaim the goroutine's state.
		return botapi.ErrHookTimeout
	}

	class := resolveBotClass(L, c.declaredName)
	if class == nil {
		return botapi.ErrNoBotClass
	}
	fn := class.RawGetString(hook)
	fnVal, ok := fn.(*lua.LFunction)
	if !ok {
		// Hook not implemented by this bot: a no-op, not an error.
		return nil
	}

	argLua := argToLua(L, arg)
	if callErr := L.CallByParam(lua.P{Fn: fnVal, NRet: 0, Protect: true}, class, argLua); callErr != nil {
		if deadline.Err() == context.DeadlineExceeded {
			return botapi.ErrHookTimeout
		}
		return fmt.Errorf("hook %s failed: %w", hook, callErr)
	}
	return nil
}

func argToLua(L *lua.LState, arg any) lua.LValue {
	switch v := arg.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(v)
	case map[string]any:
		return toLua(L, v)
	default:
		return lua.LNil
	}
}

// resolveBotClass implements spec.md §4.4's rule: (a) a global table
// named after the declared bot name, else (b) the first capitalized,
// non-underscore-prefixed global table defined by the chunk.
func resolveBotClass(L *lua.LState, declaredName string) *lua.LTable {
	g := L.GetGlobal(declaredName)
	if t, ok := g.(*lua.LTable); ok {
		return t
	}
	capitalized := strings.ToUpper(declaredName[:1]) + declaredName[1:]
	if g := L.GetGlobal(capitalized); g != lua.LNil {
		if t, ok := g.(*lua.LTable); ok {
			return t
		}
	}

	var found *lua.LTable
	globals := L.G.Global
	globals.ForEach(func(key, value lua.LValue) {
		if found != nil {
			return
		}
		name, ok := key.(lua.LString)
		if !ok {
			return
		}
		s := string(name)
		if s == "" || s[0] < 'A' || s[0] > 'Z' || strings.HasPrefix(s, "_") {
			return
		}
		if isInjectedOrBuiltinGlobal(s) {
			return
		}
		if t, ok := value.(*lua.LTable); ok {
			found = t
		}
	})
	return found
}

func isInjectedOrBuiltinGlobal(name string) bool {
	switch name {
	case "String", "Table", "Math", "OS", "Coroutine", "Base":
		return true
	}
	return false
}
