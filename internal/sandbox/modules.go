package sandbox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// stripGlobals removes the capabilities a restricted bot chunk must not
// reach: real filesystem/process access and metatable introspection
// (spec.md §4.4: "No eval/exec/process-spawn/filesystem-beyond-workspace
// capabilities").
func stripGlobals(L *lua.LState) {
	for _, name := range disallowedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// installRequire replaces the global require() with one that resolves
// only the exact allowlisted module names (spec.md §4.4), returning
// Go-backed tables; anything else raises IMPORT_DENIED from within Lua.
func installRequire(L *lua.LState, e *Engine) {
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !allowedImports[name] {
			L.RaiseError("IMPORT_DENIED: import of '%s' is not allowed", name)
			return 0
		}
		L.Push(moduleTable(L, e, name))
		return 1
	}))
}

// moduleTable returns the Go-backed stand-in for an allowlisted module.
// A handful of modules that matter for bot logic (json, random, hashlib,
// hmac, secrets, base64, requests) get real implementations; the rest
// get an empty table, sufficient for a bot chunk that merely imports
// them without exercising library-specific behavior.
func moduleTable(L *lua.LState, e *Engine, name string) *lua.LTable {
	switch name {
	case "json":
		return jsonModule(L)
	case "random":
		return randomModule(L)
	case "hashlib":
		return hashlibModule(L)
	case "hmac":
		return hmacModule(L)
	case "secrets":
		return secretsModule(L)
	case "base64":
		return base64Module(L)
	case "requests":
		return requestsModule(L, e)
	default:
		return L.NewTable()
	}
}

func jsonModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("dumps", L.NewFunction(func(L *lua.LState) int {
		v := fromLua(L.Get(1))
		data, err := json.Marshal(v)
		if err != nil {
			L.RaiseError("json.dumps: %v", err)
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	}))
	t.RawSetString("loads", L.NewFunction(func(L *lua.LState) int {
		var v any
		if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
			L.RaiseError("json.loads: %v", err)
			return 0
		}
		L.Push(toLua(L, v))
		return 1
	}))
	return t
}

func randomModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("randint", L.NewFunction(func(L *lua.LState) int {
		lo := int64(L.CheckNumber(1))
		hi := int64(L.CheckNumber(2))
		if hi < lo {
			lo, hi = hi, lo
		}
		span := big.NewInt(hi - lo + 1)
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			L.RaiseError("random.randint: %v", err)
			return 0
		}
		L.Push(lua.LNumber(lo + n.Int64()))
		return 1
	}))
	return t
}

func hashlibModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("sha256", L.NewFunction(func(L *lua.LState) int {
		sum := sha256.Sum256([]byte(L.CheckString(1)))
		L.Push(lua.LString(hex.EncodeToString(sum[:])))
		return 1
	}))
	return t
}

func hmacModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("sha256", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		msg := L.CheckString(2)
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(msg))
		L.Push(lua.LString(hex.EncodeToString(mac.Sum(nil))))
		return 1
	}))
	return t
}

func secretsModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("token_hex", L.NewFunction(func(L *lua.LState) int {
		n := 16
		if L.GetTop() >= 1 {
			n = int(L.CheckNumber(1))
		}
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			L.RaiseError("secrets.token_hex: %v", err)
			return 0
		}
		L.Push(lua.LString(hex.EncodeToString(buf)))
		return 1
	}))
	return t
}

func base64Module(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("b64encode", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(L.CheckString(1)))))
		return 1
	}))
	t.RawSetString("b64decode", L.NewFunction(func(L *lua.LState) int {
		data, err := base64.StdEncoding.DecodeString(L.CheckString(1))
		if err != nil {
			L.RaiseError("base64.b64decode: %v", err)
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	}))
	return t
}

// requestsModule issues real outbound GET requests, bounded by the
// engine's shared rate limiter so a misbehaving bot cannot flood egress
// (SPEC_FULL.md §6.3).
func requestsModule(L *lua.LState, e *Engine) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		url := L.CheckString(1)
		ctx := L.Context()
		if err := e.egress.Wait(ctx); err != nil {
			L.RaiseError("requests.get: rate limited: %v", err)
			return 0
		}
		client := &http.Client{Timeout: 3 * time.Second}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			L.RaiseError("requests.get: %v", err)
			return 0
		}
		resp, err := client.Do(req)
		if err != nil {
			L.RaiseError("requests.get: %v", err)
			return 0
		}
		defer resp.Body.Close()
		result := L.NewTable()
		result.RawSetString("status_code", lua.LNumber(resp.StatusCode))
		L.Push(result)
		return 1
	}))
	return t
}

// installContextGlobal injects the "ctx" global exposing post/get_state/
// set_state to bot code (spec.md §3 Context).
func installContextGlobal(L *lua.LState, bctx interface {
	Post(kind string, body map[string]any) (int64, time.Time, error)
	GetState() map[string]any
	SetState(state map[string]any)
}) {
	t := L.NewTable()
	t.RawSetString("post", L.NewFunction(func(L *lua.LState) int {
		kind := L.CheckString(1)
		body, _ := fromLua(L.CheckTable(2)).(map[string]any)
		msgID, _, err := bctx.Post(kind, body)
		if err != nil {
			L.RaiseError("ctx.post: %v", err)
			return 0
		}
		L.Push(lua.LNumber(msgID))
		return 1
	}))
	t.RawSetString("get_state", L.NewFunction(func(L *lua.LState) int {
		L.Push(toLua(L, bctx.GetState()))
		return 1
	}))
	t.RawSetString("set_state", L.NewFunction(func(L *lua.LState) int {
		state, _ := fromLua(L.CheckTable(1)).(map[string]any)
		bctx.SetState(state)
		return 0
	}))
	L.SetGlobal("ctx", t)
}

// toLua converts a plain Go value (as produced by encoding/json
// unmarshaling or map[string]any literals) into an LValue.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// fromLua converts an LValue back into a plain Go value.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Treat as an array if every key is a contiguous 1-based int,
		// otherwise as a map.
		maxN := val.Len()
		isArray := maxN > 0
		m := map[string]any{}
		arr := make([]any, 0, maxN)
		val.ForEach(func(key, item lua.LValue) {
			if n, ok := key.(lua.LNumber); ok && isArray {
				idx := int(n)
				if idx >= 1 && idx <= maxN {
					arr = append(arr, fromLua(item))
					return
				}
			}
			isArray = false
			m[fmt.Sprintf("%v", key)] = fromLua(item)
		})
		if isArray {
			return arr
		}
		return m
	default:
		return nil
	}
}
