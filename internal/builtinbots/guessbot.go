// Package builtinbots holds the compiled-in Go bot plugins reachable via
// "builtin://<name>" (spec.md §4.3 step 1, design note §9 option a).
// GuessBot reimplements original_source/bots/guess_bot.py's commit-reveal
// number-guessing game.
package builtinbots

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/memohai/memoh/internal/botapi"
	"github.com/memohai/memoh/internal/ids"
)

// GuessBotName is the registry name for "builtin://guess".
const GuessBotName = "guess"

// GuessBot is stateless Go-side; every hook call re-derives its working
// state from the persisted Context state, mirroring the Lua sandbox's
// re-execute-the-chunk-per-call contract (SPEC_FULL.md §6.4) so both
// backends honor the same idempotent-constructor rule.
type GuessBot struct{}

var _ botapi.Class = GuessBot{}

type guessState struct {
	Low       int      `json:"low"`
	High      int      `json:"high"`
	Target    int      `json:"target"`
	Nonce     string   `json:"nonce"`
	Commit    string   `json:"commit"`
	Players   []string `json:"players"`
	Turn      int      `json:"turn"`
	Started   bool      `json:"started"`
	Finished  bool      `json:"finished"`
}

func loadState(bctx botapi.Context) guessState {
	raw := bctx.GetState()
	var s guessState
	data, _ := json.Marshal(raw)
	_ = json.Unmarshal(data, &s)
	return s
}

func saveState(bctx botapi.Context, s guessState) {
	data, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	bctx.SetState(m)
}

func commitHash(nonce string, target int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", nonce, target)))
	return hex.EncodeToString(sum[:])
}

// RunHook dispatches on_init / on_join / on_message.
func (GuessBot) RunHook(_ context.Context, hook string, bctx botapi.Context, arg any) error {
	switch hook {
	case "on_init":
		return onInit(bctx, arg)
	case "on_join":
		return onJoin(bctx, arg)
	case "on_message":
		return onMessage(bctx, arg)
	default:
		return nil
	}
}

func onInit(bctx botapi.Context, arg any) error {
	params, _ := arg.(map[string]any)
	low, high := 1, 100
	if r, ok := params["range"].([]any); ok && len(r) == 2 {
		if v, ok := toInt(r[0]); ok {
			low = v
		}
		if v, ok := toInt(r[1]); ok {
			high = v
		}
	}
	target := low
	if v, ok := toInt(params["target"]); ok {
		target = v
	}
	nonce := ids.NewRejoinToken()[:16]

	s := guessState{
		Low: low, High: high, Target: target, Nonce: nonce,
		Commit: commitHash(nonce, target),
	}
	saveState(bctx, s)

	if _, _, err := bctx.Post("prompt", map[string]any{
		"type": "prompt",
		"text": fmt.Sprintf("Guess a number between %d and %d.", low, high),
		"low":  low, "high": high,
	}); err != nil {
		return err
	}
	_, _, err := bctx.Post("bot:commit", map[string]any{
		"type": "bot:commit", "commit": s.Commit,
	})
	return err
}

func onJoin(bctx botapi.Context, arg any) error {
	sessionID, _ := arg.(string)
	s := loadState(bctx)
	if s.Started || sessionID == "" {
		return nil
	}
	for _, p := range s.Players {
		if p == sessionID {
			return nil
		}
	}
	s.Players = append(s.Players, sessionID)
	if len(s.Players) >= 2 {
		s.Started = true
		s.Turn = 0
		saveState(bctx, s)
		if _, _, err := bctx.Post("system", map[string]any{"type": "game_start", "players": s.Players}); err != nil {
			return err
		}
		_, _, err := bctx.Post("bot:turn", map[string]any{"type": "bot:turn", "player": s.Players[s.Turn]})
		return err
	}
	saveState(bctx, s)
	return nil
}

func onMessage(bctx botapi.Context, arg any) error {
	body, _ := arg.(map[string]any)
	sender, _ := body["sender"].(string)
	s := loadState(bctx)

	if s.Finished {
		return nil
	}
	if !s.Started {
		_, _, err := bctx.Post("violation", map[string]any{"code": "GAME_NOT_STARTED"})
		return err
	}
	if len(s.Players) <= s.Turn || sender != s.Players[s.Turn] {
		_, _, err := bctx.Post("violation", map[string]any{"code": "BAD_TURN"})
		return err
	}

	msgType, _ := body["type"].(string)
	action, _ := body["action"].(string)
	value, hasValue := toInt(body["value"])
	if msgType != "move" || action != "guess" || !hasValue {
		_, _, err := bctx.Post("violation", map[string]any{"code": "BAD_MOVE"})
		return err
	}

	if value == s.Target {
		if _, _, err := bctx.Post("judge", map[string]any{"result": "correct"}); err != nil {
			return err
		}
		s.Finished = true
		saveState(bctx, s)
		if _, _, err := bctx.Post("bot:reveal", map[string]any{
			"nonce": s.Nonce, "target": s.Target,
			"verified": commitHash(s.Nonce, s.Target) == s.Commit,
		}); err != nil {
			return err
		}
		_, _, err := bctx.Post("bot:game_end", map[string]any{"winner": sender})
		return err
	}

	hint := "higher"
	if value > s.Target {
		hint = "lower"
	}
	if _, _, err := bctx.Post("judge", map[string]any{"result": "incorrect", "hint": hint}); err != nil {
		return err
	}
	s.Turn = (s.Turn + 1) % len(s.Players)
	saveState(bctx, s)
	_, _, err := bctx.Post("bot:turn", map[string]any{"type": "bot:turn", "player": s.Players[s.Turn]})
	return err
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
