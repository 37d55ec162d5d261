package toolfacade

import (
	"fmt"

	"github.com/memohai/memoh/internal/channelstore"
)

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func renderInvites(invites []channelstore.Invite) []map[string]any {
	out := make([]map[string]any, 0, len(invites))
	for _, inv := range invites {
		out = append(out, map[string]any{"code": inv.Code, "slot_id": inv.SlotID})
	}
	return out
}

func renderMessages(messages []*channelstore.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"msg_id": m.ID, "sender": m.Sender, "kind": m.Kind,
			"body": m.Body, "ts": m.Timestamp,
		})
	}
	return out
}

// parseOps decodes update_channel's "ops" argument into channelstore.Op
// values; an op with an unrecognized "type" is still passed through so
// OperationApplier can raise the proper BAD_OP error (spec.md §4.2).
func parseOps(raw any) ([]channelstore.Op, *Error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, newError("INVALID_REQUEST", "ops must be a list")
	}
	out := make([]channelstore.Op, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, newError("INVALID_REQUEST", fmt.Sprintf("malformed op: %v", item))
		}
		op := channelstore.Op{
			Type:   FirstStringArg(m, "type"),
			SlotID: FirstStringArg(m, "slot_id"),
			To:     channelstore.SlotKind(FirstStringArg(m, "to")),
			Name:   FirstStringArg(m, "name"),
			Admin:  BoolArg(m, "admin", false),
		}
		if botRaw, ok := m["bot_def"].(map[string]any); ok {
			req := parseBotRequest(botRaw)
			op.Bot = &channelstore.BotOpDef{
				Name: req.Name, Version: req.Version, CodeRef: req.CodeRef, InlineCode: req.InlineCode,
				Manifest: req.Manifest, Params: req.Params,
			}
		}
		out = append(out, op)
	}
	return out, nil
}
