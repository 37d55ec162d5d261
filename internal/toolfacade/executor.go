package toolfacade

import (
	"context"
	"time"

	"github.com/memohai/memoh/internal/botmanager"
	"github.com/memohai/memoh/internal/channelstore"
)

// Executor implements every spec.md §6 operation against a ChannelStore
// and a BotManager, including the "invoke BotManager.attach_bot as a
// consequence" wiring for create_channel's bot_specs and update_channel's
// set_bot op (spec.md §4.1, §4.2).
type Executor struct {
	store   *channelstore.Store
	bots    *botmanager.Manager
	tracker channelTracker
}

// channelTracker lets the Janitor learn about newly created channels
// without toolfacade importing internal/janitor directly.
type channelTracker interface {
	Track(channelID string)
}

// NewExecutor returns an Executor wired against store and bots.
func NewExecutor(store *channelstore.Store, bots *botmanager.Manager) *Executor {
	return &Executor{store: store, bots: bots}
}

// SetTracker registers a channelTracker (typically *internal/janitor.Janitor)
// to be notified of every successfully created channel.
func (e *Executor) SetTracker(tracker channelTracker) {
	e.tracker = tracker
}

func requireSession(session ToolSessionContext) *Error {
	if session.SessionID == "" {
		return newError("NO_SESSION", "no session id presented")
	}
	return nil
}

// HealthCheck answers spec.md §6's health_check operation.
func (e *Executor) HealthCheck(context.Context, ToolSessionContext, map[string]any) (map[string]any, *Error) {
	return map[string]any{"status": "ok"}, nil
}

// botRequest is the wire shape of one bot_specs entry for create_channel,
// and of update_channel's set_bot.bot_def.
type botRequest struct {
	Name       string
	Version    string
	CodeRef    string
	InlineCode string
	Manifest   map[string]any
	Params     map[string]any
}

func parseBotRequest(raw map[string]any) botRequest {
	req := botRequest{
		Name:       FirstStringArg(raw, "name"),
		Version:    FirstStringArg(raw, "version"),
		CodeRef:    FirstStringArg(raw, "code_ref"),
		InlineCode: FirstStringArg(raw, "inline_code"),
	}
	if m, ok := raw["manifest"].(map[string]any); ok {
		req.Manifest = m
	}
	if m, ok := raw["params"].(map[string]any); ok {
		req.Params = m
	}
	return req
}

// CreateChannel implements create_channel: allocate slots, then attach
// every declared bot as a consequence (spec.md §4.1 step + §4.3).
func (e *Executor) CreateChannel(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	name := FirstStringArg(args, "name")
	slotSpecs := toStringSlice(args["slots"])

	var botSpecs []channelstore.BotSpec
	var botReqs []botRequest
	if rawBots, ok := args["bots"].([]any); ok {
		for _, rb := range rawBots {
			bm, ok := rb.(map[string]any)
			if !ok {
				continue
			}
			req := parseBotRequest(bm)
			botSpecs = append(botSpecs, channelstore.BotSpec{Name: req.Name})
			botReqs = append(botReqs, req)
		}
	}

	channelID, invites, view, err := e.store.CreateChannel(name, slotSpecs, botSpecs)
	if err != nil {
		return nil, mapErr(err)
	}
	if e.tracker != nil {
		e.tracker.Track(channelID)
	}

	for _, req := range botReqs {
		if _, attachErr := e.bots.AttachBot(ctx, channelID, botmanager.BotDefinition{
			Name: req.Name, Version: req.Version, CodeRef: req.CodeRef, InlineCode: req.InlineCode,
			Manifest: req.Manifest, Params: req.Params,
		}); attachErr != nil {
			return nil, mapErr(attachErr)
		}
	}

	return map[string]any{
		"channel_id": channelID,
		"invites":    renderInvites(invites),
		"view":       view,
	}, nil
}

// JoinChannel implements join_channel, then notifies every attached bot
// via on_join.
func (e *Executor) JoinChannel(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	inviteOrRejoin := FirstStringArg(args, "invite_code", "rejoin_token", "invite_or_rejoin")

	channelID, slotID, token, view, err := e.store.JoinChannel(inviteOrRejoin, session.SessionID)
	if err != nil {
		return nil, mapErr(err)
	}
	e.bots.DispatchJoin(ctx, channelID, session.SessionID)

	return map[string]any{
		"channel_id":   channelID,
		"slot_id":      slotID,
		"rejoin_token": token,
		"view":         view,
	}, nil
}

// PostMessage implements post_message, then fans the message out to
// every attached bot's on_message hook.
func (e *Executor) PostMessage(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	channelID := FirstStringArg(args, "channel_id")
	kindStr := FirstStringArg(args, "kind")
	if kindStr == "" {
		kindStr = string(channelstore.MessageUser)
	}
	body, _ := args["body"].(map[string]any)

	msgID, ts, err := e.store.PostMessage(channelID, session.SessionID, channelstore.MessageKind(kindStr), body)
	if err != nil {
		return nil, mapErr(err)
	}
	e.bots.DispatchMessage(ctx, channelID, session.SessionID, channelstore.MessageKind(kindStr), body)

	return map[string]any{"msg_id": msgID, "ts": ts}, nil
}

// MakeGameMove implements make_game_move: a post_message with a
// conventional {"type":"move", ...} body (spec.md §6). Turn/move
// validity is enforced by the bot itself, which answers with a
// "violation" control message rather than an RPC error (spec.md §7).
func (e *Executor) MakeGameMove(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	channelID := FirstStringArg(args, "channel_id")
	body := map[string]any{"type": "move"}
	for k, v := range args {
		if k == "channel_id" {
			continue
		}
		body[k] = v
	}

	msgID, ts, err := e.store.PostMessage(channelID, session.SessionID, channelstore.MessageUser, body)
	if err != nil {
		return nil, mapErr(err)
	}
	e.bots.DispatchMessage(ctx, channelID, session.SessionID, channelstore.MessageUser, body)

	return map[string]any{"msg_id": msgID, "ts": ts}, nil
}

// SyncMessages implements the long-poll sync_messages operation.
func (e *Executor) SyncMessages(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	channelID := FirstStringArg(args, "channel_id")
	cursor := toInt64(args["cursor"])
	timeout := time.Duration(toInt64(args["timeout_ms"])) * time.Millisecond

	messages, newCursor, view, err := e.store.SyncMessages(ctx, channelID, session.SessionID, cursor, timeout)
	if err != nil {
		return nil, mapErr(err)
	}

	out := map[string]any{
		"messages": renderMessages(messages),
		"cursor":   newCursor,
	}
	if view != nil {
		out["view"] = *view
	}
	return out, nil
}

// GetChannelInfo implements get_channel_info, including the attached bot
// roster.
func (e *Executor) GetChannelInfo(_ context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	channelID := FirstStringArg(args, "channel_id")
	view, err := e.store.GetChannelInfo(channelID, session.SessionID)
	if err != nil {
		return nil, mapErr(err)
	}
	return map[string]any{
		"view": view,
		"bots": e.bots.GetChannelBots(channelID),
	}, nil
}

// GetBotCode implements get_bot_code — available to any channel member
// (spec.md §4.6).
func (e *Executor) GetBotCode(_ context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	channelID := FirstStringArg(args, "channel_id")
	botID := FirstStringArg(args, "bot_id")

	code, err := e.bots.GetBotCode(channelID, botID, session.SessionID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := map[string]any{
		"name":      code.Name,
		"code_hash": code.CodeHash,
	}
	if code.Version != "" {
		out["version"] = code.Version
	}
	if code.CodeRef != "" {
		out["code_ref"] = code.CodeRef
	} else {
		out["inline_code"] = code.InlineCode
	}
	if code.ManifestHash != "" {
		out["manifest"] = code.Manifest
		out["manifest_hash"] = code.ManifestHash
	}
	return out, nil
}

// ListChannels implements the supplemented list_channels debug operation
// (SPEC_FULL.md §6.1, from original_source/multiplayer_server.py).
func (e *Executor) ListChannels(context.Context, ToolSessionContext, map[string]any) (map[string]any, *Error) {
	rows, total := e.store.ListChannels()
	return map[string]any{"channels": rows, "total": total}, nil
}

// UpdateChannel implements update_channel: it detaches any bot whose
// slot a remove_bot/yield_slot op cleared, then carries out any set_bot
// attachment the op application requested as a consequence.
func (e *Executor) UpdateChannel(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error) {
	if serr := requireSession(session); serr != nil {
		return nil, serr
	}
	channelID := FirstStringArg(args, "channel_id")
	ops, perr := parseOps(args["ops"])
	if perr != nil {
		return nil, perr
	}

	ok, view, attachments, err := e.store.UpdateChannel(channelID, session.SessionID, ops)
	if err != nil {
		return nil, mapErr(err)
	}
	for _, op := range ops {
		if op.Type != "remove_bot" && op.Type != "yield_slot" {
			continue
		}
		for _, b := range e.bots.GetChannelBots(channelID) {
			if b.SlotID == op.SlotID {
				e.bots.DetachBot(channelID, b.BotID)
			}
		}
	}
	for _, req := range attachments {
		if _, attachErr := e.bots.AttachBot(ctx, channelID, botmanager.BotDefinition{
			Name: req.Bot.Name, Version: req.Bot.Version, CodeRef: req.Bot.CodeRef, InlineCode: req.Bot.InlineCode,
			Manifest: req.Bot.Manifest, Params: req.Bot.Params, SlotID: req.SlotID,
		}); attachErr != nil {
			return nil, mapErr(attachErr)
		}
	}

	return map[string]any{"ok": ok, "view": view}, nil
}
