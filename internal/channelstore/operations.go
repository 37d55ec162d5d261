package channelstore

import "fmt"

// BotOpDef is the minimal bot reference carried by a set_bot op. It is a
// plain DTO — BotManager owns the real BotDefinition type; the Tool
// Facade's Executor builds one from these fields for each
// BotAttachRequest and passes it to BotManager.AttachBot.
type BotOpDef struct {
	Name       string
	Version    string
	CodeRef    string
	InlineCode string
	Manifest   map[string]any
	Params     map[string]any
}

// Op is one admin operation from update_channel's ops[] argument.
type Op struct {
	Type   string
	SlotID string

	// set_bot
	Bot *BotOpDef
	// yield_slot
	To SlotKind
	// rename
	Name string
	// set_admin
	Admin bool
}

// BotAttachRequest is returned from UpdateChannel when a set_bot op
// needs BotManager.AttachBot invoked as a consequence (spec.md §4.2:
// "Does not itself load/compile code; BotManager.attach_bot is invoked
// as a consequence").
type BotAttachRequest struct {
	SlotID string
	Bot    BotOpDef
}

// OperationApplier applies a single Op to a channel already locked by
// its caller (Store.UpdateChannel holds the channel write lock for the
// whole batch, per spec.md §4.2 "Applies a sequence of admin ops
// atomically in order").
type OperationApplier struct {
	channel *Channel
}

func (a *OperationApplier) apply(op Op) (*BotAttachRequest, error) {
	switch op.Type {
	case "set_bot":
		return a.setBot(op)
	case "remove_bot":
		return nil, a.removeBot(op)
	case "yield_slot":
		return nil, a.yieldSlot(op)
	case "rename":
		return nil, a.rename(op)
	case "set_admin":
		return nil, a.setAdmin(op)
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadOp, op.Type)
	}
}

func (a *OperationApplier) slot(slotID string) (*Slot, error) {
	s := a.channel.findSlot(slotID)
	if s == nil {
		return nil, ErrSlotNotFound
	}
	return s, nil
}

func (a *OperationApplier) setBot(op Op) (*BotAttachRequest, error) {
	if op.Bot == nil || op.Bot.Name == "" {
		return nil, fmt.Errorf("%w: set_bot requires a bot definition", ErrInvalidRequest)
	}
	slot, err := a.slot(op.SlotID)
	if err != nil {
		return nil, err
	}
	slot.Kind = SlotBot
	slot.FilledBy = "bot:" + op.Bot.Name
	slot.Admin = true
	return &BotAttachRequest{SlotID: slot.ID, Bot: *op.Bot}, nil
}

func (a *OperationApplier) removeBot(op Op) error {
	slot, err := a.slot(op.SlotID)
	if err != nil {
		return err
	}
	slot.FilledBy = ""
	if slot.Kind == SlotBot {
		slot.Admin = false
	}
	return nil
}

func (a *OperationApplier) yieldSlot(op Op) error {
	slot, err := a.slot(op.SlotID)
	if err != nil {
		return err
	}
	if op.To != SlotBot && op.To != SlotInvite {
		return fmt.Errorf("%w: yield_slot to %q", ErrInvalidRequest, op.To)
	}
	slot.Kind = op.To
	slot.FilledBy = ""
	slot.Admin = op.To == SlotBot
	return nil
}

func (a *OperationApplier) rename(op Op) error {
	if op.Name == "" {
		return fmt.Errorf("%w: rename requires a name", ErrInvalidRequest)
	}
	a.channel.Name = op.Name
	return nil
}

func (a *OperationApplier) setAdmin(op Op) error {
	slot, err := a.slot(op.SlotID)
	if err != nil {
		return err
	}
	slot.Admin = op.Admin
	return nil
}

// opRecord renders an Op as the body of its "<op_type>_applied" system
// message, carrying the op verbatim per spec.md §4.2.
func opRecord(op Op) map[string]any {
	body := map[string]any{
		"type":    op.Type + "_applied",
		"slot_id": op.SlotID,
	}
	switch op.Type {
	case "set_bot":
		if op.Bot != nil {
			body["bot_name"] = op.Bot.Name
		}
	case "yield_slot":
		body["to"] = string(op.To)
	case "rename":
		body["name"] = op.Name
	case "set_admin":
		body["admin"] = op.Admin
	}
	return body
}
