// Package channelstore implements the in-memory channel engine: slot
// membership, the monotonic message log, invite and rejoin-token
// lifecycles, and admin operation application.
package channelstore

import "time"

// SlotKind distinguishes a human (invite-bound) seat from a bot seat.
type SlotKind string

const (
	SlotBot    SlotKind = "bot"
	SlotInvite SlotKind = "invite"
)

// MessageKind classifies a log entry.
type MessageKind string

const (
	MessageUser    MessageKind = "user"
	MessageBot     MessageKind = "bot"
	MessageSystem  MessageKind = "system"
	MessageControl MessageKind = "control"
)

// Slot is a participant seat within a channel.
type Slot struct {
	ID       string
	Kind     SlotKind
	Label    string
	FilledBy string // session id, or "bot:"+name, or "" if empty
	Admin    bool
}

// Invite is a one-time code bound to a specific (channel, slot).
type Invite struct {
	Code      string
	ChannelID string
	SlotID    string
	Consumed  bool
	// ConsumedBy records the session that redeemed the invite, so the
	// same session may idempotently re-present it.
	ConsumedBy string
}

// RejoinToken lets a disconnected session rebind the slot it held.
type RejoinToken struct {
	Token     string
	ChannelID string
	SlotID    string
}

// Message is an immutable, monotonically-id'd log entry.
type Message struct {
	ID        int64
	ChannelID string
	Sender    string
	Kind      MessageKind
	Body      map[string]any
	Timestamp time.Time
}

// Channel is the container of multiplayer state.
type Channel struct {
	ID        string
	Name      string
	CreatedAt time.Time

	Slots    []*Slot
	Messages []*Message

	// attachedBots is the set of bot ids currently attached in this
	// channel, maintained by BotManager via BindBotSlot /
	// DeregisterBotAttachment. ChannelStore needs only the id set (not
	// the bot instance) to enforce the membership rule on post_message
	// and to count bots for list_channels.
	attachedBots map[string]bool

	nextSlotSeq int64
}

// View is the externally-visible summary of a channel returned by
// create_channel, join_channel, sync_messages and get_channel_info.
type View struct {
	ChannelID string    `json:"channel_id"`
	Name      string    `json:"name"`
	Slots     []SlotView `json:"slots"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotView is the wire-facing projection of a Slot.
type SlotView struct {
	SlotID   string   `json:"slot_id"`
	Kind     SlotKind `json:"kind"`
	Label    string   `json:"label"`
	FilledBy string   `json:"filled_by,omitempty"`
	Admin    bool     `json:"admin"`
}

func (c *Channel) view() View {
	slots := make([]SlotView, 0, len(c.Slots))
	for _, s := range c.Slots {
		slots = append(slots, SlotView{
			SlotID:   s.ID,
			Kind:     s.Kind,
			Label:    s.Label,
			FilledBy: s.FilledBy,
			Admin:    s.Admin,
		})
	}
	return View{
		ChannelID: c.ID,
		Name:      c.Name,
		Slots:     slots,
		CreatedAt: c.CreatedAt,
	}
}

func (c *Channel) findSlot(slotID string) *Slot {
	for _, s := range c.Slots {
		if s.ID == slotID {
			return s
		}
	}
	return nil
}

// isMember reports whether principal (a session id or "bot:"+id) holds a
// filled slot, or (tightened per SPEC_FULL.md §13.3) is an attached bot
// whose synthesized id exactly matches the "bot:" sender.
func (c *Channel) isMember(principal string) bool {
	for _, s := range c.Slots {
		if s.FilledBy == principal {
			return true
		}
	}
	if len(principal) > 4 && principal[:4] == "bot:" {
		return c.attachedBots[principal[4:]]
	}
	return false
}

// isAdmin reports whether principal holds an admin-flagged slot.
func (c *Channel) isAdmin(principal string) bool {
	for _, s := range c.Slots {
		if s.FilledBy == principal && s.Admin {
			return true
		}
	}
	return false
}
