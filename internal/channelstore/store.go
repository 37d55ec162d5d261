package channelstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memohai/memoh/internal/dispatcher"
	"github.com/memohai/memoh/internal/ids"
)

// BotSpec names a bot declared at channel-creation time; it carries only
// enough to label a slot and announce the bot — actual compilation and
// attachment is BotManager's job, invoked by the caller (the Tool
// Facade's Executor in internal/toolfacade) once CreateChannel returns.
type BotSpec struct {
	Name string
}

// Store is the process-wide channel table: the process-level lock
// guards the channel, invite and rejoin-token tables (mirroring the
// teacher's internal/channel.Manager single mu sync.Mutex over shared
// maps); each *Channel additionally has its own lock for its slots,
// message log and bot attachment set. Message ids are derived from the
// length of a channel's log under that channel's lock.
type Store struct {
	mu       sync.Mutex
	channels map[string]*Channel
	invites  map[string]*Invite
	tokens   map[string]*RejoinToken

	chanMu map[string]*sync.RWMutex

	dispatch *dispatcher.Hub
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		channels: map[string]*Channel{},
		invites:  map[string]*Invite{},
		tokens:   map[string]*RejoinToken{},
		chanMu:   map[string]*sync.RWMutex{},
		dispatch: dispatcher.NewHub(),
	}
}

func (s *Store) lockFor(channelID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chanMu[channelID]
	if !ok {
		l = &sync.RWMutex{}
		s.chanMu[channelID] = l
	}
	return l
}

func (s *Store) channel(channelID string) (*Channel, error) {
	s.mu.Lock()
	c, ok := s.channels[channelID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrChannelNotFound
	}
	return c, nil
}

// CreateChannel creates a channel from ordered "kind:label" slot specs
// and optional bot declarations, appending a bots_announced system
// message when any bots were declared.
func (s *Store) CreateChannel(name string, slotSpecs []string, bots []BotSpec) (channelID string, invites []Invite, view View, err error) {
	c := &Channel{
		ID:           ids.NewChannelID(),
		Name:         name,
		CreatedAt:    time.Now().UTC(),
		attachedBots: map[string]bool{},
	}

	var issuedInvites []Invite
	for _, spec := range slotSpecs {
		kind, label, perr := parseSlotSpec(spec)
		if perr != nil {
			return "", nil, View{}, perr
		}
		slot := &Slot{
			ID:    c.nextSlot(),
			Kind:  kind,
			Label: label,
			Admin: kind == SlotBot,
		}
		c.Slots = append(c.Slots, slot)
		if kind == SlotInvite {
			inv := Invite{
				Code:      ids.NewInviteCode(),
				ChannelID: c.ID,
				SlotID:    slot.ID,
			}
			issuedInvites = append(issuedInvites, inv)
		}
	}

	s.mu.Lock()
	s.channels[c.ID] = c
	for i := range issuedInvites {
		stored := issuedInvites[i]
		s.invites[stored.Code] = &stored
	}
	s.mu.Unlock()

	if len(bots) > 0 {
		names := make([]any, 0, len(bots))
		for _, b := range bots {
			names = append(names, b.Name)
		}
		s.appendSystem(c, "bots_announced", map[string]any{"type": "bots_announced", "bots": names})
	}

	return c.ID, issuedInvites, c.view(), nil
}

func parseSlotSpec(spec string) (SlotKind, string, error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			kind := SlotKind(spec[:i])
			label := spec[i+1:]
			if kind != SlotBot && kind != SlotInvite {
				return "", "", fmt.Errorf("%w: unknown slot kind %q", ErrInvalidRequest, kind)
			}
			return kind, label, nil
		}
	}
	return "", "", fmt.Errorf("%w: malformed slot spec %q", ErrInvalidRequest, spec)
}

func (c *Channel) nextSlot() string {
	c.nextSlotSeq++
	return fmt.Sprintf("slot_%d", c.nextSlotSeq)
}

// appendSystem appends a system message, bypassing the membership check
// that gates transport-originated posts (spec.md §4.1: "System messages
// bypass the member check via an internal entry point not exposed on
// the transport"). A body without a "type" key gets msgType as its type.
// Caller must hold no channel lock; appendSystem takes it itself.
func (s *Store) appendSystem(c *Channel, msgType string, body map[string]any) *Message {
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["type"]; !ok {
		body["type"] = msgType
	}
	lock := s.lockFor(c.ID)
	lock.Lock()
	msg := &Message{
		ChannelID: c.ID,
		Sender:    "system",
		Kind:      MessageSystem,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
	msg.ID = int64(len(c.Messages)) + 1
	c.Messages = append(c.Messages, msg)
	lock.Unlock()
	s.dispatch.Notify(c.ID)
	return msg
}

// PostSystemMessage is the internal entry point used by OperationApplier
// and BotManager to append system/control messages without a membership
// check.
func (s *Store) PostSystemMessage(channelID, msgType string, body map[string]any) (*Message, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return nil, err
	}
	return s.appendSystem(c, msgType, body), nil
}

// PostMessage appends sender's message to channel's log, enforcing the
// membership rule, and notifies the Dispatcher.
func (s *Store) PostMessage(channelID, sender string, kind MessageKind, body map[string]any) (msgID int64, ts time.Time, err error) {
	c, err := s.channel(channelID)
	if err != nil {
		return 0, time.Time{}, err
	}
	lock := s.lockFor(channelID)
	lock.Lock()
	if !c.isMember(sender) {
		lock.Unlock()
		return 0, time.Time{}, ErrNotMember
	}
	msg := &Message{
		ChannelID: channelID,
		Sender:    sender,
		Kind:      kind,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
	msg.ID = int64(len(c.Messages)) + 1
	c.Messages = append(c.Messages, msg)
	lock.Unlock()
	s.dispatch.Notify(channelID)
	return msg.ID, msg.Timestamp, nil
}

// JoinChannel binds session to the slot named by an invite code or
// rejoin token, minting a fresh rejoin token on success.
func (s *Store) JoinChannel(inviteOrRejoin, sessionID string) (channelID, slotID, rejoinToken string, view View, err error) {
	s.mu.Lock()
	inv, isInvite := s.invites[inviteOrRejoin]
	tok, isToken := s.tokens[inviteOrRejoin]
	consumedByOther := isInvite && inv.Consumed && inv.ConsumedBy != sessionID
	s.mu.Unlock()
	if consumedByOther {
		return "", "", "", View{}, ErrInviteInvalid
	}

	var targetChannel, targetSlot string
	switch {
	case isInvite:
		targetChannel, targetSlot = inv.ChannelID, inv.SlotID
	case isToken:
		targetChannel, targetSlot = tok.ChannelID, tok.SlotID
	default:
		return "", "", "", View{}, ErrInviteInvalid
	}

	c, err := s.channel(targetChannel)
	if err != nil {
		return "", "", "", View{}, ErrInviteInvalid
	}

	lock := s.lockFor(targetChannel)
	lock.Lock()
	slot := c.findSlot(targetSlot)
	if slot == nil {
		lock.Unlock()
		return "", "", "", View{}, ErrInviteInvalid
	}
	if slot.FilledBy != "" && slot.FilledBy != sessionID {
		lock.Unlock()
		return "", "", "", View{}, ErrSlotAlreadyFilled
	}
	alreadyBound := slot.FilledBy == sessionID
	slot.FilledBy = sessionID
	v := c.view()
	lock.Unlock()

	if isInvite && !alreadyBound {
		s.mu.Lock()
		inv.Consumed = true
		inv.ConsumedBy = sessionID
		s.mu.Unlock()
	}

	newToken := ids.NewRejoinToken()
	s.mu.Lock()
	s.tokens[newToken] = &RejoinToken{Token: newToken, ChannelID: targetChannel, SlotID: targetSlot}
	s.mu.Unlock()

	return targetChannel, targetSlot, newToken, v, nil
}

// SyncMessages implements the long-poll watermark read described in
// spec.md §4.5. includeView follows the conservative rule codified in
// SPEC_FULL.md §13.2: include the view whenever the reply carries zero
// new messages.
func (s *Store) SyncMessages(ctx context.Context, channelID, sessionID string, cursor int64, timeout time.Duration) (messages []*Message, newCursor int64, view *View, err error) {
	c, err := s.channel(channelID)
	if err != nil {
		return nil, cursor, nil, err
	}
	lock := s.lockFor(channelID)

	checkMember := func() error {
		lock.RLock()
		ok := c.isMember(sessionID)
		lock.RUnlock()
		if !ok {
			return ErrNotMember
		}
		return nil
	}
	if err := checkMember(); err != nil {
		return nil, cursor, nil, err
	}

	read := func() ([]*Message, int64) {
		lock.RLock()
		defer lock.RUnlock()
		var fresh []*Message
		max := cursor
		for _, m := range c.Messages {
			if m.ID > cursor {
				fresh = append(fresh, m)
				if m.ID > max {
					max = m.ID
				}
			}
		}
		return fresh, max
	}

	if timeout <= 0 {
		fresh, max := read()
		v := c.view()
		if len(fresh) == 0 {
			return fresh, max, &v, nil
		}
		return fresh, max, nil, nil
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var fresh []*Message
	var max int64
	s.dispatch.Wait(deadline, channelID, func() bool {
		fresh, max = read()
		return len(fresh) > 0
	})

	v := c.view()
	if len(fresh) == 0 {
		return fresh, max, &v, nil
	}
	return fresh, max, nil, nil
}

// UpdateChannel applies admin ops atomically and returns any bot
// attachments the caller (the Tool Facade's Executor) must carry out as
// a consequence of a set_bot op.
func (s *Store) UpdateChannel(channelID, sessionID string, ops []Op) (ok bool, view View, attachments []BotAttachRequest, err error) {
	c, err := s.channel(channelID)
	if err != nil {
		return false, View{}, nil, err
	}
	lock := s.lockFor(channelID)
	lock.Lock()
	defer lock.Unlock()

	if !c.isAdmin(sessionID) {
		return false, View{}, nil, ErrNotAdmin
	}

	applier := &OperationApplier{channel: c}
	for _, op := range ops {
		req, applyErr := applier.apply(op)
		if applyErr != nil {
			return false, c.view(), nil, applyErr
		}
		if req != nil {
			attachments = append(attachments, *req)
		}
		s.appendSystemLocked(c, op.Type+"_applied", opRecord(op))
	}
	return true, c.view(), attachments, nil
}

// appendSystemLocked appends while the caller already holds the
// channel's write lock (used from within UpdateChannel).
func (s *Store) appendSystemLocked(c *Channel, msgType string, body map[string]any) {
	msg := &Message{
		ChannelID: c.ID,
		Sender:    "system",
		Kind:      MessageSystem,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
	msg.ID = int64(len(c.Messages)) + 1
	c.Messages = append(c.Messages, msg)
	s.dispatch.Notify(c.ID)
}

// NextUnattachedBotSlot returns the first bot-kind slot with no current
// occupant, appending a fresh one if none exists — step 3 of
// spec.md §4.3's attach_bot procedure.
func (s *Store) NextUnattachedBotSlot(channelID, label string) (slotID string, err error) {
	c, err := s.channel(channelID)
	if err != nil {
		return "", err
	}
	lock := s.lockFor(channelID)
	lock.Lock()
	defer lock.Unlock()
	for _, slot := range c.Slots {
		if slot.Kind == SlotBot && slot.FilledBy == "" {
			return slot.ID, nil
		}
	}
	slot := &Slot{ID: c.nextSlot(), Kind: SlotBot, Label: label, Admin: true}
	c.Slots = append(c.Slots, slot)
	return slot.ID, nil
}

// BindBotSlot finalizes attachment: sets the slot's filled_by to
// "bot:"+name and records botID in the channel's attached-bot set used
// by the membership rule.
func (s *Store) BindBotSlot(channelID, slotID, name, botID string) error {
	c, err := s.channel(channelID)
	if err != nil {
		return err
	}
	lock := s.lockFor(channelID)
	lock.Lock()
	defer lock.Unlock()
	slot := c.findSlot(slotID)
	if slot == nil {
		return ErrSlotNotFound
	}
	slot.FilledBy = "bot:" + name
	slot.Admin = true
	c.attachedBots[botID] = true
	return nil
}

// DeregisterBotAttachment removes botID from the channel's attached set
// (used by BotManager.DetachBot after a remove_bot / yield_slot op).
func (s *Store) DeregisterBotAttachment(channelID, botID string) {
	c, err := s.channel(channelID)
	if err != nil {
		return
	}
	lock := s.lockFor(channelID)
	lock.Lock()
	delete(c.attachedBots, botID)
	lock.Unlock()
}

// GetChannelInfo returns a channel's view for get_channel_info.
func (s *Store) GetChannelInfo(channelID, sessionID string) (View, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return View{}, err
	}
	lock := s.lockFor(channelID)
	lock.RLock()
	defer lock.RUnlock()
	if !c.isMember(sessionID) {
		return View{}, ErrNotMember
	}
	return c.view(), nil
}

// ChannelSummary is one row of list_channels.
type ChannelSummary struct {
	ChannelID    string    `json:"channel_id"`
	Name         string    `json:"name"`
	SlotCount    int       `json:"slot_count"`
	MessageCount int       `json:"message_count"`
	BotCount     int       `json:"bot_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListChannels returns a summary row per channel (supplemented from
// original_source/multiplayer_server.py's list_channels debug endpoint).
func (s *Store) ListChannels() (rows []ChannelSummary, total int) {
	s.mu.Lock()
	all := make([]*Channel, 0, len(s.channels))
	for _, c := range s.channels {
		all = append(all, c)
	}
	s.mu.Unlock()

	for _, c := range all {
		lock := s.lockFor(c.ID)
		lock.RLock()
		rows = append(rows, ChannelSummary{
			ChannelID:    c.ID,
			Name:         c.Name,
			SlotCount:    len(c.Slots),
			MessageCount: len(c.Messages),
			BotCount:     len(c.attachedBots),
			CreatedAt:    c.CreatedAt,
		})
		lock.RUnlock()
	}
	return rows, len(rows)
}

// DestroyChannel removes a channel with its invites and rejoin tokens,
// waking any blocked sync_messages waiters (supplemented lifecycle
// operation; see SPEC_FULL.md §6.1 — not on the external operations
// table). Nothing in this module calls it; once a channel is gone, the
// Janitor's sweep notices through ChannelExists and reclaims its bots.
func (s *Store) DestroyChannel(channelID string) {
	s.mu.Lock()
	delete(s.channels, channelID)
	delete(s.chanMu, channelID)
	for code, inv := range s.invites {
		if inv.ChannelID == channelID {
			delete(s.invites, code)
		}
	}
	for tok, rt := range s.tokens {
		if rt.ChannelID == channelID {
			delete(s.tokens, tok)
		}
	}
	s.mu.Unlock()
	s.dispatch.Drop(channelID)
}

// ChannelExists reports whether channelID is still live — used by the
// Janitor to decide which bot workspaces are now orphaned.
func (s *Store) ChannelExists(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[channelID]
	return ok
}

// IsMember reports whether principal (a session id or "bot:"+bot_id) is a
// member of channelID, per the membership rule in spec.md §4.1. Used by
// BotManager and the Tool Facade to gate get_bot_code and similar reads
// that channelstore itself does not perform.
func (s *Store) IsMember(channelID, principal string) (bool, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return false, err
	}
	lock := s.lockFor(channelID)
	lock.RLock()
	defer lock.RUnlock()
	return c.isMember(principal), nil
}

// ChannelBotSlots returns a copy of every bot-kind slot in the channel,
// in slot order. No other package calls it; BotManager picks slots
// through NextUnattachedBotSlot.
func (s *Store) ChannelBotSlots(channelID string) ([]Slot, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return nil, err
	}
	lock := s.lockFor(channelID)
	lock.RLock()
	defer lock.RUnlock()
	var out []Slot
	for _, slot := range c.Slots {
		if slot.Kind == SlotBot {
			out = append(out, *slot)
		}
	}
	return out, nil
}
