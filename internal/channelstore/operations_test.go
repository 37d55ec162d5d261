package channelstore

import "testing"

func newTestChannel() *Channel {
	return &Channel{
		ID:           "chn_test",
		Name:         "room",
		attachedBots: map[string]bool{},
		Slots: []*Slot{
			{ID: "slot_1", Kind: SlotInvite, Label: "a"},
		},
	}
}

func TestOperationApplierSetBotReturnsAttachRequest(t *testing.T) {
	c := newTestChannel()
	a := &OperationApplier{channel: c}

	req, err := a.apply(Op{Type: "set_bot", SlotID: "slot_1", Bot: &BotOpDef{Name: "ref"}})
	if err != nil {
		t.Fatalf("apply set_bot: %v", err)
	}
	if req == nil || req.Bot.Name != "ref" {
		t.Fatalf("expected bot attach request for 'ref', got %+v", req)
	}
	slot := c.findSlot("slot_1")
	if slot.FilledBy != "bot:ref" || !slot.Admin {
		t.Fatalf("slot not bound as expected: %+v", slot)
	}
}

func TestOperationApplierRemoveBotClearsAdmin(t *testing.T) {
	c := newTestChannel()
	c.Slots[0].Kind = SlotBot
	c.Slots[0].FilledBy = "bot:ref"
	c.Slots[0].Admin = true
	a := &OperationApplier{channel: c}

	if _, err := a.apply(Op{Type: "remove_bot", SlotID: "slot_1"}); err != nil {
		t.Fatalf("apply remove_bot: %v", err)
	}
	slot := c.findSlot("slot_1")
	if slot.FilledBy != "" || slot.Admin {
		t.Fatalf("expected slot cleared, got %+v", slot)
	}
}

func TestOperationApplierYieldSlot(t *testing.T) {
	c := newTestChannel()
	c.Slots[0].FilledBy = "session-a"
	a := &OperationApplier{channel: c}

	if _, err := a.apply(Op{Type: "yield_slot", SlotID: "slot_1", To: SlotBot}); err != nil {
		t.Fatalf("apply yield_slot: %v", err)
	}
	slot := c.findSlot("slot_1")
	if slot.Kind != SlotBot || slot.FilledBy != "" || !slot.Admin {
		t.Fatalf("unexpected slot after yield: %+v", slot)
	}
}

func TestOperationApplierRename(t *testing.T) {
	c := newTestChannel()
	a := &OperationApplier{channel: c}

	if _, err := a.apply(Op{Type: "rename", Name: "new-name"}); err != nil {
		t.Fatalf("apply rename: %v", err)
	}
	if c.Name != "new-name" {
		t.Fatalf("expected rename applied, got %q", c.Name)
	}
}

func TestOperationApplierSetAdmin(t *testing.T) {
	c := newTestChannel()
	a := &OperationApplier{channel: c}

	if _, err := a.apply(Op{Type: "set_admin", SlotID: "slot_1", Admin: true}); err != nil {
		t.Fatalf("apply set_admin: %v", err)
	}
	if !c.findSlot("slot_1").Admin {
		t.Fatalf("expected slot_1 admin=true")
	}
}

func TestOperationApplierUnknownOp(t *testing.T) {
	c := newTestChannel()
	a := &OperationApplier{channel: c}

	_, err := a.apply(Op{Type: "nonsense"})
	if err == nil {
		t.Fatalf("expected BAD_OP error")
	}
}

func TestOperationApplierSlotNotFound(t *testing.T) {
	c := newTestChannel()
	a := &OperationApplier{channel: c}

	_, err := a.apply(Op{Type: "rename", Name: "x"})
	if err != nil {
		t.Fatalf("rename does not need a slot: %v", err)
	}
	if _, err := a.apply(Op{Type: "set_admin", SlotID: "missing", Admin: true}); err != ErrSlotNotFound {
		t.Fatalf("expected SLOT_NOT_FOUND, got %v", err)
	}
}
