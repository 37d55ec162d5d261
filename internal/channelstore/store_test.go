package channelstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/memohai/memoh/internal/channelstore"
)

func TestCreateAndJoinChannel(t *testing.T) {
	t.Parallel()
	store := channelstore.New()

	channelID, invites, view, err := store.CreateChannel("game", []string{"invite:a", "invite:b"}, nil)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if len(invites) != 2 {
		t.Fatalf("expected 2 invites, got %d", len(invites))
	}
	if view.ChannelID != channelID {
		t.Fatalf("view channel id mismatch")
	}

	_, slotID, token, _, err := store.JoinChannel(invites[0].Code, "session-a")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if slotID != invites[0].SlotID {
		t.Fatalf("joined wrong slot")
	}
	if token == "" {
		t.Fatalf("expected a rejoin token")
	}

	// A second different session cannot reuse a consumed invite.
	if _, _, _, _, err := store.JoinChannel(invites[0].Code, "session-c"); err != channelstore.ErrInviteInvalid {
		t.Fatalf("expected INVITE_INVALID, got %v", err)
	}

	// The same session can also rebind through its rejoin token.
	if _, _, _, _, err := store.JoinChannel(token, "session-a"); err != nil {
		t.Fatalf("rejoin with token: %v", err)
	}
}

func TestPostMessageMonotonicIDsAndMembership(t *testing.T) {
	t.Parallel()
	store := channelstore.New()
	channelID, invites, _, err := store.CreateChannel("room", []string{"invite:a"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, _, _, err := store.JoinChannel(invites[0].Code, "session-a"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, _, err := store.PostMessage(channelID, "session-outsider", channelstore.MessageUser, map[string]any{"text": "hi"}); err != channelstore.ErrNotMember {
		t.Fatalf("expected NOT_MEMBER, got %v", err)
	}

	id1, _, err := store.PostMessage(channelID, "session-a", channelstore.MessageUser, map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("post 1: %v", err)
	}
	id2, _, err := store.PostMessage(channelID, "session-a", channelstore.MessageUser, map[string]any{"text": "again"})
	if err != nil {
		t.Fatalf("post 2: %v", err)
	}
	if id2 != id1+1 {
		t.Fatalf("ids not monotonic: %d then %d", id1, id2)
	}
}

func TestSyncMessagesCursorWatermark(t *testing.T) {
	t.Parallel()
	store := channelstore.New()
	channelID, invites, _, _ := store.CreateChannel("room", []string{"invite:a"}, nil)
	store.JoinChannel(invites[0].Code, "session-a")

	msgs, cursor, view, err := store.SyncMessages(context.Background(), channelID, "session-a", 0, 0)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(msgs) != 0 || cursor != 0 {
		t.Fatalf("expected empty reply at cursor 0, got %d messages cursor %d", len(msgs), cursor)
	}
	if view == nil {
		t.Fatalf("expected view on empty reply")
	}

	id, _, _ := store.PostMessage(channelID, "session-a", channelstore.MessageUser, map[string]any{"text": "hi"})

	msgs, cursor, _, err = store.SyncMessages(context.Background(), channelID, "session-a", 0, 0)
	if err != nil {
		t.Fatalf("sync after post: %v", err)
	}
	if len(msgs) != 1 || cursor != id {
		t.Fatalf("expected 1 message with cursor %d, got %d messages cursor %d", id, len(msgs), cursor)
	}

	// Repeated polling at the new cursor is idempotent.
	msgs, cursor2, _, err := store.SyncMessages(context.Background(), channelID, "session-a", cursor, 0)
	if err != nil {
		t.Fatalf("sync idempotent: %v", err)
	}
	if len(msgs) != 0 || cursor2 != cursor {
		t.Fatalf("expected unchanged watermark, got cursor %d", cursor2)
	}
}

func TestSyncMessagesLongPollWakesOnPost(t *testing.T) {
	t.Parallel()
	store := channelstore.New()
	channelID, invites, _, _ := store.CreateChannel("room", []string{"invite:a", "invite:b"}, nil)
	store.JoinChannel(invites[0].Code, "session-a")
	store.JoinChannel(invites[1].Code, "session-b")

	done := make(chan struct{})
	var gotCursor int64
	go func() {
		_, cursor, _, err := store.SyncMessages(context.Background(), channelID, "session-a", 0, 2*time.Second)
		if err != nil {
			t.Errorf("long-poll sync: %v", err)
		}
		gotCursor = cursor
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	id, _, err := store.PostMessage(channelID, "session-b", channelstore.MessageUser, map[string]any{"text": "hey"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatalf("long-poll did not wake within timeout")
	}
	if gotCursor != id {
		t.Fatalf("expected cursor %d, got %d", id, gotCursor)
	}
}

func TestUpdateChannelAdminGating(t *testing.T) {
	t.Parallel()
	store := channelstore.New()
	channelID, invites, _, _ := store.CreateChannel("room", []string{"invite:a"}, nil)
	store.JoinChannel(invites[0].Code, "session-a")

	_, _, _, err := store.UpdateChannel(channelID, "session-a", []channelstore.Op{{Type: "rename", Name: "renamed"}})
	if err != channelstore.ErrNotAdmin {
		t.Fatalf("expected NOT_ADMIN for non-admin session, got %v", err)
	}
}

