package botmanager_test

import (
	"context"
	"testing"

	"github.com/memohai/memoh/internal/botapi"
	"github.com/memohai/memoh/internal/botmanager"
	"github.com/memohai/memoh/internal/botregistry"
	"github.com/memohai/memoh/internal/channelstore"
	"github.com/memohai/memoh/internal/sandbox"
	"github.com/memohai/memoh/internal/workspace"
)

type fakeClass struct {
	calls []string
}

var _ botapi.Class = (*fakeClass)(nil)

func (f *fakeClass) RunHook(_ context.Context, hook string, bctx botapi.Context, _ any) error {
	f.calls = append(f.calls, hook)
	if hook == "on_message" {
		_, _, err := bctx.Post("echo", map[string]any{"text": "ok"})
		return err
	}
	return nil
}

func newTestManager(t *testing.T) (*botmanager.Manager, *channelstore.Store, *fakeClass) {
	t.Helper()
	store := channelstore.New()
	reg := botregistry.New()
	fc := &fakeClass{}
	if err := reg.Register("echo", fc); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine := sandbox.NewEngine(0, 0, 0)
	alloc, err := workspace.NewAllocator(t.TempDir())
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	return botmanager.New(store, engine, reg, alloc), store, fc
}

func TestAttachBotBindsSlotAndAnnounces(t *testing.T) {
	mgr, store, _ := newTestManager(t)

	channelID, invites, _, err := store.CreateChannel("room", []string{"invite:p1"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, _, _, err = store.JoinChannel(invites[0].Code, "sess-p1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	inst, err := mgr.AttachBot(context.Background(), channelID, botmanager.BotDefinition{
		Name: "echo", CodeRef: "builtin://echo",
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if inst.BotID != "bot_echo_1" {
		t.Fatalf("bot id = %q, want bot_echo_1", inst.BotID)
	}

	view, err := store.GetChannelInfo(channelID, "sess-p1")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	var found bool
	for _, s := range view.Slots {
		if s.FilledBy == "bot:echo" && s.Admin {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a bot-filled admin slot, got %+v", view.Slots)
	}

	msgs, _, _, err := store.SyncMessages(context.Background(), channelID, "sess-p1", 0, 0)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var sawAttach bool
	for _, m := range msgs {
		if botID, _ := m.Body["bot_id"].(string); botID == "bot_echo_1" {
			sawAttach = true
		}
	}
	if !sawAttach {
		t.Fatalf("expected a bot:attach system message naming bot_echo_1, got %+v", msgs)
	}
}

func TestDispatchMessageInvokesAttachedBot(t *testing.T) {
	mgr, store, fc := newTestManager(t)

	channelID, invites, _, err := store.CreateChannel("room", []string{"invite:p1"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, _, _, err := store.JoinChannel(invites[0].Code, "sess-p1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := mgr.AttachBot(context.Background(), channelID, botmanager.BotDefinition{
		Name: "echo", CodeRef: "builtin://echo",
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	msgID, _, err := store.PostMessage(channelID, "sess-p1", channelstore.MessageUser, map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	mgr.DispatchMessage(context.Background(), channelID, "sess-p1", channelstore.MessageUser, map[string]any{"text": "hi"})

	msgs, _, _, err := store.SyncMessages(context.Background(), channelID, "sess-p1", msgID, 0)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var sawEcho bool
	for _, m := range msgs {
		if m.Sender == "bot:bot_echo_1" && m.Kind == channelstore.MessageBot {
			sawEcho = true
		}
	}
	if !sawEcho {
		t.Fatalf("expected an echoed bot message, got %+v", msgs)
	}

	foundOnMessage := false
	for _, call := range fc.calls {
		if call == "on_message" {
			foundOnMessage = true
		}
	}
	if !foundOnMessage {
		t.Fatalf("expected on_message to have been invoked, calls=%v", fc.calls)
	}
}

func TestGetBotCodeRequiresMembership(t *testing.T) {
	mgr, store, _ := newTestManager(t)

	channelID, invites, _, err := store.CreateChannel("room", []string{"invite:p1"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, _, _, err := store.JoinChannel(invites[0].Code, "sess-p1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	inst, err := mgr.AttachBot(context.Background(), channelID, botmanager.BotDefinition{
		Name: "echo", CodeRef: "builtin://echo",
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := mgr.GetBotCode(channelID, inst.BotID, "outsider"); err != channelstore.ErrNotMember {
		t.Fatalf("expected ErrNotMember for outsider, got %v", err)
	}

	code, err := mgr.GetBotCode(channelID, inst.BotID, "sess-p1")
	if err != nil {
		t.Fatalf("get bot code: %v", err)
	}
	if code.CodeRef != "builtin://echo" {
		t.Fatalf("code_ref = %q, want builtin://echo", code.CodeRef)
	}
	if code.CodeHash == "" {
		t.Fatalf("expected non-empty code hash")
	}
}
