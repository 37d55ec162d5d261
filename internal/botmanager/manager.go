// Package botmanager implements spec.md §4.3: resolving bot code,
// attaching bots to channel slots, dispatching messages/joins into
// per-bot hooks with failure isolation, and exposing state/code to the
// rest of the system.
package botmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memohai/memoh/internal/botapi"
	"github.com/memohai/memoh/internal/botregistry"
	"github.com/memohai/memoh/internal/channelstore"
	"github.com/memohai/memoh/internal/hashing"
	"github.com/memohai/memoh/internal/ids"
	"github.com/memohai/memoh/internal/logger"
	"github.com/memohai/memoh/internal/sandbox"
	"github.com/memohai/memoh/internal/workspace"
)

// Manager ties together the channel store, the sandbox engine, the
// builtin bot registry and the workspace allocator.
type Manager struct {
	store     *channelstore.Store
	engine    *sandbox.Engine
	registry  *botregistry.Registry
	workspace *workspace.Allocator

	mu        sync.Mutex
	instances map[string]map[string]*BotInstance // channelID -> botID -> instance
	nameSeq   map[string]map[string]int          // channelID -> name -> next index
}

// New returns a Manager wired against the given collaborators.
func New(store *channelstore.Store, engine *sandbox.Engine, registry *botregistry.Registry, alloc *workspace.Allocator) *Manager {
	return &Manager{
		store:     store,
		engine:    engine,
		registry:  registry,
		workspace: alloc,
		instances: map[string]map[string]*BotInstance{},
		nameSeq:   map[string]map[string]int{},
	}
}

// AttachBot runs spec.md §4.3's six-step attach procedure: resolve code,
// assign a numbered bot id, bind the first unfilled bot slot, compute
// hashes, announce via system messages, then run on_init.
func (m *Manager) AttachBot(parent context.Context, channelID string, def BotDefinition) (*BotInstance, error) {
	class, source, err := m.resolveClass(def)
	if err != nil {
		return nil, err
	}

	botID := m.nextBotID(channelID, def.Name)

	slotID := def.SlotID
	if slotID == "" {
		slotID, err = m.store.NextUnattachedBotSlot(channelID, def.Name)
		if err != nil {
			return nil, err
		}
	}
	if err := m.store.BindBotSlot(channelID, slotID, def.Name, botID); err != nil {
		return nil, err
	}

	dir, err := m.workspace.Dir(channelID, botID)
	if err != nil {
		return nil, err
	}

	codeHash := hashing.Code(source)
	var manifestHash string
	if len(def.Manifest) > 0 {
		manifestHash, err = hashing.Manifest(def.Manifest)
		if err != nil {
			return nil, fmt.Errorf("hash manifest: %w", err)
		}
	}

	inst := &BotInstance{
		BotID: botID, ChannelID: channelID, SlotID: slotID, Name: def.Name,
		Version: def.Version, Source: source, CodeRef: def.CodeRef,
		InlineCode: def.InlineCode, Manifest: def.Manifest,
		CodeHash: codeHash, ManifestHash: manifestHash,
		AttachedAt: time.Now().UTC(), class: class, workspaceDir: dir,
		state: map[string]any{},
	}

	m.mu.Lock()
	if m.instances[channelID] == nil {
		m.instances[channelID] = map[string]*BotInstance{}
	}
	m.instances[channelID][botID] = inst
	m.mu.Unlock()

	attachBody := map[string]any{"bot_id": botID, "name": def.Name, "code_hash": codeHash}
	if def.Version != "" {
		attachBody["version"] = def.Version
	}
	if manifestHash != "" {
		attachBody["manifest_hash"] = manifestHash
	}
	if _, err := m.store.PostSystemMessage(channelID, "bot:attach", attachBody); err != nil {
		return nil, err
	}
	if len(def.Manifest) > 0 {
		if _, err := m.store.PostSystemMessage(channelID, "bot:manifest", map[string]any{
			"bot_id": botID, "manifest": def.Manifest,
		}); err != nil {
			return nil, err
		}
	}

	bctx := &botContext{manager: m, channelID: channelID, botID: botID}
	if err := m.runHook(parent, inst, "on_init", bctx, def.Params); err != nil {
		return nil, fmt.Errorf("on_init: %w", err)
	}
	return inst, nil
}

// resolveClass implements spec.md §4.3 step 1: a "builtin://" code_ref
// resolves through the registry; anything else is compiled as inline
// Lua source. The returned source is what gets hashed for transparency —
// the reference string itself for a builtin, the raw chunk for inline
// code, matching spec.md §4.6's two hashing rules.
func (m *Manager) resolveClass(def BotDefinition) (botapi.Class, string, error) {
	if name, ok := botregistry.ParseCodeRef(def.CodeRef); ok {
		class, found := m.registry.Lookup(name)
		if !found {
			return nil, "", fmt.Errorf("%w: %s", botapi.ErrNoBotClass, name)
		}
		return class, def.CodeRef, nil
	}
	if def.InlineCode != "" {
		class, err := m.engine.Compile(def.InlineCode, def.Name)
		if err != nil {
			return nil, "", err
		}
		return class, def.InlineCode, nil
	}
	return nil, "", fmt.Errorf("%w: bot %q has neither code_ref nor inline_code", botapi.ErrNoBotClass, def.Name)
}

func (m *Manager) nextBotID(channelID, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameSeq[channelID] == nil {
		m.nameSeq[channelID] = map[string]int{}
	}
	m.nameSeq[channelID][name]++
	return ids.BotID(name, m.nameSeq[channelID][name])
}

// runHook isolates a single bot's hook failure (including a Lua/Go
// panic) from the caller, per spec.md §4.3's "dispatch_message /
// dispatch_join isolate per-bot failures".
func (m *Manager) runHook(parent context.Context, inst *BotInstance, hook string, bctx botapi.Context, arg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bot %s panicked in %s: %v", inst.BotID, hook, r)
		}
	}()
	return inst.class.RunHook(parent, hook, bctx, arg)
}

// snapshotInstances copies the current bot list for channelID under
// lock, then releases it — hooks run outside any Manager lock so a
// reentrant ctx.post from within a hook cannot deadlock (spec.md §5/§9).
func (m *Manager) snapshotInstances(channelID string) []*BotInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	bots := m.instances[channelID]
	out := make([]*BotInstance, 0, len(bots))
	for _, inst := range bots {
		out = append(out, inst)
	}
	return out
}

// DispatchMessage fans a posted message out to every bot attached to
// channelID, calling on_message on each independently; a single bot's
// failure is logged and does not affect the others.
func (m *Manager) DispatchMessage(parent context.Context, channelID, sender string, kind channelstore.MessageKind, body map[string]any) {
	arg := map[string]any{"sender": sender, "kind": string(kind)}
	for k, v := range body {
		arg[k] = v
	}
	for _, inst := range m.snapshotInstances(channelID) {
		bctx := &botContext{manager: m, channelID: channelID, botID: inst.BotID}
		if err := m.runHook(parent, inst, "on_message", bctx, arg); err != nil {
			logger.Error("bot on_message failed", "bot_id", inst.BotID, "channel_id", channelID, "error", err)
		}
	}
}

// DispatchJoin notifies every bot attached to channelID that sessionID
// joined.
func (m *Manager) DispatchJoin(parent context.Context, channelID, sessionID string) {
	for _, inst := range m.snapshotInstances(channelID) {
		bctx := &botContext{manager: m, channelID: channelID, botID: inst.BotID}
		if err := m.runHook(parent, inst, "on_join", bctx, sessionID); err != nil {
			logger.Error("bot on_join failed", "bot_id", inst.BotID, "channel_id", channelID, "error", err)
		}
	}
}

// PostMessageFromBot posts as "bot:"+botID, decorating the body with the
// bot id and current state version (spec.md §4.3 post_message_from_bot).
func (m *Manager) PostMessageFromBot(channelID, botID, kind string, body map[string]any) (int64, time.Time, error) {
	m.mu.Lock()
	inst, ok := m.instances[channelID][botID]
	var version int64
	if ok {
		version = inst.stateVersion
	}
	m.mu.Unlock()
	if !ok {
		return 0, time.Time{}, channelstore.ErrBotNotFound
	}

	decorated := map[string]any{}
	for k, v := range body {
		decorated[k] = v
	}
	decorated["bot_id"] = botID
	decorated["state_version"] = version

	return m.store.PostMessage(channelID, "bot:"+botID, channelstore.MessageBot, decorated)
}

// GetBotState returns a bot's persisted state.
func (m *Manager) GetBotState(channelID, botID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[channelID][botID]
	if !ok {
		return nil, channelstore.ErrBotNotFound
	}
	out := map[string]any{}
	for k, v := range inst.state {
		out[k] = v
	}
	return out, nil
}

// SetBotState replaces a bot's persisted state and increments its
// version counter (spec.md §4.3 set_bot_state).
func (m *Manager) SetBotState(channelID, botID string, state map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[channelID][botID]
	if !ok {
		return channelstore.ErrBotNotFound
	}
	inst.state = state
	inst.stateVersion++
	return nil
}

// GetBotStateVersion returns a bot's current state version.
func (m *Manager) GetBotStateVersion(channelID, botID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[channelID][botID]
	if !ok {
		return 0, channelstore.ErrBotNotFound
	}
	return inst.stateVersion, nil
}

// GetChannelBots lists every bot attached to channelID.
func (m *Manager) GetChannelBots(channelID string) []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, 0, len(m.instances[channelID]))
	for _, inst := range m.instances[channelID] {
		out = append(out, Summary{
			BotID: inst.BotID, Name: inst.Name, Version: inst.Version,
			SlotID: inst.SlotID, Manifest: inst.Manifest,
			CodeHash: inst.CodeHash, ManifestHash: inst.ManifestHash,
			CreatedAt: inst.AttachedAt, StateVersion: inst.stateVersion,
		})
	}
	return out
}

// BotCode is the transparency-protocol projection of an attached bot's
// code and manifest (spec.md §4.6 get_bot_code): source carries either
// the resolved code_ref (builtins) or the inline Lua chunk, never both.
type BotCode struct {
	Name         string
	Version      string
	CodeRef      string
	InlineCode   string
	Manifest     map[string]any
	CodeHash     string
	ManifestHash string
}

// GetBotCode returns a bot's name, version, code (as code_ref or
// inline_code), manifest and hashes, for the transparency protocol's
// get_bot_code operation — available to any channel member (spec.md
// §4.6). A caller can recompute CodeHash from the code and ManifestHash
// from Manifest and compare both against the bot:attach/bot:manifest
// system messages posted at attach time.
func (m *Manager) GetBotCode(channelID, botID, requester string) (BotCode, error) {
	isMember, err := m.store.IsMember(channelID, requester)
	if err != nil {
		return BotCode{}, err
	}
	if !isMember {
		return BotCode{}, channelstore.ErrNotMember
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[channelID][botID]
	if !ok {
		return BotCode{}, channelstore.ErrBotNotFound
	}
	return BotCode{
		Name: inst.Name, Version: inst.Version,
		CodeRef: inst.CodeRef, InlineCode: inst.InlineCode,
		Manifest: inst.Manifest,
		CodeHash: inst.CodeHash, ManifestHash: inst.ManifestHash,
	}, nil
}

// DetachBot removes a bot instance, its attachment (and so its
// membership) and its workspace; the Tool Facade calls it after a
// remove_bot/yield_slot op on the bot's slot. It does not touch the slot
// itself — the op has already cleared filled_by.
func (m *Manager) DetachBot(channelID, botID string) {
	m.mu.Lock()
	if bots, ok := m.instances[channelID]; ok {
		delete(bots, botID)
	}
	m.mu.Unlock()
	m.store.DeregisterBotAttachment(channelID, botID)
	_ = m.workspace.Remove(channelID, botID)
}

// DestroyChannel removes every bot instance belonging to channelID and
// reclaims their workspaces (used by the Janitor).
func (m *Manager) DestroyChannel(channelID string) {
	m.mu.Lock()
	delete(m.instances, channelID)
	delete(m.nameSeq, channelID)
	m.mu.Unlock()
	_ = m.workspace.RemoveChannel(channelID)
}

func (m *Manager) workspaceDirOf(channelID, botID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[channelID][botID]
	if !ok {
		return ""
	}
	return inst.workspaceDir
}
