package botmanager

import (
	"time"

	"github.com/memohai/memoh/internal/botapi"
)

// BotDefinition describes a bot to attach: either a builtin "builtin://"
// code_ref or inline source, plus the manifest and init params
// (spec.md §3 BotDefinition).
type BotDefinition struct {
	Name       string
	Version    string
	CodeRef    string
	InlineCode string
	Manifest   map[string]any
	Params     map[string]any

	// SlotID, if non-empty, names the slot a prior set_bot op already
	// rebound to this bot (spec.md §4.2); AttachBot binds to it directly
	// instead of searching for the first unfilled bot-kind slot.
	SlotID string
}

// BotInstance is a live attached bot (spec.md §3 BotInstance).
type BotInstance struct {
	BotID        string
	ChannelID    string
	SlotID       string
	Name         string
	Version      string
	Source       string
	CodeRef      string
	InlineCode   string
	Manifest     map[string]any
	CodeHash     string
	ManifestHash string
	AttachedAt   time.Time

	class        botapi.Class
	workspaceDir string

	stateVersion int64
	state        map[string]any
}

// Summary is the read-only projection returned by GetChannelBots
// (spec.md §4.3: bot_id, name, version, manifest, created_at,
// state_version).
type Summary struct {
	BotID        string         `json:"bot_id"`
	Name         string         `json:"name"`
	Version      string         `json:"version,omitempty"`
	SlotID       string         `json:"slot_id"`
	Manifest     map[string]any `json:"manifest,omitempty"`
	CodeHash     string         `json:"code_hash"`
	ManifestHash string         `json:"manifest_hash,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StateVersion int64          `json:"state_version"`
}
