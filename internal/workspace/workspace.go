// Package workspace allocates and reclaims the per (channel, bot)
// scoped directory exposed to bot code as the Context capability's
// workspace path (spec.md §3, §4.4, §5 "the host is responsible for
// cleanup when a bot is removed or channel destroyed").
package workspace

import (
	"os"
	"path/filepath"
)

// Allocator creates and removes bot workspace directories under a
// configured root.
type Allocator struct {
	root string
}

// NewAllocator returns an Allocator rooted at root, creating root if
// necessary.
func NewAllocator(root string) (*Allocator, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Allocator{root: root}, nil
}

// Dir returns (creating if necessary) the workspace directory for
// (channelID, botID).
func (a *Allocator) Dir(channelID, botID string) (string, error) {
	dir := filepath.Join(a.root, channelID, botID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Remove deletes the workspace directory for (channelID, botID).
func (a *Allocator) Remove(channelID, botID string) error {
	return os.RemoveAll(filepath.Join(a.root, channelID, botID))
}

// RemoveChannel deletes every workspace directory belonging to a
// destroyed channel.
func (a *Allocator) RemoveChannel(channelID string) error {
	return os.RemoveAll(filepath.Join(a.root, channelID))
}
