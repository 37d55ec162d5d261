// Package janitor periodically reclaims the workspace directories and
// bot instances of channels that have been destroyed, supplementing
// spec.md's resource model (§5) with the scheduled-sweep lifecycle the
// original Python process left to the OS on exit. Grounded on the
// teacher's internal/schedule cron wiring idiom (cron.New +
// cron.WithParser + AddFunc), repurposed from per-bot job scheduling to
// a single fixed-interval sweep.
package janitor

import (
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/memohai/memoh/internal/botmanager"
	"github.com/memohai/memoh/internal/channelstore"
	"github.com/memohai/memoh/internal/logger"
)

// Janitor tracks every channel id created since startup and reaps the
// ones that no longer exist in the store.
type Janitor struct {
	store *channelstore.Store
	bots  *botmanager.Manager
	cron  *cron.Cron

	mu      sync.Mutex
	tracked map[string]bool
}

// New returns a Janitor wired against store and bots. It must be told
// about each created channel via Track, and started via Start.
func New(store *channelstore.Store, bots *botmanager.Manager) *Janitor {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Janitor{
		store:   store,
		bots:    bots,
		cron:    cron.New(cron.WithParser(parser)),
		tracked: map[string]bool{},
	}
}

// Track registers a channel id for future sweep consideration. Called by
// the Tool Facade after every successful create_channel.
func (j *Janitor) Track(channelID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tracked[channelID] = true
}

// Start schedules the sweep on the given cron pattern (e.g. "@every 30s")
// and starts the underlying cron scheduler.
func (j *Janitor) Start(pattern string) error {
	if _, err := j.cron.AddFunc(pattern, j.sweep); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep() {
	j.mu.Lock()
	ids := make([]string, 0, len(j.tracked))
	for id := range j.tracked {
		ids = append(ids, id)
	}
	j.mu.Unlock()

	for _, id := range ids {
		if j.store.ChannelExists(id) {
			continue
		}
		j.bots.DestroyChannel(id)
		j.mu.Lock()
		delete(j.tracked, id)
		j.mu.Unlock()
		logger.Info("janitor reclaimed destroyed channel", "channel_id", id)
	}
}
