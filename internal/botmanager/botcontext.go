package botmanager

import "time"

// botContext is the botapi.Context a running hook sees: a thin adapter
// bound to one (channelID, botID) pair, delegating back into the owning
// Manager (spec.md §3 Context).
type botContext struct {
	manager   *Manager
	channelID string
	botID     string
}

func (c *botContext) Post(kind string, body map[string]any) (int64, time.Time, error) {
	return c.manager.PostMessageFromBot(c.channelID, c.botID, kind, body)
}

func (c *botContext) GetState() map[string]any {
	state, _ := c.manager.GetBotState(c.channelID, c.botID)
	return state
}

func (c *botContext) SetState(state map[string]any) {
	_ = c.manager.SetBotState(c.channelID, c.botID, state)
}

func (c *botContext) WorkspaceDir() string {
	return c.manager.workspaceDirOf(c.channelID, c.botID)
}
