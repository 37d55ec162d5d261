package toolfacade

import (
	"github.com/google/jsonschema-go/jsonschema"
)

func objectSchema(required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Required: required}
}

// RegisterAll wires every spec.md §6 operation onto registry, backed by
// executor. Schemas are intentionally loose (object, with only the
// operation's required top-level fields named) — the transport layer,
// not this facade, is responsible for deep payload shape (spec.md §1:
// wire format left to the implementer).
func RegisterAll(registry *ToolRegistry, executor *Executor) {
	registry.Register(ToolDescriptor{
		Name: "health_check", Description: "Report liveness of the channel engine.",
		InputSchema: objectSchema(),
	}, executor.HealthCheck)

	registry.Register(ToolDescriptor{
		Name:        "create_channel",
		Description: "Create a channel with the given slots and optional bots.",
		InputSchema: objectSchema("name", "slots"),
	}, executor.CreateChannel)

	registry.Register(ToolDescriptor{
		Name:        "join_channel",
		Description: "Join a channel via an invite code or rejoin token.",
		InputSchema: objectSchema("invite_code"),
	}, executor.JoinChannel)

	registry.Register(ToolDescriptor{
		Name:        "post_message",
		Description: "Post a message to a channel the caller is a member of.",
		InputSchema: objectSchema("channel_id", "body"),
	}, executor.PostMessage)

	registry.Register(ToolDescriptor{
		Name:        "make_game_move",
		Description: "Post a game move; validity is enforced by the bot, not the facade.",
		InputSchema: objectSchema("channel_id"),
	}, executor.MakeGameMove)

	registry.Register(ToolDescriptor{
		Name:        "sync_messages",
		Description: "Long-poll for messages newer than cursor.",
		InputSchema: objectSchema("channel_id"),
	}, executor.SyncMessages)

	registry.Register(ToolDescriptor{
		Name:        "get_channel_info",
		Description: "Return a channel's current view and attached bots.",
		InputSchema: objectSchema("channel_id"),
	}, executor.GetChannelInfo)

	registry.Register(ToolDescriptor{
		Name:        "get_bot_code",
		Description: "Return a bot's source (or code_ref) and hashes for transparency verification.",
		InputSchema: objectSchema("channel_id", "bot_id"),
	}, executor.GetBotCode)

	registry.Register(ToolDescriptor{
		Name:        "list_channels",
		Description: "List every live channel (debug/operational operation).",
		InputSchema: objectSchema(),
	}, executor.ListChannels)

	registry.Register(ToolDescriptor{
		Name:        "update_channel",
		Description: "Apply admin operations (set_bot, remove_bot, yield_slot, rename, set_admin).",
		InputSchema: objectSchema("channel_id", "ops"),
	}, executor.UpdateChannel)
}
