package channelstore

import "errors"

// Error taxonomy returned by the channel engine. The Tool Facade maps
// these 1:1 onto wire error codes; see SPEC_FULL.md §9.
var (
	ErrChannelNotFound   = errors.New("CHANNEL_NOT_FOUND")
	ErrBotNotFound       = errors.New("BOT_NOT_FOUND")
	ErrSlotNotFound      = errors.New("SLOT_NOT_FOUND")
	ErrNotMember         = errors.New("NOT_MEMBER")
	ErrNotAdmin          = errors.New("NOT_ADMIN")
	ErrInviteInvalid     = errors.New("INVITE_INVALID")
	ErrSlotAlreadyFilled = errors.New("SLOT_ALREADY_FILLED")
	ErrBadOp             = errors.New("BAD_OP")
	ErrNoSession         = errors.New("NO_SESSION")
	ErrInvalidRequest    = errors.New("INVALID_REQUEST")
)
