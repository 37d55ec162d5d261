// Package toolfacade implements spec.md §6's external operations table as
// a transport-agnostic tool registry (grounded on the teacher's
// internal/mcp/providers/message shape), wiring internal/channelstore and
// internal/botmanager together and mapping their sentinel errors onto the
// spec.md §7 wire error codes.
package toolfacade

import (
	"errors"
	"fmt"

	"github.com/memohai/memoh/internal/botapi"
	"github.com/memohai/memoh/internal/channelstore"
)

// Error is the wire-facing {code, message} pair every tool call error
// resolves to (spec.md §7).
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newError(code, message string) *Error { return &Error{Code: code, Message: message} }

// ErrToolNotFound names the unknown-tool condition; it is a facade-level
// concern, not one of spec.md §7's codes. ToolRegistry.Lookup reports a
// miss through its boolean result and does not return this error.
var ErrToolNotFound = errors.New("toolfacade: tool not found")

// mapErr translates a channelstore/botmanager/sandbox sentinel error into
// the spec.md §7 wire error code. Unrecognized errors become
// INTERNAL_ERROR, matching the teacher's middleware.Recover() idiom of
// never leaking raw internal errors to callers.
func mapErr(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, channelstore.ErrChannelNotFound):
		return newError("CHANNEL_NOT_FOUND", err.Error())
	case errors.Is(err, channelstore.ErrBotNotFound):
		return newError("BOT_NOT_FOUND", err.Error())
	case errors.Is(err, channelstore.ErrSlotNotFound):
		return newError("SLOT_NOT_FOUND", err.Error())
	case errors.Is(err, channelstore.ErrNotMember):
		return newError("NOT_MEMBER", err.Error())
	case errors.Is(err, channelstore.ErrNotAdmin):
		return newError("NOT_ADMIN", err.Error())
	case errors.Is(err, channelstore.ErrInviteInvalid):
		return newError("INVITE_INVALID", err.Error())
	case errors.Is(err, channelstore.ErrSlotAlreadyFilled):
		return newError("SLOT_ALREADY_FILLED", err.Error())
	case errors.Is(err, channelstore.ErrBadOp):
		return newError("BAD_OP", err.Error())
	case errors.Is(err, channelstore.ErrNoSession):
		return newError("NO_SESSION", err.Error())
	case errors.Is(err, channelstore.ErrInvalidRequest):
		return newError("INVALID_REQUEST", err.Error())
	case errors.Is(err, botapi.ErrImportDenied):
		return newError("IMPORT_DENIED", err.Error())
	case errors.Is(err, botapi.ErrCompileError):
		return newError("COMPILE_ERROR", err.Error())
	case errors.Is(err, botapi.ErrHookTimeout):
		return newError("HOOK_TIMEOUT", err.Error())
	case errors.Is(err, botapi.ErrNoBotClass):
		return newError("NO_BOT_CLASS", err.Error())
	default:
		return newError("INTERNAL_ERROR", err.Error())
	}
}
