package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/roelfdiedericks/wabot/internal/media"
	"github.com/roelfdiedericks/wabot/internal/types"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

var (
	// ErrPermission matches every PermissionError
	ErrPermission = errors.New("permission denied")
	// ErrBotNotAdmin means the bot must be promoted before the command works
	ErrBotNotAdmin = errors.New("bot is not a group admin")
	// ErrNoMedia means the command needs an attached or quoted media message
	ErrNoMedia = errors.New("no media")
)

// PermissionError is a refusal for the sender's level.
type PermissionError struct {
	Need Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: needs %s", e.Need)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission
}

// UsageError means the arguments were missing or malformed.
type UsageError struct {
	Command string
	Usage   string
	Hint    string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Command + " " + e.Usage
}

// UserError carries a message meant for the chat as-is.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

// Fail returns a UserError with a formatted message.
func Fail(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// describe maps a handler error to the reply text. The bool is false for
// unexpected errors, which get the generic reply and an error log.
func describe(err error, prefix string) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Msg, true
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		msg := "Usage: " + prefix + usage.Command
		if usage.Usage != "" {
			msg += " " + usage.Usage
		}
		if usage.Hint != "" {
			msg += "\n" + usage.Hint
		}
		return msg, true
	}

	var perm *PermissionError
	if errors.As(err, &perm) {
		switch perm.Need {
		case Group:
			return "This command only works in groups.", true
		case Admin:
			return "Only group admins can use this command.", true
		default:
			return "Only the bot owner can use this command.", true
		}
	}

	if errors.Is(err, ErrBotNotAdmin) || errors.Is(err, types.ErrForbidden) {
		return "I need to be a group admin to do that.", true
	}
	if errors.Is(err, ErrNoMedia) {
		return "Send or reply to a media message with this command.", true
	}
	if msg, ok := upstream.Describe(err); ok {
		return msg, true
	}
	if errors.Is(err, media.ErrToolMissing) {
		return "Media conversion is not available on this bot right now.", true
	}
	if errors.Is(err, media.ErrUnsupported) {
		return "That media type is not supported here.", true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "That took too long. Try again later.", true
	}
	return "Something went wrong while running that command.", false
}
