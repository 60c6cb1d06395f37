package booking

import (
	"errors"
	"fmt"
)

// Kind classifies user-facing booking failures.
type Kind string

const (
	KindSlotUnavailable   Kind = "slot_unavailable"
	KindAvailabilityFetch Kind = "availability_fetch"
	KindConflict          Kind = "conflict"
	KindValidation        Kind = "validation"
	KindGeneric           Kind = "generic"
)

// DefaultSubmitMessage is shown when the backend gives no reason.
const DefaultSubmitMessage = "failed to create booking"

// MsgSelectionTaken is shown when the selected range covers a slot booked since it was picked.
const MsgSelectionTaken = "some selected slots are no longer available, please adjust the selection"

var (
	ErrSlotUnavailable  = errors.New("this slot is already booked")
	ErrNoScope          = errors.New("turf, sport and date must be chosen first")
	ErrInvalidSlot      = errors.New("unknown slot")
	ErrNoSelection      = errors.New("please select at least one slot")
	ErrSubmitInProgress = errors.New("booking is already being submitted")
	ErrConsumed         = errors.New("booking already completed")
)

// Error is a booking failure with a message suitable for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error; an empty message falls back to the wrapped error text.
func NewError(kind Kind, message string, err error) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindGeneric for foreign errors.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, ErrSlotUnavailable) {
		return KindSlotUnavailable
	}
	return KindGeneric
}

// MessageOf returns the display message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// IsConflict reports whether err is a server-side slot conflict.
func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}
