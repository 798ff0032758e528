package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDecode) {
//	    // payload rejected, state unchanged
//	}
var (
	// ErrDecode is returned when a status payload cannot be decoded.
	// The device state is left unchanged.
	ErrDecode = errors.New("device: payload decode failed")

	// ErrUnsupportedOperation is returned when a verb is not in the device's verb set.
	ErrUnsupportedOperation = errors.New("device: unsupported operation")

	// ErrInvalidParameters is returned when a command is missing a required parameter.
	ErrInvalidParameters = errors.New("device: invalid command parameters")

	// ErrUnknownFamily is returned when a descriptor names a type with no variant.
	ErrUnknownFamily = errors.New("device: unknown family")

	// ErrInvalidDescriptor is returned when a descriptor is missing a required field.
	ErrInvalidDescriptor = errors.New("device: invalid descriptor")

	// ErrDuplicateID is returned when two descriptors normalize to the same identifier.
	ErrDuplicateID = errors.New("device: duplicate identifier")
)

// DecodeError describes a rejected status payload.
type DecodeError struct {
	DeviceID string
	Family   Family
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("device %s (%s): decode: %v", e.DeviceID, e.Family, e.Err)
}

// Unwrap lets errors.Is match both ErrDecode and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}
