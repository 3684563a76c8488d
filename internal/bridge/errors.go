package bridge

import "errors"

var (
	// ErrInvalidCommand is returned when a command record cannot be decoded
	// or lacks its device or request ID.
	ErrInvalidCommand = errors.New("invalid command record")

	// ErrInvalidAck is returned when a device acknowledgement cannot be decoded.
	ErrInvalidAck = errors.New("invalid device acknowledgement")

	// ErrInvalidReport is returned when a device report is not a JSON object.
	ErrInvalidReport = errors.New("invalid device report")

	// ErrDuplicateCommand is returned for a request ID seen recently.
	ErrDuplicateCommand = errors.New("duplicate command")
)
