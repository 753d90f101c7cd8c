package mosaic

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a converter or pipeline is
	// constructed with parameters that cannot produce valid output.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEndOfStream is returned by a Source once it has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

func invalidf(op, format string, args ...interface{}) error {
	return fmt.Errorf("mosaic: %s: %w: %s", op, ErrInvalidConfiguration,
		fmt.Sprintf(format, args...))
}
