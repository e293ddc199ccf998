package perforation

import (
	"github.com/pkg/errors"
)

// Error taxonomy. Every configure/validate failure wraps exactly one of these,
// so callers can match with errors.Is.
var (
	// ErrConfiguration reports an unsupported policy or geometry combination.
	ErrConfiguration = errors.New("configuration error")
	// ErrShapeMismatch reports a caller-provided shape that disagrees with the computed one.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrUnsupportedDataLayout reports a layout other than NCHW.
	ErrUnsupportedDataLayout = errors.New("unsupported data layout")
	// ErrProgramming reports API misuse, such as running before configure.
	ErrProgramming = errors.New("programming error")
)

// Configurationf wraps ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// ShapeMismatchf wraps ErrShapeMismatch with a formatted message.
func ShapeMismatchf(format string, args ...any) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}

// UnsupportedLayoutf wraps ErrUnsupportedDataLayout with a formatted message.
func UnsupportedLayoutf(format string, args ...any) error {
	return errors.Wrapf(ErrUnsupportedDataLayout, format, args...)
}

// Programmingf wraps ErrProgramming with a formatted message.
func Programmingf(format string, args ...any) error {
	return errors.Wrapf(ErrProgramming, format, args...)
}
