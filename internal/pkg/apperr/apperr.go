package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Stage-level error kinds. Wrap them with fmt.Errorf("...: %w", ErrX) so callers
// can classify with errors.Is.
var (
	ErrConfig          = errors.New("configuration error")
	ErrExtraction      = errors.New("extraction error")
	ErrTransport       = errors.New("transport error")
	ErrTimeout         = fmt.Errorf("request timed out: %w", ErrTransport)
	ErrSchema          = errors.New("schema error")
	ErrImageGeneration = errors.New("image generation error")
)

// Kind returns a short label for logging and bundle error entries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrImageGeneration):
		return "image"
	default:
		return "unknown"
	}
}

// Configf builds an ErrConfig-wrapped error.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Transport classifies a network failure, promoting deadline errors to ErrTimeout.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
