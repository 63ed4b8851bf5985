package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{Configf("api key missing"), "config"},
		{fmt.Errorf("pdf: %w", ErrExtraction), "extraction"},
		{Transport(errors.New("connection refused")), "transport"},
		{Transport(context.DeadlineExceeded), "timeout"},
		{fmt.Errorf("bad json: %w", ErrSchema), "schema"},
		{fmt.Errorf("panel 2: %w", ErrImageGeneration), "image"},
		{errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestTimeoutIsTransport(t *testing.T) {
	err := Transport(fmt.Errorf("post: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("timeout should also match ErrTransport")
	}
}
