package catalog

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// backoff returns a fresh retry policy. Backoffs are stateful, so every
// request gets its own.
func (c *Client) backoff() retry.Backoff {
	b := retry.NewConstant(c.retryDelay)
	if c.maxRetries > 0 {
		b = retry.WithMaxRetries(c.maxRetries, b)
	}
	return b
}

// isTransient reports whether err is a transport failure worth retrying:
// a timeout, a refused or dropped connection, or a failed lookup.
// Cancellation of ctx is never transient.
func isTransient(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// defaultRetryDelay is the pause between attempts when none is configured.
const defaultRetryDelay = 10 * time.Second
