package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// APIMaxBodySize bounds cart and checkout request bodies. The largest,
// a customer details form, is well under a kilobyte.
const APIMaxBodySize = 64 << 10

// MaxBodySize rejects bodies larger than limit with 413. Bodies that do not
// declare their length are cut off at limit while being read.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				respondTooLarge(w, r)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout answers 503 when the handler has not started its response within
// d. The handler keeps running on a cancelled context; operations that must
// finish, like a payment, detach from it themselves.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			tw := &timeoutWriter{w: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if tw.expire() {
					respondWithError(w, r, http.StatusServiceUnavailable, codeTimeout, "Request timeout")
				}
			}
		})
	}
}

// timeoutWriter forwards to w until the deadline passes. After that the
// late handler's writes are dropped.
type timeoutWriter struct {
	w http.ResponseWriter

	mu      sync.Mutex
	started bool
	expired bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.w.Header()
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.started || tw.expired {
		return
	}
	tw.started = true
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.expired {
		return 0, context.DeadlineExceeded
	}
	if !tw.started {
		tw.started = true
		tw.w.WriteHeader(http.StatusOK)
	}
	return tw.w.Write(b)
}

// expire stops further writes and reports whether the caller may still
// send its own response.
func (tw *timeoutWriter) expire() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.expired = true
	return !tw.started
}
