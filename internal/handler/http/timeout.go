package http

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout caps how long a request may run. Past the deadline the client gets
// 504 and the request context is canceled so a stuck analysis can unwind.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			finished := make(chan struct{})

			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(finished)
			}()

			select {
			case <-finished:
			case <-ctx.Done():
				tw.expire()
			}
		})
	}
}

// timeoutWriter arbitrates between the handler goroutine and the timeout:
// exactly one side writes the response, and handler writes landing after
// expiry are swallowed.
type timeoutWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	expired bool
	wrote   bool
}

// expire sends the 504 unless the handler already responded.
func (w *timeoutWriter) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expired = true
	if w.wrote {
		return
	}
	w.ResponseWriter.Header().Set("Content-Type", "application/json")
	w.ResponseWriter.WriteHeader(http.StatusGatewayTimeout)
	_, _ = w.ResponseWriter.Write([]byte(`{"error":"request timeout"}`))
}

func (w *timeoutWriter) WriteHeader(statusCode int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expired || w.wrote {
		return
	}
	w.wrote = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *timeoutWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !w.wrote {
		w.wrote = true
		w.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}
