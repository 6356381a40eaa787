package testutil

import (
	"testing"
	"time"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const streamTimeout = 2 * time.Second

// Await reads updates until one satisfies match and returns it. Hubs only
// promise the newest state, so intermediate values are skipped.
func Await[V any](t testing.TB, stream ports.Stream[V], match func(V) bool) V {
	t.Helper()

	timeout := time.After(streamTimeout)
	for {
		select {
		case v, ok := <-stream.Updates():
			if !ok {
				t.Fatalf("stream ended before a matching update: %v", stream.Err())
			}
			if match(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for a matching update")
		}
	}
}

// AwaitClosed drains the stream until its channel is closed.
func AwaitClosed[V any](t testing.TB, stream ports.Stream[V]) {
	t.Helper()

	timeout := time.After(streamTimeout)
	for {
		select {
		case _, ok := <-stream.Updates():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the stream to end")
		}
	}
}
