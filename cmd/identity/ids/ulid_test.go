package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNew_SortsWithinMillisecond(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	prev := ""
	for i := 0; i < 100; i++ {
		id, err := New(now)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := ulid.ParseStrict(id); err != nil {
			t.Fatalf("invalid id %q", id)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %q after %q", id, prev)
		}
		prev = id
	}
}
