package core

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock()
	c.now = func() time.Time { return now }

	c.Update()
	if c.Elapsed() != 0 || c.Running() {
		t.Fatalf("unstarted clock: Elapsed() = %v, Running() = %t", c.Elapsed(), c.Running())
	}

	c.Start()
	now = now.Add(250 * time.Millisecond)
	c.Update()
	if got := c.Elapsed(); got != 250*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 250ms", got)
	}

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	if got := c.Elapsed(); got != 250*time.Millisecond {
		t.Errorf("Elapsed() after Stop = %v, want 250ms", got)
	}

	c.Start()
	if got := c.Elapsed(); got != 0 {
		t.Errorf("Elapsed() after restart = %v, want 0", got)
	}
}
