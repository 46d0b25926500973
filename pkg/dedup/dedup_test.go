package dedup

import (
	"testing"
	"time"
)

func TestSuppressesRepeatsInsideWindow(t *testing.T) {
	d := New(time.Minute, 16)
	if !d.ShouldProcess("person") {
		t.Fatal("first sighting must process")
	}
	if d.ShouldProcess("person") {
		t.Fatal("repeat inside the window must be suppressed")
	}
	if !d.ShouldProcess("dog") {
		t.Fatal("a different key must process")
	}
}

func TestExpiredKeyProcessesAgain(t *testing.T) {
	d := New(10*time.Millisecond, 16)
	if !d.ShouldProcess("person") {
		t.Fatal("first sighting must process")
	}
	time.Sleep(20 * time.Millisecond)
	if !d.ShouldProcess("person") {
		t.Fatal("expired key must process again")
	}
}

func TestForget(t *testing.T) {
	d := New(time.Minute, 16)
	d.ShouldProcess("person")
	d.Forget("person")
	if !d.ShouldProcess("person") {
		t.Fatal("forgotten key must process again")
	}
}

func TestEmptyKeyAlwaysProcesses(t *testing.T) {
	d := New(time.Minute, 16)
	if !d.ShouldProcess("") || !d.ShouldProcess("") {
		t.Fatal("empty keys must never be suppressed")
	}
}

func TestEvictionKeepsMapBounded(t *testing.T) {
	d := New(time.Millisecond, 4)
	for i := 0; i < 4; i++ {
		d.ShouldProcess(string(rune('a' + i)))
	}
	time.Sleep(5 * time.Millisecond)
	// new insert evicts the expired entries past the cap
	d.ShouldProcess("fresh")
	d.mu.Lock()
	n := len(d.seen)
	d.mu.Unlock()
	if n > 4 {
		t.Fatalf("map must stay within cap, got %d entries", n)
	}
}
