package ratelimit

import (
	"testing"
	"time"
)

func TestWindowAllowsUpToMax(t *testing.T) {
	w := NewWindow(3, time.Minute)
	base := time.Now()
	for i := 0; i < 3; i++ {
		if !w.AllowAt("a@example.com", base) {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if w.AllowAt("a@example.com", base) {
		t.Fatal("4th attempt within window should be rejected")
	}
}

func TestWindowKeysAreIndependent(t *testing.T) {
	w := NewWindow(1, time.Minute)
	base := time.Now()
	if !w.AllowAt("a@example.com", base) {
		t.Fatal("first attempt for a should be allowed")
	}
	if !w.AllowAt("b@example.com", base) {
		t.Fatal("first attempt for b should be allowed regardless of a's state")
	}
}

func TestWindowExpiresOldAttempts(t *testing.T) {
	w := NewWindow(1, time.Minute)
	base := time.Now()
	if !w.AllowAt("a@example.com", base) {
		t.Fatal("first attempt should be allowed")
	}
	if w.AllowAt("a@example.com", base.Add(30*time.Second)) {
		t.Fatal("second attempt inside window should be rejected")
	}
	if !w.AllowAt("a@example.com", base.Add(61*time.Second)) {
		t.Fatal("attempt after window elapses should be allowed")
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(1, time.Minute)
	base := time.Now()
	w.AllowAt("a@example.com", base)
	w.Reset("a@example.com")
	if !w.AllowAt("a@example.com", base.Add(time.Second)) {
		t.Fatal("attempt after reset should be allowed")
	}
}
