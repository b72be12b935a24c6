package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1

	interval := 100 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, 100, lim)

	tooshort := 5 * time.Millisecond

	client := "203.0.113.7"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	interval := time.Hour
	r := NewLimiter(1, 100, Every(interval))

	if !r.Check("first") {
		t.Fatal("first client should pass on its first check")
	}
	if r.Check("first") {
		t.Fatal("first client should be limited on its second check")
	}
	if !r.Check("second") {
		t.Fatal("second client must not inherit the first client's bucket")
	}
}

func TestPerMinute(t *testing.T) {
	lim := PerMinute(60)
	if lim != 1 {
		t.Fatalf("60 per minute should be 1 rps, got %v", lim)
	}
}
