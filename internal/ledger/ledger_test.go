package ledger

import (
	"testing"
	"time"
)

func TestRecordAccumulatesAcrossSteps(t *testing.T) {
	l := New(0)
	id := l.Open()

	got := l.Record(id, StepDescribe, Entry{Tokens: 100, Cost: 0.01})
	if got.Tokens != 100 {
		t.Fatalf("tokens = %d, want 100", got.Tokens)
	}
	got = l.Record(id, StepCategorize, Entry{Tokens: 40, Cost: 0.004})
	if got.Tokens != 140 {
		t.Fatalf("tokens = %d, want 140", got.Tokens)
	}
	if got.Cost != 0.014 {
		t.Fatalf("cost = %v, want 0.014", got.Cost)
	}
}

func TestRecordSameStepOverwrites(t *testing.T) {
	l := New(0)
	id := l.Open()

	l.Record(id, StepEffort, Entry{Tokens: 50, Cost: 0.5})
	got := l.Record(id, StepEffort, Entry{Tokens: 30, Cost: 0.3})
	if got.Tokens != 30 || got.Cost != 0.3 {
		t.Fatalf("totals = %+v, want the rerun to replace the first entry", got)
	}
}

func TestUnknownFormIsRecreated(t *testing.T) {
	l := New(0)
	got := l.Record("gone", StepRisks, Entry{Tokens: 10, Cost: 0.1})
	if got.Tokens != 10 {
		t.Fatalf("tokens = %d, want 10", got.Tokens)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
}

func TestTotalsUnknownReadsZero(t *testing.T) {
	l := New(0)
	if got := l.Totals("nope"); got != (Totals{}) {
		t.Fatalf("totals = %+v, want zero", got)
	}
}

func TestCloseDiscards(t *testing.T) {
	l := New(0)
	id := l.Open()
	l.Record(id, StepDescribe, Entry{Tokens: 1})
	l.Close(id)
	if got := l.Totals(id); got.Tokens != 0 {
		t.Fatalf("totals after close = %+v, want zero", got)
	}
	if l.Len() != 0 {
		t.Fatalf("len = %d, want 0", l.Len())
	}
}

func TestIdleFormsExpire(t *testing.T) {
	l := New(time.Hour)
	clock := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	stale := l.Open()
	l.Record(stale, StepDescribe, Entry{Tokens: 5})

	clock = clock.Add(30 * time.Minute)
	fresh := l.Open()
	l.Record(fresh, StepDescribe, Entry{Tokens: 7})

	clock = clock.Add(45 * time.Minute)
	if l.Len() != 1 {
		t.Fatalf("len = %d, want only the fresh form to survive", l.Len())
	}
	if got := l.Totals(stale); got.Tokens != 0 {
		t.Fatalf("stale totals = %+v, want zero after eviction", got)
	}
	if got := l.Totals(fresh); got.Tokens != 7 {
		t.Fatalf("fresh totals = %+v, want 7 tokens", got)
	}
}

func TestRecordKeepsFormAlive(t *testing.T) {
	l := New(time.Hour)
	clock := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	id := l.Open()
	for i := 0; i < 3; i++ {
		clock = clock.Add(45 * time.Minute)
		l.Record(id, StepDescribe, Entry{Tokens: i})
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want the touched form to survive", l.Len())
	}
}
