// Package ledger tracks the running token and cost totals of the task
// creation wizard. Each form gets its own entry so parallel users never see
// each other's numbers, and stale forms expire instead of accumulating for
// the lifetime of the process.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step names the wizard slots. Writing a step twice overwrites it, so
// re-running an assist action never double-counts.
type Step string

const (
	StepDescribe   Step = "describe"
	StepCategorize Step = "categorize"
	StepEffort     Step = "effort"
	StepRisks      Step = "risks"
	StepMitigation Step = "mitigation"
)

// Entry is one step's accounting.
type Entry struct {
	Tokens int
	Cost   float64
}

// Totals is the folded view of a form.
type Totals struct {
	Tokens int     `json:"total_tokens"`
	Cost   float64 `json:"total_cost"`
}

type form struct {
	steps    map[Step]Entry
	lastSeen time.Time
}

// Ledger is an in-memory, TTL-evicted accumulator keyed by form id.
type Ledger struct {
	mu    sync.Mutex
	forms map[string]*form
	ttl   time.Duration
	now   func() time.Time
}

// DefaultTTL is how long an idle form survives.
const DefaultTTL = 2 * time.Hour

func New(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{
		forms: map[string]*form{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// Open creates a fresh form and returns its id.
func (l *Ledger) Open() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict()
	id := uuid.NewString()
	l.forms[id] = &form{steps: map[Step]Entry{}, lastSeen: l.now()}
	return id
}

// Record stores a step's accounting on the form and returns the updated
// totals. An unknown or expired form id is recreated on the spot so a user
// who left a tab open overnight still gets working numbers.
func (l *Ledger) Record(id string, step Step, e Entry) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict()
	f, ok := l.forms[id]
	if !ok {
		f = &form{steps: map[Step]Entry{}}
		l.forms[id] = f
	}
	f.steps[step] = e
	f.lastSeen = l.now()
	return totals(f)
}

// Totals reads a form's current totals. Unknown ids read as zero.
func (l *Ledger) Totals(id string) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict()
	f, ok := l.forms[id]
	if !ok {
		return Totals{}
	}
	return totals(f)
}

// Close discards a form, normally after the task is created.
func (l *Ledger) Close(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.forms, id)
}

// Len reports the live form count.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict()
	return len(l.forms)
}

func (l *Ledger) evict() {
	cutoff := l.now().Add(-l.ttl)
	for id, f := range l.forms {
		if f.lastSeen.Before(cutoff) {
			delete(l.forms, id)
		}
	}
}

func totals(f *form) Totals {
	var t Totals
	for _, e := range f.steps {
		t.Tokens += e.Tokens
		t.Cost += e.Cost
	}
	return t
}
