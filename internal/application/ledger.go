package application

import (
	"time"

	"github.com/bnema/rigpilot/internal/domain"
)

type LedgerKey struct {
	RigID domain.RigID
	Kind  domain.ActionKind
}

type LedgerEntry struct {
	LastAttempt time.Time
	Attempts    int
	// Suppressed pairs failed validation and are never retried automatically.
	Suppressed bool
	// Notified is set once the single allowed automated notification for the
	// pair has been emitted.
	Notified bool
}

// CooldownLedger throttles automated dispatch per (rig, action). Entries are
// never deleted for the lifetime of the session. Errors only ever make it
// more conservative: a clock that moves backwards keeps a pair blocked.
type CooldownLedger struct {
	cooldown time.Duration
	entries  map[LedgerKey]*LedgerEntry
}

func NewCooldownLedger(cooldown time.Duration) *CooldownLedger {
	return &CooldownLedger{cooldown: cooldown, entries: map[LedgerKey]*LedgerEntry{}}
}

func (l *CooldownLedger) Cooldown() time.Duration {
	return l.cooldown
}

func (l *CooldownLedger) Allow(key LedgerKey, now time.Time) bool {
	entry, ok := l.entries[key]
	if !ok {
		return true
	}
	if entry.Suppressed {
		return false
	}
	if entry.Attempts == 0 {
		return true
	}
	return now.Sub(entry.LastAttempt) >= l.cooldown
}

func (l *CooldownLedger) Remaining(key LedgerKey, now time.Time) time.Duration {
	entry, ok := l.entries[key]
	if !ok || entry.Attempts == 0 {
		return 0
	}
	elapsed := now.Sub(entry.LastAttempt)
	if elapsed < 0 {
		return l.cooldown
	}
	return domain.CooldownRemaining(l.cooldown, entry.LastAttempt, now)
}

func (l *CooldownLedger) Record(key LedgerKey, now time.Time) {
	entry := l.entry(key)
	entry.LastAttempt = now
	entry.Attempts++
}

func (l *CooldownLedger) Suppress(key LedgerKey) {
	l.entry(key).Suppressed = true
}

// MarkNotified reports true the first time it is called for key.
func (l *CooldownLedger) MarkNotified(key LedgerKey) bool {
	entry := l.entry(key)
	if entry.Notified {
		return false
	}
	entry.Notified = true
	return true
}

func (l *CooldownLedger) Entry(key LedgerKey) (LedgerEntry, bool) {
	entry, ok := l.entries[key]
	if !ok {
		return LedgerEntry{}, false
	}
	return *entry, true
}

func (l *CooldownLedger) Len() int {
	return len(l.entries)
}

func (l *CooldownLedger) entry(key LedgerKey) *LedgerEntry {
	entry, ok := l.entries[key]
	if !ok {
		entry = &LedgerEntry{}
		l.entries[key] = entry
	}
	return entry
}
