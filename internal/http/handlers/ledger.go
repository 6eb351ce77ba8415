package handlers

import (
	"sync"

	"github.com/hongminglow/console-bank/internal/ledger"
)

// Ledger serializes all access to a Directory. The directory is single-actor; every
// handler, read or write, goes through Do.
type Ledger struct {
	mu  sync.Mutex
	dir *ledger.Directory
}

func NewLedger(dir *ledger.Directory) *Ledger {
	return &Ledger{dir: dir}
}

// Do runs fn while holding the directory lock.
func (l *Ledger) Do(fn func(dir *ledger.Directory) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.dir)
}
