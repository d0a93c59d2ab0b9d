package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

type dayKey struct {
	owner int64
	date  domain.Date
}

type memoryDayNote struct {
	content  string
	revision int
}

// MemoryDayNotes is an in-memory day note store with fault injection.
// It honours the same revision contract as the real backends.
type MemoryDayNotes struct {
	mu        sync.Mutex
	notes     map[dayKey]*memoryDayNote
	conflicts int
	failErr   error
	delay     time.Duration
	writes    int
	beforeW   func(owner int64, date domain.Date)
}

func NewMemoryDayNotes() *MemoryDayNotes {
	return &MemoryDayNotes{notes: make(map[dayKey]*memoryDayNote)}
}

// Seed stores content for a day, creating the note if needed.
func (m *MemoryDayNotes) Seed(owner int64, date domain.Date, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[dayKey{owner, date}]
	if !ok {
		n = &memoryDayNote{}
		m.notes[dayKey{owner, date}] = n
	}
	n.content = content
	n.revision++
}

// Content returns the stored content and whether the note exists.
func (m *MemoryDayNotes) Content(owner int64, date domain.Date) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[dayKey{owner, date}]
	if !ok {
		return "", false
	}
	return n.content, true
}

// Exists reports whether a note for the day has been created.
func (m *MemoryDayNotes) Exists(owner int64, date domain.Date) bool {
	_, ok := m.Content(owner, date)
	return ok
}

// InjectConflicts makes the next n writes fail with domain.ErrConflict,
// as if another writer had just updated the note.
func (m *MemoryDayNotes) InjectConflicts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = n
}

// FailWith makes every call fail with err until cleared with nil.
func (m *MemoryDayNotes) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// SetDelay makes every call wait d or until the context is done.
func (m *MemoryDayNotes) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// BeforeWrite registers a hook run before each write is applied, outside
// the store lock, so tests can interleave a concurrent writer.
func (m *MemoryDayNotes) BeforeWrite(fn func(owner int64, date domain.Date)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeW = fn
}

// Writes returns the number of successful writes.
func (m *MemoryDayNotes) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryDayNotes) enter(ctx context.Context) error {
	m.mu.Lock()
	delay, failErr := m.delay, m.failErr
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return failErr
}

func (m *MemoryDayNotes) GetOrCreateDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{owner, date}
	n, ok := m.notes[k]
	if !ok {
		n = &memoryDayNote{revision: 1}
		m.notes[k] = n
	}
	return toDayNote(k, n), nil
}

func (m *MemoryDayNotes) FindDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{owner, date}
	n, ok := m.notes[k]
	if !ok {
		return nil, fmt.Errorf("day note %d/%s: %w", owner, date, domain.ErrNotFound)
	}
	return toDayNote(k, n), nil
}

func (m *MemoryDayNotes) WriteDayNote(ctx context.Context, owner int64, date domain.Date, content, expectedRevision string) (string, error) {
	if err := m.enter(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	hook := m.beforeW
	m.mu.Unlock()
	if hook != nil {
		hook(owner, date)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{owner, date}
	n, ok := m.notes[k]
	if !ok {
		return "", fmt.Errorf("day note %d/%s: %w", owner, date, domain.ErrNotFound)
	}
	if m.conflicts > 0 {
		m.conflicts--
		n.revision++
		return "", fmt.Errorf("injected: %w", domain.ErrConflict)
	}
	if strconv.Itoa(n.revision) != expectedRevision {
		return "", fmt.Errorf("revision %s != %d: %w", expectedRevision, n.revision, domain.ErrConflict)
	}
	n.content = content
	n.revision++
	m.writes++
	return strconv.Itoa(n.revision), nil
}

func toDayNote(k dayKey, n *memoryDayNote) *domain.DayNote {
	return &domain.DayNote{
		Owner:    k.owner,
		Date:     k.date,
		NoteID:   fmt.Sprintf("mem-%d-%s", k.owner, k.date),
		Content:  n.content,
		Revision: strconv.Itoa(n.revision),
	}
}
