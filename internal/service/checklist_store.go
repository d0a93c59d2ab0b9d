package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/checklist"
	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/repository"
	"github.com/rs/zerolog"
)

const (
	// DefaultStoreTimeout bounds a single note store call.
	DefaultStoreTimeout = 10 * time.Second

	// MaxSaveAttempts is the number of load, mutate, save cycles a mutation
	// gets before a persistent conflict is reported as unavailable.
	MaxSaveAttempts = 3
)

// errUnchanged is returned by a mutation callback to skip the save.
var errUnchanged = errors.New("checklist unchanged")

// LoadedChecklist is a decoded day note together with the revision it was
// read at.
type LoadedChecklist struct {
	Note     *domain.DayNote
	Document *checklist.Document
	Revision string
}

// Checklist returns the decoded checklist.
func (l *LoadedChecklist) Checklist() *domain.Checklist {
	return l.Document.Checklist
}

// ChecklistStore reads and writes day note checklists through the codec.
// Each backend call runs under its own timeout; backend failures of any
// kind come back as domain.ErrStoreUnavailable.
type ChecklistStore struct {
	notes    repository.DayNoteRepo
	timeout  time.Duration
	attempts int
	logger   zerolog.Logger
}

func NewChecklistStore(notes repository.DayNoteRepo, timeout time.Duration, logger zerolog.Logger) *ChecklistStore {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &ChecklistStore{
		notes:    notes,
		timeout:  timeout,
		attempts: MaxSaveAttempts,
		logger:   logger,
	}
}

// Load returns the checklist of the day note, creating an empty note if
// the date has none.
func (s *ChecklistStore) Load(ctx context.Context, owner int64, date domain.Date) (*LoadedChecklist, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	note, err := s.notes.GetOrCreateDayNote(callCtx, owner, date)
	if err != nil {
		return nil, classifyStoreError(fmt.Sprintf("loading day note %d/%s", owner, date), err)
	}
	return decodeDayNote(note)
}

// Peek returns the checklist of an existing day note without creating
// one. A missing note reads as an empty checklist.
func (s *ChecklistStore) Peek(ctx context.Context, owner int64, date domain.Date) (*domain.Checklist, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	note, err := s.notes.FindDayNote(callCtx, owner, date)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewChecklist(), nil
	}
	if err != nil {
		return nil, classifyStoreError(fmt.Sprintf("reading day note %d/%s", owner, date), err)
	}
	loaded, err := decodeDayNote(note)
	if err != nil {
		return nil, err
	}
	return loaded.Checklist(), nil
}

// Save encodes c into the loaded note and writes it if the note is still
// at the loaded revision. A stale revision fails with domain.ErrConflict.
func (s *ChecklistStore) Save(ctx context.Context, loaded *LoadedChecklist, c *domain.Checklist) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content := checklist.Encode(c, loaded.Document.Extra)
	rev, err := s.notes.WriteDayNote(callCtx, loaded.Note.Owner, loaded.Note.Date, content, loaded.Revision)
	if err != nil {
		return "", classifyStoreError(fmt.Sprintf("saving day note %d/%s", loaded.Note.Owner, loaded.Note.Date), err)
	}
	return rev, nil
}

// Mutate applies fn to a fresh copy of the day's checklist and saves the
// result, reloading and reapplying fn when another writer got there first.
// fn may run several times and must not have side effects beyond c. When
// fn returns errUnchanged nothing is written.
func (s *ChecklistStore) Mutate(ctx context.Context, owner int64, date domain.Date, fn func(c *domain.Checklist) error) (*domain.Checklist, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		loaded, err := s.Load(ctx, owner, date)
		if err != nil {
			return nil, err
		}

		next := loaded.Checklist().Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, errUnchanged) {
				return loaded.Checklist(), nil
			}
			return nil, err
		}
		if err := next.Validate(); err != nil {
			return nil, fmt.Errorf("mutation left checklist invalid: %w", err)
		}

		_, err = s.Save(ctx, loaded, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug().
			Int64("owner", owner).
			Str("date", date.String()).
			Int("attempt", attempt).
			Msg("day note changed underneath, reloading")
	}
	return nil, fmt.Errorf("saving day note %d/%s: gave up after %d attempts (%v): %w",
		owner, date, s.attempts, lastErr, domain.ErrStoreUnavailable)
}

func decodeDayNote(note *domain.DayNote) (*LoadedChecklist, error) {
	doc, err := checklist.Decode(note.Content)
	if err != nil {
		return nil, fmt.Errorf("day note %d/%s: %w", note.Owner, note.Date, err)
	}
	return &LoadedChecklist{Note: note, Document: doc, Revision: note.Revision}, nil
}

// classifyStoreError keeps the errors callers act on and folds everything
// else, timeouts included, into domain.ErrStoreUnavailable.
func classifyStoreError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrMalformedContent):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, domain.ErrNotFound):
		// The note vanished between load and save; a reload recreates it.
		return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: timed out: %w: %w", op, domain.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
}
