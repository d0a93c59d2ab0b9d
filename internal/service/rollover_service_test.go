package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/repository"
	"github.com/alexanderramin/trilium-bot/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// morning of testutil.Today
var rolloverNow = time.Date(2026, 10, 17, 0, 5, 0, 0, time.UTC)

type rolloverFixture struct {
	svc   RolloverService
	notes *testutil.MemoryDayNotes
	chats *repository.SQLiteChatRepo
}

func setupRollover(t *testing.T, chatIDs ...int64) *rolloverFixture {
	t.Helper()
	notes := testutil.NewMemoryDayNotes()
	chats := repository.NewSQLiteChatRepo(testutil.NewTestDB(t))
	for _, id := range chatIDs {
		_, err := chats.Register(context.Background(), id, id)
		require.NoError(t, err)
	}
	store := NewChecklistStore(notes, time.Second, zerolog.Nop())
	return &rolloverFixture{
		svc:   NewRolloverService(store, chats, zerolog.Nop()),
		notes: notes,
		chats: chats,
	}
}

func (f *rolloverFixture) cursor(t *testing.T, chatID int64) *domain.Date {
	t.Helper()
	c, err := f.chats.GetByID(context.Background(), chatID)
	require.NoError(t, err)
	return c.RolloverCursor
}

func TestRollover_CarriesUnfinishedItems(t *testing.T) {
	f := setupRollover(t, 1)
	yesterday := testutil.EncodeChecklist(t, testutil.Todo("Buy milk"), testutil.Done("Pay bill"))
	f.notes.Seed(1, testutil.Yesterday, yesterday)

	report, err := f.svc.Run(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, testutil.Today, report.Today)
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, 1, report.Carried())

	today := storedChecklist(t, f.notes, 1, testutil.Today)
	assert.Equal(t, []testutil.ItemSpec{testutil.Todo("Buy milk")}, testutil.Specs(today))

	after, _ := f.notes.Content(1, testutil.Yesterday)
	assert.Equal(t, yesterday, after, "yesterday's note is history and stays untouched")

	require.NotNil(t, f.cursor(t, 1))
	assert.Equal(t, testutil.Yesterday, *f.cursor(t, 1))
}

func TestRollover_AppendsAfterTodaysItems(t *testing.T) {
	f := setupRollover(t, 1)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("old")))
	f.notes.Seed(1, testutil.Today, testutil.EncodeChecklist(t, testutil.Done("new")))

	_, err := f.svc.Run(context.Background(), rolloverNow)
	require.NoError(t, err)

	today := storedChecklist(t, f.notes, 1, testutil.Today)
	assert.Equal(t, []testutil.ItemSpec{testutil.Done("new"), testutil.Todo("old")}, testutil.Specs(today))
	assert.Equal(t, 1, today.Items[1].Position)
	assert.NotEqual(t, today.Items[0].ID, today.Items[1].ID)
}

func TestRollover_IsIdempotent(t *testing.T) {
	f := setupRollover(t, 1)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("a"), testutil.Todo("b")))
	ctx := context.Background()

	_, err := f.svc.Run(ctx, rolloverNow)
	require.NoError(t, err)
	once, _ := f.notes.Content(1, testutil.Today)

	report, err := f.svc.Run(ctx, rolloverNow.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, report.Chats, 1)
	assert.True(t, report.Chats[0].UpToDate)

	twice, _ := f.notes.Content(1, testutil.Today)
	assert.Equal(t, once, twice)
}

func TestRollover_ForcedRerunDoesNotDuplicate(t *testing.T) {
	f := setupRollover(t, 1)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("a")))
	ctx := context.Background()

	_, err := f.svc.Run(ctx, rolloverNow)
	require.NoError(t, err)
	once, _ := f.notes.Content(1, testutil.Today)

	// As if the cursor write had been lost before a restart.
	res, err := f.svc.RolloverChat(ctx, 1, rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Carried)

	twice, _ := f.notes.Content(1, testutil.Today)
	assert.Equal(t, once, twice)
}

func TestRollover_MissingYesterdayIsEmpty(t *testing.T) {
	f := setupRollover(t, 1)

	report, err := f.svc.Run(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed())
	assert.False(t, f.notes.Exists(1, testutil.Yesterday), "reading yesterday must not create it")
	assert.False(t, f.notes.Exists(1, testutil.Today), "nothing to carry, nothing to write")
	assert.Equal(t, testutil.Yesterday, *f.cursor(t, 1))
}

func TestRollover_FailingChatIsSkipped(t *testing.T) {
	f := setupRollover(t, 1, 2)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("stuck")))
	f.notes.Seed(1, testutil.Today, `<ul class="checklist"><li data-id="x">broken</li></ul>`)
	f.notes.Seed(2, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("fine")))

	report, err := f.svc.Run(context.Background(), rolloverNow)
	require.NoError(t, err)
	require.Len(t, report.Chats, 2)
	assert.Equal(t, 1, report.Failed())
	assert.ErrorIs(t, report.Chats[0].Err, domain.ErrMalformedContent)
	assert.NoError(t, report.Chats[1].Err)

	assert.Nil(t, f.cursor(t, 1), "failed chat keeps its cursor")
	assert.Equal(t, testutil.Yesterday, *f.cursor(t, 2))
	assert.Equal(t, []testutil.ItemSpec{testutil.Todo("fine")}, testutil.Specs(storedChecklist(t, f.notes, 2, testutil.Today)))
}

func TestRollover_MalformedSourceDayIsPassedOver(t *testing.T) {
	f := setupRollover(t, 1)
	ctx := context.Background()
	broken := testutil.Today.AddDays(-2)
	require.NoError(t, f.chats.AdvanceCursor(ctx, 1, testutil.Today.AddDays(-3)))
	f.notes.Seed(1, broken, `<ul class="checklist"><li data-id="x" data-done="false">broken</li></ul>`)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("important")))

	report, err := f.svc.Run(ctx, rolloverNow)
	require.NoError(t, err)
	require.Len(t, report.Chats, 1)
	res := report.Chats[0]
	assert.NoError(t, res.Err)
	assert.Equal(t, []domain.Date{broken}, res.Malformed)
	assert.Equal(t, 1, res.Carried)
	assert.Equal(t, testutil.Yesterday, *f.cursor(t, 1))

	today := storedChecklist(t, f.notes, 1, testutil.Today)
	assert.Equal(t, []testutil.ItemSpec{testutil.Todo("important")}, testutil.Specs(today))
	assert.Equal(t, []domain.Date{testutil.Yesterday}, today.CarriedFrom)

	raw, ok := f.notes.Content(1, broken)
	require.True(t, ok)
	assert.Contains(t, raw, `data-id="x"`, "malformed note is left untouched")

	// The next day starts after the broken day.
	report, err = f.svc.Run(ctx, rolloverNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.NoError(t, report.Chats[0].Err)
	assert.Empty(t, report.Chats[0].Malformed)
	assert.Equal(t, []domain.Date{testutil.Today}, report.Chats[0].From)
	assert.Equal(t, testutil.Today, *f.cursor(t, 1))
}

func TestRollover_StoreUnavailableRetriedNextRun(t *testing.T) {
	f := setupRollover(t, 1)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("a")))
	ctx := context.Background()

	f.notes.FailWith(errors.New("502 bad gateway"))
	report, err := f.svc.Run(ctx, rolloverNow)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Chats[0].Err, domain.ErrStoreUnavailable)
	assert.Nil(t, f.cursor(t, 1))

	f.notes.FailWith(nil)
	report, err = f.svc.Run(ctx, rolloverNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Carried())
	assert.Equal(t, testutil.Yesterday, *f.cursor(t, 1))
}

func TestRollover_CatchesUpMissedDays(t *testing.T) {
	f := setupRollover(t, 1)
	ctx := context.Background()
	require.NoError(t, f.chats.AdvanceCursor(ctx, 1, testutil.Today.AddDays(-3)))
	f.notes.Seed(1, testutil.Today.AddDays(-2), testutil.EncodeChecklist(t, testutil.Todo("two days ago")))
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("yesterday"), testutil.Done("done")))

	report, err := f.svc.Run(ctx, rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{testutil.Today.AddDays(-2), testutil.Yesterday}, report.Chats[0].From)

	today := storedChecklist(t, f.notes, 1, testutil.Today)
	assert.Equal(t, []testutil.ItemSpec{testutil.Todo("two days ago"), testutil.Todo("yesterday")}, testutil.Specs(today))
	assert.Equal(t, []domain.Date{testutil.Today.AddDays(-2), testutil.Yesterday}, today.CarriedFrom)
}

func TestRollover_RacesWithLiveEdit(t *testing.T) {
	f := setupRollover(t, 1)
	f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, testutil.Todo("carry me")))
	f.notes.Seed(1, testutil.Today, testutil.EncodeChecklist(t, testutil.Todo("mine")))
	live := NewChecklistService(NewChecklistStore(f.notes, time.Second, zerolog.Nop()))

	edited := false
	f.notes.BeforeWrite(func(owner int64, date domain.Date) {
		if !edited {
			edited = true
			_, err := live.Add(context.Background(), owner, date, "typed during rollover")
			require.NoError(t, err)
		}
	})

	report, err := f.svc.Run(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed())

	today := storedChecklist(t, f.notes, 1, testutil.Today)
	assert.Equal(t, []testutil.ItemSpec{
		testutil.Todo("mine"), testutil.Todo("typed during rollover"), testutil.Todo("carry me"),
	}, testutil.Specs(today))
}

func TestRollover_NoItemLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 50; round++ {
		f := setupRollover(t, 1)
		yesterday, today := []testutil.ItemSpec{}, []testutil.ItemSpec{}
		undone := 0
		for i := rng.Intn(6); i > 0; i-- {
			done := rng.Intn(2) == 0
			if !done {
				undone++
			}
			yesterday = append(yesterday, testutil.ItemSpec{Text: fmt.Sprintf("y%d-%d", round, i), Done: done})
		}
		for i := rng.Intn(4); i > 0; i-- {
			today = append(today, testutil.ItemSpec{Text: fmt.Sprintf("t%d-%d", round, i), Done: rng.Intn(2) == 0})
		}
		f.notes.Seed(1, testutil.Yesterday, testutil.EncodeChecklist(t, yesterday...))
		f.notes.Seed(1, testutil.Today, testutil.EncodeChecklist(t, today...))

		_, err := f.svc.Run(context.Background(), rolloverNow)
		require.NoError(t, err)

		got := testutil.Specs(storedChecklist(t, f.notes, 1, testutil.Today))
		require.GreaterOrEqual(t, len(got), len(today)+undone, "round %d", round)
		assert.Equal(t, today, got[:len(today)], "round %d: existing items keep their place", round)
		carried := got[len(today):]
		k := 0
		for _, it := range yesterday {
			if it.Done {
				continue
			}
			assert.Equal(t, testutil.Todo(it.Text), carried[k], "round %d", round)
			k++
		}
	}
}

func TestSourceDates(t *testing.T) {
	d := func(n int) *domain.Date {
		v := testutil.Today.AddDays(n)
		return &v
	}
	assert.Equal(t, []domain.Date{testutil.Yesterday}, sourceDates(nil, testutil.Today))
	assert.Equal(t, []domain.Date{testutil.Yesterday}, sourceDates(d(-1), testutil.Today))
	assert.Equal(t, []domain.Date{testutil.Yesterday}, sourceDates(d(-2), testutil.Today))
	assert.Len(t, sourceDates(d(-30), testutil.Today), MaxCatchUpDays)
	assert.Equal(t, testutil.Today.AddDays(-MaxCatchUpDays), sourceDates(d(-30), testutil.Today)[0])
}
