package service

import (
	"context"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/checklist"
	"github.com/alexanderramin/trilium-bot/internal/domain"
)

type checklistService struct {
	store    *ChecklistStore
	observer UseCaseObserver
}

func NewChecklistService(store *ChecklistStore, observers ...UseCaseObserver) ChecklistService {
	return &checklistService{store: store, observer: useCaseObserverOrNoop(observers)}
}

func (s *checklistService) View(ctx context.Context, owner int64, date domain.Date) (*ChecklistView, error) {
	loaded, err := s.store.Load(ctx, owner, date)
	if err != nil {
		return nil, err
	}
	return newChecklistView(owner, date, loaded.Checklist(), nil), nil
}

func (s *checklistService) Toggle(ctx context.Context, owner int64, date domain.Date, itemID int) (view *ChecklistView, err error) {
	defer observe(ctx, s.observer, "toggle-item", time.Now(), itemFields(owner, date, itemID), &err)

	return s.mutate(ctx, owner, date, func(c *domain.Checklist) (domain.ChecklistItem, error) {
		return c.Toggle(itemID)
	})
}

func (s *checklistService) Add(ctx context.Context, owner int64, date domain.Date, text string) (view *ChecklistView, err error) {
	defer observe(ctx, s.observer, "add-item", time.Now(), itemFields(owner, date, 0), &err)

	// Reject before touching the store.
	if _, err = domain.ValidateItemText(text); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, date, func(c *domain.Checklist) (domain.ChecklistItem, error) {
		return c.Add(text)
	})
}

func (s *checklistService) UpdateText(ctx context.Context, owner int64, date domain.Date, itemID int, text string) (view *ChecklistView, err error) {
	defer observe(ctx, s.observer, "update-item", time.Now(), itemFields(owner, date, itemID), &err)

	if _, err = domain.ValidateItemText(text); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, date, func(c *domain.Checklist) (domain.ChecklistItem, error) {
		return c.UpdateText(itemID, text)
	})
}

func (s *checklistService) Delete(ctx context.Context, owner int64, date domain.Date, itemID int) (view *ChecklistView, err error) {
	defer observe(ctx, s.observer, "delete-item", time.Now(), itemFields(owner, date, itemID), &err)

	return s.mutate(ctx, owner, date, func(c *domain.Checklist) (domain.ChecklistItem, error) {
		return c.Delete(itemID)
	})
}

func (s *checklistService) mutate(ctx context.Context, owner int64, date domain.Date, op func(c *domain.Checklist) (domain.ChecklistItem, error)) (*ChecklistView, error) {
	var touched domain.ChecklistItem
	c, err := s.store.Mutate(ctx, owner, date, func(c *domain.Checklist) error {
		item, err := op(c)
		if err != nil {
			return err
		}
		touched = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newChecklistView(owner, date, c, &touched), nil
}

func newChecklistView(owner int64, date domain.Date, c *domain.Checklist, item *domain.ChecklistItem) *ChecklistView {
	return &ChecklistView{
		Owner:     owner,
		Date:      date,
		Checklist: c,
		Snapshot:  checklist.Snapshot(c),
		Item:      item,
	}
}

func itemFields(owner int64, date domain.Date, itemID int) map[string]any {
	fields := map[string]any{
		"owner": owner,
		"date":  date.String(),
	}
	if itemID > 0 {
		fields["item_id"] = itemID
	}
	return fields
}
