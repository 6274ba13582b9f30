package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"moveout/pkg/analysis"
	"moveout/pkg/drafts"
	"moveout/pkg/errors"
	"moveout/pkg/metrics"
	"moveout/pkg/models"
	"moveout/pkg/storage"
	"moveout/pkg/utils"
)

// ItemService drives an item through its lifecycle: analyzed into a draft,
// edited, published, marked sold and deleted. It keeps the published catalog
// in memory, newest first.
type ItemService struct {
	store     storage.Store
	drafts    *drafts.Manager
	analyzer  analysis.Analyzer
	clock     *utils.Clock
	validator *errors.Validator

	// mutex serializes lifecycle operations and guards the fields below
	mutex   sync.Mutex
	items   []*models.SaleItem
	loaded  bool
	stale   bool
	current *models.SaleItem // draft being edited in this session
}

// NewItemService creates a new item service. A nil analyzer always falls back.
func NewItemService(store storage.Store, dm *drafts.Manager, analyzer analysis.Analyzer) *ItemService {
	if analyzer == nil {
		analyzer = analysis.Unavailable{}
	}
	return &ItemService{
		store:     store,
		drafts:    dm,
		analyzer:  analyzer,
		clock:     utils.NewClock(nil),
		validator: errors.NewValidator(),
	}
}

// Create analyzes photos and a description into a new draft. Blank entries
// and photos past the cap are dropped. Analysis failures fall back to a
// generic listing and are never returned.
func (s *ItemService) Create(ctx context.Context, photos []string, description string) (*models.SaleItem, error) {
	if result := s.validator.ValidatePhotos(photos); !result.IsValid {
		return nil, result.GetFirstError()
	}
	photos = models.ClampPhotos(models.DropBlankPhotos(photos))

	// The analyzer is called without holding the lock so catalog reads
	// are not blocked on the network.
	fields := analysis.Run(ctx, s.analyzer, photos, description).Resolve(description)

	item := &models.SaleItem{
		ID:                  utils.GenerateItemID(),
		OriginalDescription: description,
		Photos:              append([]string(nil), photos...),
		CreatedAt:           s.clock.Next(),
		IsSold:              false,
	}
	item.ApplyListing(fields)
	item.Normalize()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.drafts.SaveNow(ctx, item); err != nil {
		log.Warn().Err(err).Str("id", item.ID).Msg("Failed to save new draft")
	}
	s.current = item.Clone()

	log.Info().Str("id", item.ID).Int("photos", len(item.Photos)).Msg("Draft created")
	return item, nil
}

// Edit normalizes an edited draft and schedules an autosave. The id,
// original description and creation time always come from the known record.
func (s *ItemService) Edit(ctx context.Context, item *models.SaleItem) (*models.SaleItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	edited, err := s.reconcileLocked(ctx, item)
	if err != nil {
		return nil, err
	}

	s.drafts.ScheduleSave(edited)
	s.current = edited.Clone()
	return edited, nil
}

// AddPhotos appends photos to a draft in order and schedules an autosave.
// Blank entries are ignored and whatever lands past the cap is dropped.
func (s *ItemService) AddPhotos(ctx context.Context, id string, photos []string) (*models.SaleItem, error) {
	if result := s.validator.ValidatePhotos(photos); !result.IsValid {
		return nil, result.GetFirstError()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if result := s.validator.ValidateItemID(id); !result.IsValid {
		return nil, result.GetFirstError()
	}
	known, err := s.knownLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	item := known.Clone()
	item.Photos = models.AddPhotos(known.Photos, models.DropBlankPhotos(photos)...)
	edited, err := s.reconcileLocked(ctx, item)
	if err != nil {
		return nil, err
	}

	s.drafts.ScheduleSave(edited)
	s.current = edited.Clone()
	log.Debug().Str("id", id).Int("photos", len(edited.Photos)).Msg("Photos added to draft")
	return edited, nil
}

// reconcileLocked returns a normalized copy of item with immutable fields
// restored from the session draft, the pending draft or the stored record.
func (s *ItemService) reconcileLocked(ctx context.Context, item *models.SaleItem) (*models.SaleItem, error) {
	if item == nil {
		return nil, errors.ErrInvalidRequest.WithContext("reason", "missing item")
	}
	if result := s.validator.ValidateItemID(item.ID); !result.IsValid {
		return nil, result.GetFirstError()
	}

	known, err := s.knownLocked(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	out := item.Clone()
	out.ID = known.ID
	out.OriginalDescription = known.OriginalDescription
	out.CreatedAt = known.CreatedAt
	out.Normalize()
	return out, nil
}

func (s *ItemService) knownLocked(ctx context.Context, id string) (*models.SaleItem, error) {
	if s.current != nil && s.current.ID == id {
		return s.current, nil
	}
	if pending, ok := s.drafts.Pending(); ok && pending.ID == id {
		return pending, nil
	}
	return s.store.Get(ctx, id)
}

// PublishResult is a successful publish. Warnings report follow-up steps
// that failed without undoing it.
type PublishResult struct {
	Item     *models.SaleItem
	Warnings []*errors.FrontendError
}

// Publish writes the item to the catalog and clears the draft. A failed
// write changes nothing. A failed draft clear or catalog refresh after a
// successful write still counts as published and comes back as a warning.
func (s *ItemService) Publish(ctx context.Context, item *models.SaleItem) (*PublishResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	published, err := s.reconcileLocked(ctx, item)
	if err != nil {
		return nil, err
	}
	if result := s.validator.ValidatePhotos(published.Photos); !result.IsValid {
		return nil, result.GetFirstError()
	}
	if result := s.validator.ValidateItem(published); !result.IsValid {
		return nil, result.GetFirstError()
	}

	if err := s.store.Put(ctx, published); err != nil {
		logError(err)
		return nil, err
	}
	metrics.ItemsPublished.Inc()
	result := &PublishResult{Item: published}

	if err := s.drafts.Clear(ctx); err != nil {
		log.Warn().Err(err).Str("id", published.ID).Msg("Published but failed to clear draft")
		result.Warnings = append(result.Warnings, errors.ToFrontendError(err))
	}
	s.current = nil

	if err := s.refreshLocked(ctx); err != nil {
		log.Warn().Err(err).Str("id", published.ID).Msg("Published but catalog refresh failed")
		result.Warnings = append(result.Warnings, errors.ToFrontendError(err))
	}

	log.Info().Str("id", published.ID).Str("category", published.Category).Msg("Item published")
	return result, nil
}

// ToggleSold flips the sold flag of a published item
func (s *ItemService) ToggleSold(ctx context.Context, id string) (*models.SaleItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if result := s.validator.ValidateItemID(id); !result.IsValid {
		return nil, result.GetFirstError()
	}

	updated, err := s.store.Update(ctx, id, func(item *models.SaleItem) error {
		item.IsSold = !item.IsSold
		return nil
	})
	if err != nil {
		logError(err)
		return nil, err
	}

	state := "active"
	if updated.IsSold {
		state = "sold"
	}
	metrics.ItemTransitions.WithLabelValues(state).Inc()

	if err := s.refreshLocked(ctx); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Catalog refresh failed after toggle")
	}
	return updated, nil
}

// Delete removes a published item. Without confirmation nothing happens.
func (s *ItemService) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return errors.ErrConfirmationRequired.WithContext("id", id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if result := s.validator.ValidateItemID(id); !result.IsValid {
		return result.GetFirstError()
	}

	if err := s.store.Delete(ctx, id); err != nil {
		logError(err)
		return err
	}
	metrics.ItemTransitions.WithLabelValues("deleted").Inc()

	if err := s.refreshLocked(ctx); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Catalog refresh failed after delete")
	}
	log.Info().Str("id", id).Msg("Item deleted")
	return nil
}

// Get returns one published item
func (s *ItemService) Get(ctx context.Context, id string) (*models.SaleItem, error) {
	if result := s.validator.ValidateItemID(id); !result.IsValid {
		return nil, result.GetFirstError()
	}
	return s.store.Get(ctx, id)
}

// Photo returns one decoded photo of a published item
func (s *ItemService) Photo(ctx context.Context, id string, index int) (*storage.Photo, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return storage.ItemPhoto(item, index)
}

// Refresh re-reads the catalog from the store
func (s *ItemService) Refresh(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked replaces the in-memory catalog. On failure the previous
// catalog is kept and flagged stale.
func (s *ItemService) refreshLocked(ctx context.Context) error {
	items, err := s.store.GetAll(ctx)
	if err != nil {
		s.stale = true
		return err
	}
	SortNewestFirst(items)
	s.items = items
	s.loaded = true
	s.stale = false
	return nil
}

// MarkStale forces the next read to go to the store. It is the callback for
// changes made to the store from outside this process.
func (s *ItemService) MarkStale(change storage.Change) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stale = true
	log.Debug().Str("id", change.ID).Str("op", string(change.Op)).Msg("Catalog marked stale")
}

// Stale reports whether the in-memory catalog needs a re-read
func (s *ItemService) Stale() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stale || !s.loaded
}

// Items returns every published item, newest first.
func (s *ItemService) Items(ctx context.Context) ([]*models.SaleItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stale || !s.loaded {
		if err := s.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]*models.SaleItem, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out, nil
}

// Catalog returns the public view: unsold items, newest first, limited to
// category unless it is empty or CategoryAll.
func (s *ItemService) Catalog(ctx context.Context, category string) ([]*models.SaleItem, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByCategory(Available(items), category), nil
}

// PendingDraft returns a draft left over from an earlier session
func (s *ItemService) PendingDraft() (*models.SaleItem, bool) {
	return s.drafts.Pending()
}

// ResumeDraft makes the pending draft the one being edited
func (s *ItemService) ResumeDraft() (*models.SaleItem, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	draft, ok := s.drafts.Resume()
	if !ok {
		return nil, false
	}
	s.current = draft.Clone()
	log.Info().Str("id", draft.ID).Msg("Draft resumed")
	return draft, true
}

// DraftSaveError returns the error from the latest autosave, or nil if it
// succeeded.
func (s *ItemService) DraftSaveError() error {
	return s.drafts.LastError()
}

// DiscardDraft throws away the pending or in-progress draft
func (s *ItemService) DiscardDraft(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.drafts.Discard(ctx); err != nil {
		logError(err)
		return err
	}
	s.current = nil
	return nil
}

func logError(err error) {
	if appErr, ok := errors.As(err); ok {
		appErr.Log()
		return
	}
	log.Error().Err(err).Msg("Item operation failed")
}
