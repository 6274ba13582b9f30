package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveout/pkg/analysis"
	"moveout/pkg/drafts"
	"moveout/pkg/errors"
	"moveout/pkg/models"
	"moveout/pkg/storage"
	"moveout/pkg/utils"
)

const testPhoto = "data:image/jpeg;base64,aGVsbG8="

type stubAnalyzer struct {
	fields models.ListingFields
	err    error
	calls  int
}

func (a *stubAnalyzer) Analyze(context.Context, []string, string) (models.ListingFields, error) {
	a.calls++
	return a.fields, a.err
}

// flakyStore fails selected operations on demand.
type flakyStore struct {
	storage.Store
	failPut    bool
	failGetAll bool
	failClear  bool
}

func (f *flakyStore) ClearDrafts(ctx context.Context) error {
	if f.failClear {
		return errors.ErrStoreIO.WithContext("op", "clear_drafts")
	}
	return f.Store.ClearDrafts(ctx)
}

func (f *flakyStore) Put(ctx context.Context, item *models.SaleItem) error {
	if f.failPut {
		return errors.ErrStoreIO.WithContext("op", "put")
	}
	return f.Store.Put(ctx, item)
}

func (f *flakyStore) GetAll(ctx context.Context) ([]*models.SaleItem, error) {
	if f.failGetAll {
		return nil, errors.ErrStoreIO.WithContext("op", "get_all")
	}
	return f.Store.GetAll(ctx)
}

type fixture struct {
	svc      *ItemService
	store    *flakyStore
	drafts   *drafts.Manager
	analyzer *stubAnalyzer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs, err := storage.OpenFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	store := &flakyStore{Store: fs}
	dm := drafts.NewManager(store, 20*time.Millisecond)
	t.Cleanup(func() { dm.Flush() })
	analyzer := &stubAnalyzer{err: fmt.Errorf("analysis offline")}
	return &fixture{
		svc:      NewItemService(store, dm, analyzer),
		store:    store,
		drafts:   dm,
		analyzer: analyzer,
	}
}

func photos(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("data:image/jpeg;base64,cGhvdG8%d", i)
	}
	return out
}

func (f *fixture) publish(t *testing.T, title, category string, price int) *models.SaleItem {
	t.Helper()
	ctx := context.Background()
	item, err := f.svc.Create(ctx, []string{testPhoto}, title)
	require.NoError(t, err)
	item.Title = title
	item.Category = category
	item.Price = price
	result, err := f.svc.Publish(ctx, item)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	return result.Item
}

func TestItemService_CreateEditPublish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, photos(3), "wooden chair")
	require.NoError(t, err)
	assert.Equal(t, 1, f.analyzer.calls)

	// Analysis failed, so the fallback listing is used.
	assert.Equal(t, "New Item", item.Title)
	assert.Equal(t, "Other", item.Category)
	assert.Equal(t, "Good", item.Condition)
	assert.Equal(t, 20, item.Price)
	assert.Equal(t, "wooden chair", item.EnhancedDescription)
	assert.Equal(t, "wooden chair", item.OriginalDescription)
	assert.False(t, item.IsSold)
	assert.Len(t, item.Photos, 3)

	draft, err := f.store.GetLatestDraft(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft, "create persists the draft right away")
	assert.Equal(t, item.ID, draft.ID)

	item.Price = 45
	edited, err := f.svc.Edit(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 45, edited.Price)

	result, err := f.svc.Publish(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, item.ID, result.Item.ID)
	assert.Empty(t, result.Warnings)

	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 45, items[0].Price)

	// The scheduled autosave from Edit must not bring the draft back.
	time.Sleep(60 * time.Millisecond)
	draft, err = f.store.GetLatestDraft(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestItemService_CreateUsesAnalysis(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = nil
	f.analyzer.fields = models.ListingFields{
		Title: "Oak Chair", Category: "Furniture", Condition: "Very Good", SuggestedPrice: 35,
	}

	item, err := f.svc.Create(context.Background(), []string{testPhoto}, "chair")
	require.NoError(t, err)
	assert.Equal(t, "Oak Chair", item.Title)
	assert.Equal(t, "Furniture", item.Category)
	assert.Equal(t, 35, item.Price)
}

func TestItemService_CreateClampsPhotos(t *testing.T) {
	f := newFixture(t)
	all := photos(6)

	item, err := f.svc.Create(context.Background(), all, "lamp")
	require.NoError(t, err)
	assert.Equal(t, all[:models.MaxPhotos], item.Photos)
}

func TestItemService_CreateRequiresPhotos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, nil, "nothing")
	assert.True(t, errors.Is(err, errors.ErrNoPhotos))
	assert.Equal(t, 0, f.analyzer.calls, "no analysis without photos")

	draft, err := f.store.GetLatestDraft(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestItemService_EditKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "desk")
	require.NoError(t, err)

	tampered := item.Clone()
	tampered.OriginalDescription = "rewritten"
	tampered.CreatedAt = time.Unix(0, 0)
	tampered.Price = -8
	tampered.Photos = photos(7)

	edited, err := f.svc.Edit(ctx, tampered)
	require.NoError(t, err)
	assert.Equal(t, "desk", edited.OriginalDescription)
	assert.True(t, item.CreatedAt.Equal(edited.CreatedAt))
	assert.Equal(t, 0, edited.Price)
	assert.Len(t, edited.Photos, models.MaxPhotos)
}

func TestItemService_EditUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Edit(context.Background(), &models.SaleItem{ID: "00000000-0000-4000-8000-000000000000"})
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	_, err = f.svc.Edit(context.Background(), &models.SaleItem{ID: "bad"})
	assert.Error(t, err)
}

func TestItemService_NewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.publish(t, "first", "Books", 1)
	second := f.publish(t, "second", "Books", 2)
	third := f.publish(t, "third", "Books", 3)

	items, err := f.svc.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestItemService_CatalogFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publish(t, "sofa", "Furniture", 100)
	f.publish(t, "tv", "Electronics", 80)
	f.publish(t, "table", "Furniture", 60)

	furniture, err := f.svc.Catalog(ctx, "Furniture")
	require.NoError(t, err)
	assert.Len(t, furniture, 2)
	for _, item := range furniture {
		assert.Equal(t, "Furniture", item.Category)
	}

	all, err := f.svc.Catalog(ctx, models.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unfiltered, err := f.svc.Catalog(ctx, "")
	require.NoError(t, err)
	assert.Len(t, unfiltered, 3)

	none, err := f.svc.Catalog(ctx, "furniture")
	require.NoError(t, err)
	assert.Empty(t, none, "category match is case-sensitive")

	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Electronics", "Furniture"}, Categories(items))
}

func TestItemService_ToggleSold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publish(t, "bike", "Other", 50)

	sold, err := f.svc.ToggleSold(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, sold.IsSold)

	catalog, err := f.svc.Catalog(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, catalog, "sold items are hidden from the public catalog")

	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsSold)

	back, err := f.svc.ToggleSold(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, back.IsSold)

	stored, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, stored.Title)
	assert.Equal(t, item.Price, stored.Price)
	assert.False(t, stored.IsSold)

	_, err = f.svc.ToggleSold(ctx, "00000000-0000-4000-8000-000000000000")
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))
}

func TestItemService_DeleteNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publish(t, "rug", "Home Decor", 30)

	err := f.svc.Delete(ctx, item.ID, false)
	assert.True(t, errors.Is(err, errors.ErrConfirmationRequired))

	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, f.svc.Delete(ctx, item.ID, true))
	items, err = f.svc.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.svc.Get(ctx, item.ID)
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))
}

func TestItemService_FailedPublishChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := f.publish(t, "shelf", "Furniture", 40)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "vase")
	require.NoError(t, err)

	f.store.failPut = true
	_, err = f.svc.Publish(ctx, item)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStoreIO))

	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, existing.ID, items[0].ID)

	draft, err := f.store.GetLatestDraft(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft, "draft survives a failed publish")
	assert.Equal(t, item.ID, draft.ID)
}

func TestItemService_PublishWithFailedRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "mixer")
	require.NoError(t, err)

	f.store.failGetAll = true
	result, err := f.svc.Publish(ctx, item)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, errors.ErrStoreIO.Code, result.Warnings[0].Code)
	assert.True(t, f.svc.Stale())

	_, err = f.svc.Items(ctx)
	assert.Error(t, err)

	f.store.failGetAll = false
	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.False(t, f.svc.Stale())
}

func TestItemService_PublishWithFailedDraftClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "lamp")
	require.NoError(t, err)

	f.store.failClear = true
	result, err := f.svc.Publish(ctx, item)
	require.NoError(t, err, "the item is already in the catalog")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, errors.ErrStoreIO.Code, result.Warnings[0].Code)
	assert.Equal(t, "clear_drafts", result.Warnings[0].Context["op"])

	items, err := f.svc.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
}

func TestItemService_FailedDiscardKeepsDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "stroller")
	require.NoError(t, err)

	dm := drafts.NewManager(f.store, 20*time.Millisecond)
	svc := NewItemService(f.store, dm, analysis.Unavailable{})
	_, err = dm.CheckForPending(ctx)
	require.NoError(t, err)

	f.store.failClear = true
	err = svc.DiscardDraft(ctx)
	assert.True(t, errors.Is(err, errors.ErrStoreIO))

	pending, ok := svc.PendingDraft()
	require.True(t, ok, "a failed discard can be retried")
	assert.Equal(t, item.ID, pending.ID)

	f.store.failClear = false
	require.NoError(t, svc.DiscardDraft(ctx))
	_, ok = svc.PendingDraft()
	assert.False(t, ok)
}

func TestItemService_CreateDropsBlankPhotos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto, " ", ""}, "rug")
	require.NoError(t, err)
	assert.Equal(t, []string{testPhoto}, item.Photos)

	result, err := f.svc.Publish(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, []string{testPhoto}, result.Item.Photos)
}

func TestItemService_AddPhotos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	existing := photos(5)
	item, err := f.svc.Create(ctx, existing, "bookshelf")
	require.NoError(t, err)

	added := []string{"data:image/png;base64,bmV3MQ==", " "}
	for i := 0; i < 5; i++ {
		added = append(added, fmt.Sprintf("data:image/png;base64,bmV3%d", i))
	}
	edited, err := f.svc.AddPhotos(ctx, item.ID, added)
	require.NoError(t, err)
	assert.Equal(t, existing, edited.Photos, "the earliest photos are kept")
	assert.Equal(t, "bookshelf", edited.OriginalDescription)

	// Below the cap the new photos are appended in order.
	item, err = f.svc.Create(ctx, photos(2), "desk")
	require.NoError(t, err)
	edited, err = f.svc.AddPhotos(ctx, item.ID, added[:3])
	require.NoError(t, err)
	assert.Equal(t, append(photos(2), added[0], added[2]), edited.Photos)

	f.drafts.Flush()
	assert.Eventually(t, func() bool {
		draft, err := f.store.GetLatestDraft(ctx)
		return err == nil && draft != nil && len(draft.Photos) == 4
	}, time.Second, 10*time.Millisecond, "the autosave carries the added photos")

	_, err = f.svc.AddPhotos(ctx, item.ID, []string{" "})
	assert.True(t, errors.Is(err, errors.ErrNoPhotos))

	_, err = f.svc.AddPhotos(ctx, utils.GenerateItemID(), []string{testPhoto})
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))
}

func TestItemService_DraftSaveError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, []string{testPhoto}, "bench")
	require.NoError(t, err)
	assert.NoError(t, f.svc.DraftSaveError())
}

func TestItemService_PublishValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "toaster")
	require.NoError(t, err)

	item.Photos = []string{"not-a-data-url"}
	_, err = f.svc.Publish(ctx, item)
	assert.True(t, errors.Is(err, errors.ErrInvalidItem))

	item.Photos = nil
	_, err = f.svc.Publish(ctx, item)
	assert.True(t, errors.Is(err, errors.ErrNoPhotos))
}

func TestItemService_ResumeAndDiscard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Create(ctx, []string{testPhoto}, "crib")
	require.NoError(t, err)

	// A new session over the same store sees the draft.
	dm := drafts.NewManager(f.store, 20*time.Millisecond)
	t.Cleanup(func() { dm.Flush() })
	svc := NewItemService(f.store, dm, analysis.Unavailable{})
	_, err = dm.CheckForPending(ctx)
	require.NoError(t, err)

	pending, ok := svc.PendingDraft()
	require.True(t, ok)
	assert.Equal(t, item.ID, pending.ID)

	resumed, ok := svc.ResumeDraft()
	require.True(t, ok)
	resumed.Title = "Baby Crib"
	edited, err := svc.Edit(ctx, resumed)
	require.NoError(t, err)
	assert.Equal(t, "crib", edited.OriginalDescription)

	require.NoError(t, svc.DiscardDraft(ctx))
	draft, err := f.store.GetLatestDraft(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)

	_, err = svc.Edit(ctx, resumed)
	assert.True(t, errors.Is(err, errors.ErrItemNotFound), "a discarded draft is gone")
}

func TestItemService_MarkStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publish(t, "chair", "Furniture", 10)
	assert.False(t, f.svc.Stale())

	f.svc.MarkStale(storage.Change{ID: "x", Op: storage.ChangeWrite})
	assert.True(t, f.svc.Stale())

	_, err := f.svc.Items(ctx)
	require.NoError(t, err)
	assert.False(t, f.svc.Stale())
}

func TestItemService_Photo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publish(t, "lamp", "Home Decor", 15)

	photo, err := f.svc.Photo(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.ContentType)
	assert.Equal(t, []byte("hello"), photo.Data)

	_, err = f.svc.Photo(ctx, item.ID, 3)
	assert.True(t, errors.Is(err, errors.ErrPhotoNotFound))
}
