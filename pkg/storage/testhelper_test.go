package storage

import (
	"testing"
	"time"

	"moveout/pkg/models"
	"moveout/pkg/utils"
)

const testPhoto = "data:image/png;base64,iVBORw0KGgo="

func newTestItem(t *testing.T, title string) *models.SaleItem {
	t.Helper()
	return &models.SaleItem{
		ID:                  utils.GenerateItemID(),
		Title:               title,
		OriginalDescription: "raw " + title,
		EnhancedDescription: "A lovely " + title,
		Price:               35,
		Category:            "Furniture",
		Condition:           "Good",
		Photos:              []string{testPhoto},
		FacebookContent:     "fb " + title,
		CraigslistContent:   "cl " + title,
		WhatsappContent:     "wa " + title,
		CreatedAt:           time.Now().UTC().Truncate(time.Millisecond),
	}
}

func openTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
