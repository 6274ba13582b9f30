package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxPhotos is the number of photos a single listing can carry.
const MaxPhotos = 5

// CategoryAll is the catalog filter sentinel that disables filtering.
const CategoryAll = "All"

// Categories lists the category suggestions offered by the editor.
var Categories = []string{
	"Furniture", "Electronics", "Kitchen", "Home Decor", "Baby/Kids",
	"Garden", "Tools", "Books", "Other",
}

// Conditions lists the condition suggestions offered by the editor.
var Conditions = []string{"New", "Like New", "Very Good", "Good", "Fair", "As Is"}

// SaleItem is a single moving-sale listing, either drafted or published
type SaleItem struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	OriginalDescription string    `json:"originalDescription"`
	EnhancedDescription string    `json:"enhancedDescription"`
	Price               int       `json:"price"`
	Category            string    `json:"category"`
	Condition           string    `json:"condition"`
	Photos              []string  `json:"photos"`
	FacebookContent     string    `json:"facebookContent"`
	CraigslistContent   string    `json:"craigslistContent"`
	WhatsappContent     string    `json:"whatsappContent"`
	CreatedAt           time.Time `json:"createdAt"`
	IsSold              bool      `json:"isSold"`
}

// ListingFields is the content drafted by the analysis service
type ListingFields struct {
	Title               string `json:"title"`
	Category            string `json:"category"`
	Condition           string `json:"condition"`
	SuggestedPrice      int    `json:"suggestedPrice"`
	EnhancedDescription string `json:"enhancedDescription"`
	FacebookContent     string `json:"facebookContent"`
	CraigslistContent   string `json:"craigslistContent"`
	WhatsappContent     string `json:"whatsappContent"`
}

// Clone returns a deep copy so callers can hand the item to another goroutine.
func (i *SaleItem) Clone() *SaleItem {
	if i == nil {
		return nil
	}
	c := *i
	if i.Photos != nil {
		c.Photos = append([]string(nil), i.Photos...)
	}
	return &c
}

// Normalize applies the content-model coercions in place.
func (i *SaleItem) Normalize() {
	if i.Price < 0 {
		i.Price = 0
	}
	i.Photos = ClampPhotos(i.Photos)
	if i.Photos == nil {
		i.Photos = []string{}
	}
}

// ApplyListing copies analysis output onto the item.
func (i *SaleItem) ApplyListing(f ListingFields) {
	i.Title = f.Title
	i.Category = f.Category
	i.Condition = f.Condition
	i.Price = CoercePrice(f.SuggestedPrice)
	i.EnhancedDescription = f.EnhancedDescription
	i.FacebookContent = f.FacebookContent
	i.CraigslistContent = f.CraigslistContent
	i.WhatsappContent = f.WhatsappContent
}

// ClampPhotos truncates photos to MaxPhotos, keeping the earliest ones.
func ClampPhotos(photos []string) []string {
	if len(photos) <= MaxPhotos {
		return photos
	}
	return append([]string(nil), photos[:MaxPhotos]...)
}

// DropBlankPhotos removes empty and whitespace-only entries, keeping order.
func DropBlankPhotos(photos []string) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// AddPhotos appends photos in order and drops whatever lands past the cap.
func AddPhotos(existing []string, added ...string) []string {
	out := make([]string, 0, MaxPhotos)
	out = append(out, existing...)
	out = append(out, added...)
	return ClampPhotos(out)
}

// CoercePrice turns arbitrary user or model input into a non-negative whole price.
// Anything unparseable becomes 0.
func CoercePrice(v any) int {
	var f float64
	switch p := v.(type) {
	case int:
		f = float64(p)
	case int32:
		f = float64(p)
	case int64:
		f = float64(p)
	case float32:
		f = float64(p)
	case float64:
		f = p
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(f))
}
