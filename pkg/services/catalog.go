package services

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"moveout/pkg/models"
)

// SortNewestFirst orders items by creation time, newest first. Ties fall
// back to ID so the order is stable across reads.
func SortNewestFirst(items []*models.SaleItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// FilterByCategory keeps items whose category matches exactly. An empty
// category or CategoryAll disables filtering.
func FilterByCategory(items []*models.SaleItem, category string) []*models.SaleItem {
	out := make([]*models.SaleItem, 0, len(items))
	for _, item := range items {
		if category == "" || category == models.CategoryAll || item.Category == category {
			out = append(out, item)
		}
	}
	return out
}

// Available drops sold items
func Available(items []*models.SaleItem) []*models.SaleItem {
	out := make([]*models.SaleItem, 0, len(items))
	for _, item := range items {
		if !item.IsSold {
			out = append(out, item)
		}
	}
	return out
}

// Categories returns CategoryAll followed by each distinct category in
// sorted order.
func Categories(items []*models.SaleItem) []string {
	seen := make(map[string]struct{})
	var unique []string
	for _, item := range items {
		if item.Category == "" || item.Category == models.CategoryAll {
			continue
		}
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		unique = append(unique, item.Category)
	}
	sort.Strings(unique)
	return append([]string{models.CategoryAll}, unique...)
}

// Stats summarizes the inventory for the admin dashboard
type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Sold        int `json:"sold"`
	ActiveValue int `json:"activeValue"`
}

// ComputeStats counts items and sums the asking price of unsold ones
func ComputeStats(items []*models.SaleItem) Stats {
	var s Stats
	for _, item := range items {
		s.Total++
		if item.IsSold {
			s.Sold++
			continue
		}
		s.Active++
		s.ActiveValue += item.Price
	}
	return s
}

// Share platforms
const (
	PlatformFacebook   = "Facebook"
	PlatformCraigslist = "Craigslist"
	PlatformWhatsApp   = "WhatsApp"
)

// ShareTarget is the text to paste and the page to open for one platform
type ShareTarget struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
	URL      string `json:"url"`
}

// ShareTargets builds the per-platform share payloads for an item
func ShareTargets(item *models.SaleItem) []ShareTarget {
	return []ShareTarget{
		{
			Platform: PlatformFacebook,
			Content:  item.FacebookContent,
			URL:      "https://www.facebook.com/marketplace/create",
		},
		{
			Platform: PlatformCraigslist,
			Content:  item.CraigslistContent,
			URL:      "https://www.craigslist.org",
		},
		{
			Platform: PlatformWhatsApp,
			Content:  item.WhatsappContent,
			URL:      "https://wa.me/?text=" + encodeComponent(item.WhatsappContent),
		},
	}
}

// InquiryURL is the WhatsApp link a buyer uses to ask about an item
func InquiryURL(item *models.SaleItem) string {
	msg := "Hi! I'm interested in your " + item.Title + " for $" + strconv.Itoa(item.Price) + ". Is it still available?"
	return "https://wa.me/?text=" + encodeComponent(msg)
}

// CatalogShareURL links to the public catalog, pre-filtered when category
// is a real category.
func CatalogShareURL(base, category string) string {
	if category == "" || category == models.CategoryAll {
		return base
	}
	return base + "?category=" + encodeComponent(category)
}

// CatalogShareMessage is the text that accompanies a shared catalog link
func CatalogShareMessage(category string) string {
	if category == "" || category == models.CategoryAll {
		return "Check out everything in my moving sale!"
	}
	return "Check out the " + category + " items in my moving sale!"
}

// encodeComponent escapes s for use as a single query value, with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
