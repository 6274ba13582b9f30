package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"moveout/pkg/analysis"
	"moveout/pkg/config"
	"moveout/pkg/logger"
	"moveout/pkg/models"
	"moveout/pkg/storage"
	"moveout/pkg/utils"
)

// 1x1 transparent PNG
const placeholderPhoto = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

type sample struct {
	title       string
	description string
	category    string
	condition   string
	price       int
}

var samples = []sample{
	{"Mid-Century Armchair", "Walnut frame, mustard upholstery, no tears", "Furniture", "Very Good", 120},
	{"32\" Smart TV", "Works great, remote included", "Electronics", "Good", 90},
	{"Cast Iron Skillet", "12 inch, well seasoned", "Kitchen", "Like New", 25},
	{"Framed Botanical Prints", "Set of three, 30x40 cm", "Home Decor", "Good", 35},
	{"Convertible Crib", "Mattress not included", "Baby/Kids", "Very Good", 80},
	{"Cordless Drill", "Two batteries and charger", "Tools", "Good", 45},
	{"Paperback Bundle", "About 20 novels, mixed genres", "Books", "Fair", 10},
}

func main() {
	count := flag.Int("n", len(samples), "number of items to create")
	yes := flag.Bool("y", false, "skip the confirmation prompt")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, "console")

	if !*yes {
		fmt.Printf("Add %d sample items to the %s store at %s? [y/N] ", *count, cfg.Backend, cfg.DataPath)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("Aborted")
			return
		}
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	clock := utils.NewClock(nil)
	for i := 0; i < *count; i++ {
		item := sampleItem(samples[i%len(samples)], clock.Next())
		if err := store.Put(ctx, item); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create item: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated item %q with ID: %s\n", item.Title, item.ID)
	}
}

func sampleItem(s sample, createdAt time.Time) *models.SaleItem {
	// Reuse the fallback copy so seeded items carry realistic share text
	listing := analysis.Fallback(s.description)
	listing.Title = s.title
	listing.Category = s.category
	listing.Condition = s.condition
	listing.SuggestedPrice = s.price

	item := &models.SaleItem{
		ID:                  utils.GenerateItemID(),
		OriginalDescription: s.description,
		Photos:              []string{placeholderPhoto},
		CreatedAt:           createdAt,
	}
	item.ApplyListing(listing)
	item.Normalize()
	return item
}
