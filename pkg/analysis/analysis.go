// Package analysis turns photos and a short description into listing copy.
package analysis

import (
	"context"

	"github.com/rs/zerolog/log"

	"moveout/pkg/errors"
	"moveout/pkg/metrics"
	"moveout/pkg/models"
)

// Analyzer drafts listing content for an item
type Analyzer interface {
	Analyze(ctx context.Context, photos []string, rawText string) (models.ListingFields, error)
}

// Result is the outcome of one analysis call. A failure carries the reason
// and resolves to the deterministic fallback listing.
type Result struct {
	fields models.ListingFields
	reason error
	ok     bool
}

// Success wraps fields returned by the analyzer
func Success(fields models.ListingFields) Result {
	return Result{fields: fields, ok: true}
}

// Failure records why analysis produced nothing usable
func Failure(reason error) Result {
	return Result{reason: reason}
}

// OK reports whether the analyzer succeeded
func (r Result) OK() bool { return r.ok }

// Reason is the failure cause, nil on success
func (r Result) Reason() error { return r.reason }

// Resolve returns the analyzer's fields, or the fallback built from rawText.
func (r Result) Resolve(rawText string) models.ListingFields {
	if r.ok {
		return r.fields
	}
	return Fallback(rawText)
}

// Run calls the analyzer and folds any error into a Failure. It never
// retries.
func Run(ctx context.Context, a Analyzer, photos []string, rawText string) Result {
	if a == nil {
		a = Unavailable{}
	}

	fields, err := a.Analyze(ctx, photos, rawText)
	metrics.ObserveAnalysis(err == nil)
	if err != nil {
		log.Warn().Err(err).Int("photos", len(photos)).Msg("Analysis failed, using fallback listing")
		return Failure(err)
	}
	return Success(fields)
}

// Fallback is the listing used when analysis fails.
func Fallback(rawText string) models.ListingFields {
	enhanced := rawText
	if enhanced == "" {
		enhanced = "No description provided."
	}
	return models.ListingFields{
		Title:               "New Item",
		Category:            "Other",
		Condition:           "Good",
		SuggestedPrice:      20,
		EnhancedDescription: enhanced,
		FacebookContent:     rawText + "\n\n#MovingSale #Local",
		CraigslistContent:   rawText + "\n\nPickup only. Cash preferred.",
		WhatsappContent:     "Moving Sale! Check this out: " + rawText,
	}
}

// Unavailable is used when no analysis backend is configured. Every call
// fails so callers fall back.
type Unavailable struct{}

// Analyze always returns ErrAnalysisUnavailable
func (Unavailable) Analyze(context.Context, []string, string) (models.ListingFields, error) {
	return models.ListingFields{}, errors.ErrAnalysisUnavailable
}
