package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"moveout/pkg/errors"
	"moveout/pkg/models"
	"moveout/pkg/storage"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-2.0-flash-001"

const promptTemplate = `
Analyze this moving sale item based on the provided photos and user description.
User input: %q

Tasks:
1. Identify the item and its main features.
2. Assess the condition (new, like new, very good, good, fair).
3. If an Amazon or product link is provided in the description, try to incorporate technical specs if possible from the URL text.
4. Generate a catchy professional title.
5. Pick a category from: %s.
6. Suggest a fair market price based on condition and description (number only).
7. Write an enhanced, professional, and persuasive description.
8. Generate specific content for Facebook Marketplace (with hashtags), Craigslist (local details), and WhatsApp (concise).

Return ONLY a JSON object matching the requested schema.
`

var listingFieldNames = []string{
	"title", "category", "condition", "suggestedPrice",
	"enhancedDescription", "facebookContent", "craigslistContent", "whatsappContent",
}

// Gemini drafts listings with a multimodal Gemini model
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini analyzer. An empty model name uses DefaultModel.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.ErrAnalysisUnavailable
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeAnalysis, "GEMINI_CLIENT", "failed to create Gemini client")
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = listingSchema()

	return &Gemini{client: client, model: model}, nil
}

func listingSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(listingFieldNames))
	for _, name := range listingFieldNames {
		props[name] = &genai.Schema{Type: genai.TypeString}
	}
	props["suggestedPrice"] = &genai.Schema{Type: genai.TypeNumber}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   listingFieldNames,
	}
}

// Analyze sends every photo plus the prompt in a single request.
func (g *Gemini) Analyze(ctx context.Context, photos []string, rawText string) (models.ListingFields, error) {
	parts, err := photoParts(photos)
	if err != nil {
		return models.ListingFields{}, err
	}
	prompt := fmt.Sprintf(promptTemplate, rawText, strings.Join(models.Categories, ", "))
	parts = append(parts, genai.Text(prompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return models.ListingFields{}, errors.Wrap(err, errors.ErrTypeAnalysis, "GEMINI_REQUEST", "Gemini request failed")
	}

	txt, err := responseText(resp)
	if err != nil {
		return models.ListingFields{}, err
	}
	return parseListing(txt)
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	return g.client.Close()
}

func photoParts(photos []string) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(photos)+1)
	for i, p := range photos {
		photo, err := storage.DecodeDataURL(p)
		if err != nil {
			return nil, errors.ErrAnalysisMalformed.WithCause(err).WithContext("photo", i)
		}
		mimeType := photo.ContentType
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: photo.Data})
	}
	return parts, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.ErrAnalysisMalformed.WithContext("reason", "empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.ErrAnalysisMalformed.WithContext("reason", "no text in response")
	}
	return sb.String(), nil
}

// geminiReply mirrors the response schema. Pointers distinguish a missing
// key from an empty value.
type geminiReply struct {
	Title               *string `json:"title"`
	Category            *string `json:"category"`
	Condition           *string `json:"condition"`
	SuggestedPrice      any     `json:"suggestedPrice"`
	EnhancedDescription *string `json:"enhancedDescription"`
	FacebookContent     *string `json:"facebookContent"`
	CraigslistContent   *string `json:"craigslistContent"`
	WhatsappContent     *string `json:"whatsappContent"`
}

func parseListing(txt string) (models.ListingFields, error) {
	var reply geminiReply
	if err := json.Unmarshal([]byte(txt), &reply); err != nil {
		return models.ListingFields{}, errors.ErrAnalysisMalformed.WithCause(err)
	}

	var missing []string
	str := func(name string, v *string) string {
		if v == nil {
			missing = append(missing, name)
			return ""
		}
		return *v
	}
	fields := models.ListingFields{
		Title:               str("title", reply.Title),
		Category:            str("category", reply.Category),
		Condition:           str("condition", reply.Condition),
		EnhancedDescription: str("enhancedDescription", reply.EnhancedDescription),
		FacebookContent:     str("facebookContent", reply.FacebookContent),
		CraigslistContent:   str("craigslistContent", reply.CraigslistContent),
		WhatsappContent:     str("whatsappContent", reply.WhatsappContent),
	}
	if reply.SuggestedPrice == nil {
		missing = append(missing, "suggestedPrice")
	}
	if len(missing) > 0 {
		return models.ListingFields{}, errors.ErrAnalysisMalformed.WithContext("missing", missing)
	}

	fields.SuggestedPrice = models.CoercePrice(reply.SuggestedPrice)
	return fields, nil
}
