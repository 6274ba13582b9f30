package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"moveout/pkg/errors"
	"moveout/pkg/middleware"
	"moveout/pkg/models"
	"moveout/pkg/services"
	"moveout/pkg/session"
	"moveout/pkg/storage"
)

// maxBodyBytes bounds request bodies; five data-URL photos fit comfortably
const maxBodyBytes = 64 << 20

// APIHandlers contains API endpoint handlers
type APIHandlers struct {
	items     *services.ItemService
	session   *session.Manager
	store     storage.Store
	publicURL string
}

// NewAPIHandlers creates a new API handlers instance. publicURL is the base
// of shared catalog links.
func NewAPIHandlers(items *services.ItemService, sess *session.Manager, store storage.Store, publicURL string) *APIHandlers {
	return &APIHandlers{
		items:     items,
		session:   sess,
		store:     store,
		publicURL: publicURL,
	}
}

// Routes mounts the API under r
func (h *APIHandlers) Routes(r chi.Router) {
	r.Get("/catalog", h.CatalogHandler)
	r.Get("/suggestions", h.SuggestionsHandler)
	r.Get("/session", h.GetSessionHandler)
	r.Put("/session/admin", h.SetAdminHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.session))

		r.Get("/items", h.ListItemsHandler)
		r.Get("/items/stats", h.StatsHandler)
		r.Post("/items/analyze", h.AnalyzeHandler)
		r.Post("/items", h.PublishHandler)
		r.Post("/items/{id}/sold", h.ToggleSoldHandler)
		r.Delete("/items/{id}", h.DeleteItemHandler)
		r.Get("/items/{id}/photos/{index}", h.PhotoHandler)
		r.Get("/items/{id}/share", h.ShareHandler)
		r.Post("/items/{id}/quarantine", h.QuarantineHandler)

		r.Get("/draft", h.GetDraftHandler)
		r.Put("/draft", h.EditDraftHandler)
		r.Post("/draft/photos", h.AddDraftPhotosHandler)
		r.Post("/draft/resume", h.ResumeDraftHandler)
		r.Delete("/draft", h.DiscardDraftHandler)

		r.Post("/backup", h.BackupHandler)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrInvalidRequest.WithCause(err)
	}
	return nil
}

// itemPayload accepts a price of any JSON type; it is coerced on the way in.
type itemPayload struct {
	models.SaleItem
	Price interface{} `json:"price"`
}

func (p itemPayload) toItem() *models.SaleItem {
	item := p.SaleItem
	item.Price = models.CoercePrice(p.Price)
	return &item
}

// draftResponse is a draft plus the outcome of the latest autosave.
type draftResponse struct {
	*models.SaleItem
	LastSaveError *errors.FrontendError `json:"lastSaveError,omitempty"`
}

// publishResponse is a published item plus anything that went wrong after
// the write.
type publishResponse struct {
	*models.SaleItem
	Warnings []*errors.FrontendError `json:"warnings,omitempty"`
}

func (h *APIHandlers) lastSaveError() *errors.FrontendError {
	if err := h.items.DraftSaveError(); err != nil {
		return errors.ToFrontendError(err)
	}
	return nil
}

func (h *APIHandlers) catalogShareBase(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

// SuggestionsHandler returns the category and condition lists offered by the
// editor
func (h *APIHandlers) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": models.Categories,
		"conditions": models.Conditions,
	})
}

// CatalogHandler returns the public catalog, optionally filtered by category
func (h *APIHandlers) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	available, err := h.items.Catalog(r.Context(), models.CategoryAll)
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}

	base := h.catalogShareBase(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":        services.FilterByCategory(available, category),
		"categories":   services.Categories(available),
		"shareUrl":     services.CatalogShareURL(base, category),
		"shareMessage": services.CatalogShareMessage(category),
	})
}

// GetSessionHandler reports the admin flag
func (h *APIHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"admin": h.session.IsAdmin()})
}

// SetAdminHandler toggles admin mode
func (h *APIHandlers) SetAdminHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Admin *bool `json:"admin"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteJSON(w, err)
		return
	}
	if req.Admin == nil {
		errors.WriteJSON(w, errors.ErrInvalidRequest.WithContext("field", "admin"))
		return
	}

	if err := h.session.SetAdmin(*req.Admin); err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"admin": *req.Admin})
}

// ListItemsHandler returns every published item, newest first
func (h *APIHandlers) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.Items(r.Context())
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// StatsHandler returns the dashboard counters
func (h *APIHandlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.Items(r.Context())
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ComputeStats(items))
}

// AnalyzeHandler creates a draft from photos and a description
func (h *APIHandlers) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Photos      []string `json:"photos"`
		Description string   `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteJSON(w, err)
		return
	}

	item, err := h.items.Create(r.Context(), req.Photos, req.Description)
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// PublishHandler publishes the reviewed draft
func (h *APIHandlers) PublishHandler(w http.ResponseWriter, r *http.Request) {
	var req itemPayload
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteJSON(w, err)
		return
	}

	result, err := h.items.Publish(r.Context(), req.toItem())
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{SaleItem: result.Item, Warnings: result.Warnings})
}

// ToggleSoldHandler flips the sold flag
func (h *APIHandlers) ToggleSoldHandler(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.ToggleSold(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItemHandler deletes an item; the caller must pass confirm=true
func (h *APIHandlers) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	if err := h.items.Delete(r.Context(), chi.URLParam(r, "id"), confirmed); err != nil {
		errors.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PhotoHandler serves one photo as image bytes
func (h *APIHandlers) PhotoHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		errors.WriteJSON(w, errors.ErrPhotoNotFound.WithContext("index", chi.URLParam(r, "index")))
		return
	}

	photo, err := h.items.Photo(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(photo.Data)
}

// ShareHandler returns per-platform share payloads for an item
func (h *APIHandlers) ShareHandler(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets":    services.ShareTargets(item),
		"inquiryUrl": services.InquiryURL(item),
	})
}

// QuarantineHandler moves an unreadable item file aside
func (h *APIHandlers) QuarantineHandler(w http.ResponseWriter, r *http.Request) {
	q, ok := h.store.(storage.Quarantiner)
	if !ok {
		errors.WriteJSON(w, errors.ErrUnsupported.WithContext("op", "quarantine"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := q.Quarantine(id); err != nil {
		errors.WriteJSON(w, err)
		return
	}
	h.items.MarkStale(storage.Change{ID: id, Op: storage.ChangeRemove})
	w.WriteHeader(http.StatusNoContent)
}

// GetDraftHandler reports whether a draft from an earlier session is pending
// and whether the latest autosave failed.
func (h *APIHandlers) GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.items.PendingDraft()
	writeJSON(w, http.StatusOK, struct {
		Pending       bool                  `json:"pending"`
		Draft         *models.SaleItem      `json:"draft"`
		LastSaveError *errors.FrontendError `json:"lastSaveError,omitempty"`
	}{ok, draft, h.lastSaveError()})
}

// EditDraftHandler accepts an edited draft and schedules an autosave
func (h *APIHandlers) EditDraftHandler(w http.ResponseWriter, r *http.Request) {
	var req itemPayload
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteJSON(w, err)
		return
	}

	item, err := h.items.Edit(r.Context(), req.toItem())
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, draftResponse{SaleItem: item, LastSaveError: h.lastSaveError()})
}

// AddDraftPhotosHandler appends photos to the draft being edited
func (h *APIHandlers) AddDraftPhotosHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string   `json:"id"`
		Photos []string `json:"photos"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteJSON(w, err)
		return
	}

	item, err := h.items.AddPhotos(r.Context(), req.ID, req.Photos)
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, draftResponse{SaleItem: item, LastSaveError: h.lastSaveError()})
}

// ResumeDraftHandler resumes the pending draft
func (h *APIHandlers) ResumeDraftHandler(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.items.ResumeDraft()
	if !ok {
		errors.WriteJSON(w, errors.ErrNoPendingDraft)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// DiscardDraftHandler throws the draft away
func (h *APIHandlers) DiscardDraftHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DiscardDraft(r.Context()); err != nil {
		errors.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BackupHandler archives the store
func (h *APIHandlers) BackupHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.store.(storage.Backupper)
	if !ok {
		errors.WriteJSON(w, errors.ErrUnsupported.WithContext("op", "backup"))
		return
	}

	path, err := b.Backup(r.Context())
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// HealthHandler is a liveness probe
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// isAPIPath reports whether a path belongs to the JSON API
func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}
