package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dreamland/internal/consolidate"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/worldservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *worldservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *worldservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pathID parses the {id} URL parameter. It answers 400 and reports false
// when the id is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// CreateDream handles POST /api/dreams.
//
//	@Summary		Record a dream
//	@Tags			dreams
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDreamRequest	true	"Dream to record"
//	@Success		201		{object}	models.Dream
//	@Failure		400		{object}	errResponse
//	@Router			/dreams [post]
func (h *Handler) CreateDream(w http.ResponseWriter, r *http.Request) {
	var req CreateDreamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := worldservice.DreamInput{Cycle: req.Cycle, Content: req.Content, Language: req.Language}
	if req.Date != "" {
		d, err := models.ParseDate(req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		in.Date = d
	}
	dream, err := h.svc.CreateDream(r.Context(), in)
	if err != nil {
		writeError(w, r, "create dream", err)
		return
	}
	writeJSON(w, http.StatusCreated, dream)
}

// ListDreams handles GET /api/dreams.
//
//	@Summary		List dreams newest first
//	@Tags			dreams
//	@Produce		json
//	@Param			skip	query		int	false	"Dreams to skip"
//	@Param			limit	query		int	false	"Page size (default 100, max 1000)"
//	@Success		200		{object}	DreamListResponse
//	@Router			/dreams [get]
func (h *Handler) ListDreams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	dreams, total, err := h.svc.ListDreams(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, "list dreams", err)
		return
	}
	writeJSON(w, http.StatusOK, DreamListResponse{
		Dreams: dreams,
		Total:  total,
		Skip:   max(skip, 0),
		Limit:  worldservice.PageLimit(limit),
	})
}

// GetDream handles GET /api/dreams/{id}.
//
//	@Summary		Get a dream with its links
//	@Tags			dreams
//	@Produce		json
//	@Param			id	path		int	true	"Dream id"
//	@Success		200	{object}	DreamDetail
//	@Failure		404	{object}	errResponse
//	@Router			/dreams/{id} [get]
func (h *Handler) GetDream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.GetDream(r.Context(), id)
	if err != nil {
		writeError(w, r, "get dream", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDream handles DELETE /api/dreams/{id}.
//
//	@Summary		Delete a dream
//	@Tags			dreams
//	@Param			id	path	int	true	"Dream id"
//	@Success		204	"Dream deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/dreams/{id} [delete]
func (h *Handler) DeleteDream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteDream(r.Context(), id); err != nil {
		writeError(w, r, "delete dream", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProcessDream handles POST /api/dreams/{id}/process.
//
//	@Summary		Queue an unprocessed dream again
//	@Tags			dreams
//	@Param			id	path		int	true	"Dream id"
//	@Success		202	{object}	models.Dream
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Router			/dreams/{id}/process [post]
func (h *Handler) ProcessDream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.ProcessDream(r.Context(), id)
	if err != nil {
		writeError(w, r, "process dream", err)
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

// ListLocations handles GET /api/locations.
//
//	@Summary		List locations
//	@Tags			locations
//	@Produce		json
//	@Param			layer	query		string	false	"LOWER, PRIMARY, UPPER or a signed integer"
//	@Success		200		{array}		models.Location
//	@Failure		400		{object}	errResponse
//	@Router			/locations [get]
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	var layer *models.Layer
	if raw := r.URL.Query().Get("layer"); raw != "" {
		l, err := models.ParseLayer(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		layer = &l
	}
	locs, err := h.svc.ListLocations(r.Context(), layer)
	if err != nil {
		writeError(w, r, "list locations", err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

// CreateLocation handles POST /api/locations.
//
//	@Summary		Add a location by hand
//	@Tags			locations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.LocationInput	true	"Location"
//	@Success		201		{object}	models.Location
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/locations [post]
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var in models.LocationInput
	if !decodeBody(w, r, &in) {
		return
	}
	loc, err := h.svc.CreateLocation(r.Context(), in)
	if err != nil {
		writeError(w, r, "create location", err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// GetLocation handles GET /api/locations/{id}.
//
//	@Summary		Get a location
//	@Tags			locations
//	@Produce		json
//	@Param			id	path		int	true	"Location id"
//	@Success		200	{object}	models.Location
//	@Failure		404	{object}	errResponse
//	@Router			/locations/{id} [get]
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loc, err := h.svc.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, r, "get location", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// UpdateLocation handles PATCH /api/locations/{id}.
//
//	@Summary		Change some attributes of a location
//	@Tags			locations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"Location id"
//	@Param			body	body		worldservice.LocationPatch	true	"Attributes to change"
//	@Success		200		{object}	models.Location
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/locations/{id} [patch]
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p worldservice.LocationPatch
	if !decodeBody(w, r, &p) {
		return
	}
	loc, err := h.svc.UpdateLocation(r.Context(), id, p)
	if err != nil {
		writeError(w, r, "update location", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// DeleteLocation handles DELETE /api/locations/{id}.
//
//	@Summary		Delete a location
//	@Tags			locations
//	@Param			id	path	int	true	"Location id"
//	@Success		204	"Location deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/locations/{id} [delete]
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteLocation(r.Context(), id); err != nil {
		writeError(w, r, "delete location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LocationTransits handles GET /api/locations/{id}/transits.
//
//	@Summary		Movements into and out of a location
//	@Tags			locations
//	@Produce		json
//	@Param			id	path		int	true	"Location id"
//	@Success		200	{array}		models.Transit
//	@Failure		404	{object}	errResponse
//	@Router			/locations/{id}/transits [get]
func (h *Handler) LocationTransits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ts, err := h.svc.LocationTransits(r.Context(), id)
	if err != nil {
		writeError(w, r, "location transits", err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

// LocationHistory handles GET /api/locations/{id}/history.
//
//	@Summary		Changelog of a location
//	@Tags			locations
//	@Produce		json
//	@Param			id	path		int	true	"Location id"
//	@Success		200	{array}		models.ChangeLog
//	@Failure		404	{object}	errResponse
//	@Router			/locations/{id}/history [get]
func (h *Handler) LocationHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	changes, err := h.svc.LocationHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, "location history", err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// MergeLocations handles POST /api/locations/merge.
//
//	@Summary		Merge locations that are the same place
//	@Tags			locations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		consolidate.MergeRequest	true	"Sources and target name"
//	@Success		200		{object}	models.Location
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/locations/merge [post]
func (h *Handler) MergeLocations(w http.ResponseWriter, r *http.Request) {
	var req consolidate.MergeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	loc, err := h.svc.MergeLocations(r.Context(), req)
	if err != nil {
		writeError(w, r, "merge locations", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// SplitLocation handles POST /api/locations/{id}/split.
//
//	@Summary		Split a location into several
//	@Tags			locations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"Location id"
//	@Param			body	body		consolidate.SplitRequest	true	"Parts and reference assignment"
//	@Success		200		{object}	SplitResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/locations/{id}/split [post]
func (h *Handler) SplitLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req consolidate.SplitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.SourceID = id
	parts, err := h.svc.SplitLocation(r.Context(), req)
	if err != nil {
		writeError(w, r, "split location", err)
		return
	}
	writeJSON(w, http.StatusOK, SplitResponse{Locations: parts})
}

// ListEntities handles GET /api/entities.
//
//	@Summary		List entities
//	@Tags			entities
//	@Produce		json
//	@Param			location_id	query		int	false	"Only entities owned by this location"
//	@Success		200			{array}		models.Entity
//	@Failure		400			{object}	errResponse
//	@Router			/entities [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	var locationID *int64
	if raw := r.URL.Query().Get("location_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("location_id must be an integer"))
			return
		}
		locationID = &id
	}
	ents, err := h.svc.ListEntities(r.Context(), locationID)
	if err != nil {
		writeError(w, r, "list entities", err)
		return
	}
	writeJSON(w, http.StatusOK, ents)
}

// CreateEntity handles POST /api/entities.
//
//	@Summary		Add an entity by hand
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntityRequest	true	"Entity"
//	@Success		201		{object}	models.Entity
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/entities [post]
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ent, err := h.svc.CreateEntity(r.Context(), req.input())
	if err != nil {
		writeError(w, r, "create entity", err)
		return
	}
	writeJSON(w, http.StatusCreated, ent)
}

// GetEntity handles GET /api/entities/{id}.
//
//	@Summary		Get an entity
//	@Tags			entities
//	@Produce		json
//	@Param			id	path		int	true	"Entity id"
//	@Success		200	{object}	models.Entity
//	@Failure		404	{object}	errResponse
//	@Router			/entities/{id} [get]
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ent, err := h.svc.GetEntity(r.Context(), id)
	if err != nil {
		writeError(w, r, "get entity", err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// Stats handles GET /api/stats.
//
//	@Summary		World statistics
//	@Tags			world
//	@Produce		json
//	@Success		200	{object}	models.WorldStats
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Export handles GET /api/export.
//
//	@Summary		Export the whole world model
//	@Tags			world
//	@Produce		json
//	@Success		200	{object}	models.WorldExport
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Export(r.Context())
	if err != nil {
		writeError(w, r, "export", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="dreamland-export.json"`)
	writeJSON(w, http.StatusOK, out)
}
