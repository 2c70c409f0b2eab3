package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/auth"
	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/middleware"
	"github.com/rpattn/cmdbgraph/internal/service"
)

// Handler exposes the CMDB services over REST.
type Handler struct {
	cis    *service.CIService
	rels   *service.RelationshipService
	impact *service.ImpactService
}

func NewHandler(cis *service.CIService, rels *service.RelationshipService, impact *service.ImpactService) *Handler {
	return &Handler{cis: cis, rels: rels, impact: impact}
}

// Routes returns the full CMDB route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/cmdb/cis", h.createCI)
	mux.HandleFunc("GET /api/cmdb/cis", h.searchCIs)
	mux.HandleFunc("GET /api/cmdb/cis/code/{code}", h.getCIByCode)
	mux.HandleFunc("GET /api/cmdb/cis/{id}", h.getCI)
	mux.HandleFunc("PUT /api/cmdb/cis/{id}", h.updateCI)
	mux.HandleFunc("DELETE /api/cmdb/cis/{id}", h.deleteCI)
	mux.HandleFunc("GET /api/cmdb/cis/{id}/history", h.ciHistory)
	mux.HandleFunc("GET /api/cmdb/cis/{id}/relationships", h.ciRelationships)
	mux.HandleFunc("GET /api/cmdb/cis/{id}/dependencies", h.ciDependencies)
	mux.HandleFunc("GET /api/cmdb/cis/{id}/impact", h.ciImpact)
	mux.HandleFunc("POST /api/cmdb/relationships", h.createRelationship)
	mux.HandleFunc("DELETE /api/cmdb/relationships/{id}", h.deleteRelationship)
	mux.HandleFunc("GET /api/cmdb/statistics", h.statistics)

	return mux
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

func (h *Handler) createCI(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ci, err := h.cis.Create(r.Context(), req, auth.ActorFromContext(r.Context()))
	if err != nil {
		if strings.Contains(err.Error(), "invalid") || strings.Contains(err.Error(), "required") {
			writeBadRequest(w, err.Error())
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ci)
}

func (h *Handler) getCI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	ci, err := h.cis.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if ci == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "configuration item not found"})
		return
	}
	writeJSON(w, http.StatusOK, ci)
}

func (h *Handler) getCIByCode(w http.ResponseWriter, r *http.Request) {
	ci, err := h.cis.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	if ci == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "configuration item not found"})
		return
	}
	writeJSON(w, http.StatusOK, ci)
}

func (h *Handler) updateCI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var update domain.CIUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ci, err := h.cis.Update(r.Context(), id, update, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ci)
}

func (h *Handler) deleteCI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := h.cis.Delete(r.Context(), id, auth.ActorFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) searchCIs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.CIFilter{
		Query:           q.Get("q"),
		CIType:          q.Get("ci_type"),
		Environment:     q.Get("environment"),
		Location:        q.Get("location"),
		Owner:           q.Get("owner"),
		SupportGroup:    q.Get("support_group"),
		Tags:            q["tag"],
		IncludeDisposed: q.Get("include_disposed") == "true",
	}
	if raw := q.Get("ci_class"); raw != "" {
		class := domain.CIClass(raw)
		if !class.Valid() {
			writeBadRequest(w, fmt.Sprintf("unknown ci_class %q", raw))
			return
		}
		filter.Class = &class
	}
	for _, raw := range q["status"] {
		filter.Statuses = append(filter.Statuses, domain.CIStatus(raw))
	}
	for _, raw := range q["criticality"] {
		filter.Criticalities = append(filter.Criticalities, domain.CICriticality(raw))
	}

	page := queryInt(q.Get("page"), 1)
	pageSize := queryInt(q.Get("page_size"), 20)

	items, total, err := h.cis.Search(r.Context(), filter, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (h *Handler) ciHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	entries, err := h.cis.History(r.Context(), id, r.URL.Query().Get("field"), queryInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// relationshipView is a relationship with both endpoints expanded.
type relationshipView struct {
	domain.Relationship
	Source *domain.ConfigurationItem `json:"source_ci,omitempty"`
	Target *domain.ConfigurationItem `json:"target_ci,omitempty"`
}

func (h *Handler) ciRelationships(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	rels, err := h.rels.ListFor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]relationshipView, len(rels))
	loader := middleware.CILoaderFromContext(r.Context())
	for i, rel := range rels {
		views[i] = relationshipView{Relationship: rel}
		if loader == nil {
			continue
		}
		// Loader errors degrade the view to bare edges rather than
		// failing the listing.
		if src, err := loader.Load(r.Context(), rel.SourceID); err == nil {
			views[i].Source = src
		}
		if tgt, err := loader.Load(r.Context(), rel.TargetID); err == nil {
			views[i].Target = tgt
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func traversalParams(r *http.Request) (int, []domain.RelationshipType, error) {
	q := r.URL.Query()
	depth := queryInt(q.Get("depth"), 0)

	var types []domain.RelationshipType
	for _, raw := range q["type"] {
		relType := domain.RelationshipType(raw)
		if !relType.Valid() {
			return 0, nil, fmt.Errorf("unknown relationship type %q", raw)
		}
		types = append(types, relType)
	}
	return depth, types, nil
}

func (h *Handler) ciDependencies(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	depth, types, err := traversalParams(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := h.impact.Dependencies(r.Context(), id, depth, types)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ciImpact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	depth, types, err := traversalParams(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := h.impact.Impact(r.Context(), id, depth, types)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createRelationshipRequest struct {
	SourceID    uuid.UUID               `json:"source_id"`
	TargetID    uuid.UUID               `json:"target_id"`
	Type        domain.RelationshipType `json:"relationship_type"`
	Description string                  `json:"description,omitempty"`
}

func (h *Handler) createRelationship(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	rel, err := h.rels.Create(r.Context(), req.SourceID, req.TargetID, req.Type, req.Description, auth.ActorFromContext(r.Context()))
	if err != nil {
		if strings.Contains(err.Error(), "invalid relationship type") {
			writeBadRequest(w, err.Error())
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (h *Handler) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := h.rels.Delete(r.Context(), id, auth.ActorFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cis.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
