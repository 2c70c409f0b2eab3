package export

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

// Handler exposes the inventory export as a streaming CSV download.
type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := domain.CIFilter{
		Query:           q.Get("q"),
		CIType:          q.Get("ci_type"),
		Environment:     q.Get("environment"),
		Owner:           q.Get("owner"),
		Tags:            q["tag"],
		IncludeDisposed: q.Get("include_disposed") == "true",
	}
	if raw := q.Get("ci_class"); raw != "" {
		class := domain.CIClass(raw)
		if !class.Valid() {
			http.Error(w, fmt.Sprintf("unknown ci_class %q", raw), http.StatusBadRequest)
			return
		}
		filter.Class = &class
	}

	filename := fmt.Sprintf("cmdb-inventory-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	rows, err := h.service.WriteInventory(r.Context(), w, filter)
	if err != nil {
		// Headers are already sent; the broken stream is all we can
		// signal to the client.
		log.Printf("[export] inventory export failed after %d rows: %v", rows, err)
		return
	}
	log.Printf("[export] inventory export completed (rows=%d)", rows)
}
