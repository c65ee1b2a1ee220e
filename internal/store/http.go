package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/sirupsen/logrus"

	"shared-spreadsheet-editor/internal/auth"
	"shared-spreadsheet-editor/internal/export"
	"shared-spreadsheet-editor/internal/sheet"
)

// Handler serves the /api/excel endpoints.
type Handler struct {
	store *FileStore
	log   *logrus.Entry
}

func NewHandler(s *FileStore, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{store: s, log: log.WithField("component", "store")}
}

// Routes mounts the endpoints on mux behind guard, which rejects
// unauthenticated requests.
func (h *Handler) Routes(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.Handle("GET /api/excel", guard(http.HandlerFunc(h.list)))
	mux.Handle("POST /api/excel", guard(http.HandlerFunc(h.create)))
	mux.Handle("GET /api/excel/{id}", guard(http.HandlerFunc(h.get)))
	mux.Handle("PUT /api/excel/{id}", guard(http.HandlerFunc(h.update)))
	mux.Handle("DELETE /api/excel/{id}", guard(http.HandlerFunc(h.remove)))
	mux.Handle("GET /api/excel/{id}/download", guard(http.HandlerFunc(h.download)))
}

type filePayload struct {
	Name    string      `json:"name"`
	Headers []string    `json:"headers"`
	Rows    []sheet.Row `json:"rows"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, sheet.ErrDuplicateHeader):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.WithError(err).Error("store: request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"files": h.store.List()})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req filePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	owner, _ := auth.UserFrom(r.Context())
	f, err := h.store.Create(req.Name, owner, req.Headers, req.Rows)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"file": f})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": f})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req filePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	meta, err := h.store.Update(r.PathValue("id"), req.Name, req.Headers, req.Rows)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": meta})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		http.Error(w, "format must be csv or xlsx", http.StatusBadRequest)
		return
	}
	f, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	doc, err := f.Document()
	if err != nil {
		h.fail(w, err)
		return
	}
	body, contentType, err := export.Encode(sheet.ToGrid(doc), nil, nil, format)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(f.Name+"."+format)))
	_, _ = w.Write(body)
}

// CORS answers preflight requests and sets the allow headers. An empty
// allowed list admits any origin.
func CORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(allowed) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(allowed, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
