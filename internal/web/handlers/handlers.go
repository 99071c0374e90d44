package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/auth"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/maintenance"
)

const (
	// DefaultPageLimit is used when a listing has no limit parameter.
	DefaultPageLimit = 20
	// MaxPageLimit caps the limit parameter.
	MaxPageLimit = 100

	maxBodyBytes = 1 << 20
)

// VersionInfo holds application version information
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Handlers contains all HTTP handlers
type Handlers struct {
	db           *database.DB
	authService  *auth.AuthService
	scheduler    *maintenance.Scheduler
	versionInfo  VersionInfo
	secureCookie bool
}

// New creates a new Handlers instance. scheduler may be nil.
func New(db *database.DB, authService *auth.AuthService, scheduler *maintenance.Scheduler, secureCookie bool) *Handlers {
	return &Handlers{
		db:           db,
		authService:  authService,
		scheduler:    scheduler,
		secureCookie: secureCookie,
	}
}

// SetVersionInfo sets the build information reported by the health endpoint.
func (h *Handlers) SetVersionInfo(version, commit, date string) {
	h.versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respond sends a success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondPage sends a success envelope with pagination.
func respondPage(w http.ResponseWriter, data any, p pageParams, total int64) {
	pages := 0
	if p.limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.limit)))
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:    true,
		Data:       data,
		Pagination: &Pagination{Page: p.page, Limit: p.limit, Total: total, Pages: pages},
	})
}

// JSONError sends an error envelope.
func JSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// errorStatus maps a repository error to an HTTP status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case database.IsInputError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, database.ErrInsufficientStock):
		return http.StatusConflict, err.Error()
	case database.IsConflict(err):
		return http.StatusConflict, "conflicts with an existing record"
	case errors.Is(err, database.ErrConnectionLost):
		return http.StatusInternalServerError, "database unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError logs server-side failures and sends the mapped error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request failed")
	}
	JSONError(w, status, msg)
}

// respondMatched sends the updated entity, or 404 when the update matched no row.
func respondMatched[T any](w http.ResponseWriter, r *http.Request, ok bool, err error, get func() (*T, error)) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		JSONError(w, http.StatusNotFound, "not found")
		return
	}
	v, err := get()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

// respondDeleted sends 200 for a deleted row and 404 when nothing matched.
func respondDeleted(w http.ResponseWriter, r *http.Request, ok bool, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		JSONError(w, http.StatusNotFound, "not found")
		return
	}
	respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

// decodeJSON reads a JSON request body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", database.ErrInvalidValue)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", database.ErrInvalidValue, err)
	}
	return nil
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", database.ErrInvalidValue)
	}
	return id, nil
}

type pageParams struct {
	page  int
	limit int
}

func (p pageParams) Page() database.Page {
	return database.Page{Limit: p.limit, Offset: (p.page - 1) * p.limit}
}

// parsePage reads page and limit query parameters.
func parsePage(r *http.Request) (pageParams, error) {
	return parsePageDefault(r, DefaultPageLimit)
}

// parsePageDefault is parsePage with limit defaulting to defaultLimit,
// clamped to [1, MaxPageLimit].
func parsePageDefault(r *http.Request, defaultLimit int) (pageParams, error) {
	p := pageParams{page: 1, limit: min(max(defaultLimit, 1), MaxPageLimit)}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: page must be a positive integer", database.ErrInvalidValue)
		}
		p.page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: limit must be a positive integer", database.ErrInvalidValue)
		}
		p.limit = min(n, MaxPageLimit)
	}
	return p, nil
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, key string) (*int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", database.ErrInvalidValue, key)
	}
	return &n, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", database.ErrInvalidValue, key)
	}
	return &b, nil
}

// NotFound is the router's JSON 404 handler.
func NotFound(w http.ResponseWriter, r *http.Request) {
	JSONError(w, http.StatusNotFound, "route not found")
}

// MethodNotAllowed is the router's JSON 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// applyCookieSecurity sets Secure/SameSite defaults based on environment.
func (h *Handlers) applyCookieSecurity(c *http.Cookie) {
	c.SameSite = http.SameSiteLaxMode
	if h.secureCookie {
		c.Secure = true
	}
}
