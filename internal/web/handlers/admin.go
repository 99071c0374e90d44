package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/maintenance"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/web/middleware"
)

// UsersList lists accounts, optionally by role.
func (h *Handlers) UsersList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := database.Filter{}
	if role := r.URL.Query().Get("role"); role != "" {
		f["role"] = role
	}
	users, err := h.db.Users.List(r.Context(), f, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Users.Count(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, users, p, total)
}

func (h *Handlers) UserGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	user, err := h.db.Users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user)
}

type userRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handlers) UserCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	user, err := h.authService.CreateUser(r.Context(), deref(req.Name), deref(req.Email), deref(req.Password), deref(req.Role))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, user)
}

// UserUpdate edits an account. The last admin cannot be demoted.
func (h *Handlers) UserUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	current, err := h.db.Users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if req.Role != nil && *req.Role != database.RoleAdmin && current.IsAdmin() {
		if !h.hasOtherAdmin(w, r) {
			return
		}
	}

	patch := &database.UserPatch{Name: req.Name, Email: req.Email, Role: req.Role}
	if patch.Name != nil || patch.Email != nil || patch.Role != nil {
		if _, err := h.db.Users.Update(r.Context(), id, patch); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if req.Password != nil {
		if err := h.authService.UpdatePassword(r.Context(), id, *req.Password); err != nil {
			respondError(w, r, err)
			return
		}
	}

	user, err := h.db.Users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user)
}

// UserDelete removes an account. Admins cannot delete themselves.
func (h *Handlers) UserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if me := middleware.GetUser(r.Context()); me != nil && me.ID == id {
		JSONError(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}
	ok, err := h.db.Users.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

func (h *Handlers) hasOtherAdmin(w http.ResponseWriter, r *http.Request) bool {
	n, err := h.db.Users.CountAdmins(r.Context())
	if err != nil {
		respondError(w, r, err)
		return false
	}
	if n <= 1 {
		JSONError(w, http.StatusBadRequest, "the last admin cannot be demoted")
		return false
	}
	return true
}

// privateSettingPrefixes are hidden from anonymous callers.
var privateSettingPrefixes = []string{"maintenance."}

func settingsView(all map[string]string, admin bool) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(all))
	for k, v := range all {
		if !admin && hasAnyPrefix(k, privateSettingPrefixes) {
			continue
		}
		if json.Valid([]byte(v)) {
			out[k] = json.RawMessage(v)
			continue
		}
		raw, _ := json.Marshal(v)
		out[k] = raw
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// SettingsGet returns the site settings as decoded JSON values.
func (h *Handlers) SettingsGet(w http.ResponseWriter, r *http.Request) {
	all, err := h.db.Settings.All(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, settingsView(all, isAdmin(r)))
}

const maxSettingKey = 100

// SettingsUpdate writes every key of a JSON object body.
func (h *Handlers) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req map[string]json.RawMessage
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	for key, raw := range req {
		if key == "" || len(key) > maxSettingKey {
			JSONError(w, http.StatusBadRequest, "setting keys must be 1 to 100 characters")
			return
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			JSONError(w, http.StatusBadRequest, "invalid value for "+key)
			return
		}
		if err := h.db.Settings.Set(r.Context(), key, compact.String()); err != nil {
			respondError(w, r, err)
			return
		}
	}
	log.Info().Int("keys", len(req)).Msg("Settings updated")
	h.SettingsGet(w, r)
}

func (h *Handlers) SettingDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Settings.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

type healthResponse struct {
	Status        string                  `json:"status"`
	Database      string                  `json:"database"`
	Error         string                  `json:"error,omitempty"`
	SchemaVersion int                     `json:"schema_version,omitempty"`
	Version       VersionInfo             `json:"version"`
	Time          time.Time               `json:"time"`
	Connection    *database.ConnStats     `json:"connection,omitempty"`
	Jobs          []maintenance.JobStatus `json:"jobs,omitempty"`
}

// Health probes the database without reconnecting. It answers 503 when the
// probe fails. Admins also get connection stats and job status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: h.db.State().String(),
		Version:  h.versionInfo,
		Time:     time.Now().UTC(),
	}
	status := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = "database unavailable"
		status = http.StatusServiceUnavailable
	} else if v, err := h.db.SchemaVersion(r.Context()); err == nil {
		resp.SchemaVersion = v
	}

	if isAdmin(r) {
		stats := h.db.Stats()
		resp.Connection = &stats
		if h.scheduler != nil {
			resp.Jobs = h.scheduler.Status()
		}
	}

	if status == http.StatusOK {
		respond(w, status, resp)
		return
	}
	writeJSON(w, status, envelope{Success: false, Data: resp, Error: resp.Error})
}

// MaintenanceRun runs a maintenance job immediately.
func (h *Handlers) MaintenanceRun(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		JSONError(w, http.StatusServiceUnavailable, "scheduler is not running")
		return
	}
	job := chi.URLParam(r, "job")
	if err := h.scheduler.RunNow(r.Context(), job); err != nil {
		log.Error().Err(err).Str("job", job).Msg("Manual maintenance job failed")
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, h.scheduler.Status())
}
