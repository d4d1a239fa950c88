package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sunbk201/xlink/internal/config"
	applog "github.com/sunbk201/xlink/internal/log"
	"github.com/sunbk201/xlink/internal/rewrite"
	"github.com/sunbk201/xlink/internal/rule"
	"github.com/sunbk201/xlink/internal/store"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *APIServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": s.version,
	})
}

type configResponse struct {
	config.Settings
	ActiveMode string `json:"activeMode"`
}

func (s *APIServer) currentConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := s.live.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		Settings:   settings,
		ActiveMode: s.live.Snapshot().Mode.String(),
	})
}

func (s *APIServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.currentConfig(w, r)
}

// handleUpdateConfig applies a partial update. Unknown modes and invalid
// rules are refused here even though the engine would tolerate them.
func (s *APIServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var p config.Patch
	if !decodeBody(w, r, &p) {
		return
	}

	if p.RewriteMode != nil {
		m, err := rewrite.ParseMode(*p.RewriteMode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		name := m.String()
		p.RewriteMode = &name
	}
	if p.CustomRewrites != nil {
		for i, rc := range *p.CustomRewrites {
			if err := config.Validator().Struct(rc); err != nil {
				writeError(w, http.StatusBadRequest, (&rule.RuleError{Index: i, Name: rc.Name, Pattern: rc.Pattern, Op: rule.OpValidate, Err: err}).Error())
				return
			}
		}
	}

	if err := s.live.Set(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.currentConfig(w, r)
}

type modeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *APIServer) handleModes(w http.ResponseWriter, r *http.Request) {
	modes := rewrite.Modes()
	out := make([]modeInfo, 0, len(modes))
	for _, m := range modes {
		out = append(out, modeInfo{Name: m.String(), Description: m.Description()})
	}
	writeJSON(w, http.StatusOK, out)
}

type rewriteRequest struct {
	URL  string   `json:"url,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

func (s *APIServer) handleRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := s.live.Snapshot()
	evaluate := func(raw string) rewrite.Outcome {
		o := rewrite.Evaluate(raw, cfg)
		applog.LogOutcome("api", o)
		s.recorder.Record(o)
		return o
	}

	if req.URLs == nil {
		writeJSON(w, http.StatusOK, evaluate(req.URL))
		return
	}
	out := make([]rewrite.Outcome, 0, len(req.URLs))
	for _, raw := range req.URLs {
		out = append(out, evaluate(raw))
	}
	writeJSON(w, http.StatusOK, out)
}

type ruleView struct {
	config.Rule
	Index   int    `json:"index"`
	Dialect string `json:"dialect,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *APIServer) handleRules(w http.ResponseWriter, r *http.Request) {
	settings, err := s.live.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ruleView, 0, len(settings.CustomRewrites))
	for i, rc := range settings.CustomRewrites {
		v := ruleView{Rule: rc, Index: i + 1}
		dialect, err := rule.Check(i, rc, s.cfg.MatchTimeout)
		v.Dialect = string(dialect)
		if err != nil {
			v.Error = err.Error()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *APIServer) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var rc config.Rule
	if !decodeBody(w, r, &rc) {
		return
	}
	added, err := store.AddRule(r.Context(), s.live, rc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *APIServer) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	toggled, err := store.ToggleRule(r.Context(), s.live, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

func (s *APIServer) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	deleted, err := store.DeleteRule(r.Context(), s.live, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (s *APIServer) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrRuleFields):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotFound, "statistics disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rewrite": s.recorder.RewriteRecordList.Records(),
		"pass":    s.recorder.PassThroughRecordList.Records(),
	})
}
