package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

const maxBodyBytes = 1 << 20

// GET /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	active, _ := s.orch.Active()
	resp := StatusResponse{
		Version:      s.cfg.Version,
		Uptime:       time.Since(s.startedAt).Truncate(time.Second).String(),
		StartedAt:    s.startedAt,
		ActiveSlug:   active,
		ProfileCount: s.orch.Registry().Len(),
	}
	if s.observer != nil {
		resp.EventClients = s.observer.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/modes?tier=&category=
func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	reg := s.orch.Registry()
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	list := reg.List()
	if raw := strings.TrimSpace(r.URL.Query().Get("tier")); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil || tier < modes.MinTier || tier > modes.MaxTier {
			writeError(w, ErrBadRequest.withDetails("tier must be an integer between 1 and 10"))
			return
		}
		list = reg.ListByTier(tier)
	} else if category != "" {
		list = reg.ListByCategory(category)
	}

	if category != "" {
		filtered := list[:0]
		for _, p := range list {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []modes.Profile{}
	}
	writeJSON(w, http.StatusOK, ModesResponse{Modes: list, Total: len(list)})
}

// GET /api/v1/modes/{slug}
func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	reg := s.orch.Registry()

	p, err := reg.Get(slug)
	if err != nil {
		s.writeLookupError(w, slug, err)
		return
	}
	resp := ModeResponse{Mode: p}
	if a, ok := reg.Analytics(slug); ok {
		resp.Analytics = &a
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/search?q=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.SearchModes(r.URL.Query().Get("q")))
}

// POST /api/v1/recommend
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var c modes.Context
	if err := decodeBody(r, &c, true); err != nil {
		writeError(w, ErrBadRequest.withDetails(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, RecommendResponse{Recommendations: s.orch.GetRecommendations(c)})
}

// POST /api/v1/switch
func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, ErrBadRequest.withDetails(err.Error()))
		return
	}
	if strings.TrimSpace(req.Slug) == "" {
		writeError(w, ErrBadRequest.withDetails("slug is required"))
		return
	}

	entry, err := s.orch.SwitchMode(r.Context(), req.Slug, req.Context)
	if err != nil {
		if errors.Is(err, modes.ErrNotFound) {
			s.writeLookupError(w, req.Slug, err)
			return
		}
		writeError(w, apiError(err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// POST /api/v1/deactivate
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DeactivateActive(r.Context()); err != nil {
		writeError(w, apiError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, ErrBadRequest.withDetails(err.Error()))
		return
	}

	var (
		res modes.Result
		err error
	)
	if req.Slug == "" {
		res, err = s.orch.ExecuteActive(r.Context(), req.Task, req.Options())
	} else {
		res, err = s.orch.Execute(r.Context(), req.Slug, req.Task, req.Options())
	}
	if err != nil {
		if errors.Is(err, modes.ErrNotFound) {
			s.writeLookupError(w, req.Slug, err)
			return
		}
		writeError(w, apiError(err))
		return
	}

	status := http.StatusOK
	if errors.Is(res.Err, modes.ErrCapabilityMismatch) {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// GET /api/v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{History: s.orch.History()})
}

// GET /api/v1/export?format=json|yaml
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	export := s.orch.ExportConfig()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, export)
	case "yaml", "yml":
		data, err := yaml.Marshal(export)
		if err != nil {
			writeError(w, ErrInternal.withDetails(err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		writeError(w, ErrUnsupportedMedia.withDetails("format must be json or yaml, got "+format))
	}
}

// writeLookupError answers 404 and suggests near-miss slugs.
func (s *Server) writeLookupError(w http.ResponseWriter, slug string, err error) {
	apiErr := ErrNotFound.withDetails(err.Error())
	if suggestions := s.orch.Registry().Suggest(slug); len(suggestions) > 0 {
		apiErr.Details += "; did you mean: " + strings.Join(suggestions, ", ")
	}
	writeError(w, apiErr)
}

// apiError maps engine errors onto HTTP errors.
func apiError(err error) *APIError {
	var base *APIError
	switch {
	case errors.Is(err, modes.ErrNotFound):
		base = ErrNotFound
	case errors.Is(err, modes.ErrNoActiveMode), errors.Is(err, modes.ErrInvalidTransition):
		base = ErrConflict
	case errors.Is(err, modes.ErrHookTimeout):
		base = ErrGatewayTimeout
	case errors.Is(err, modes.ErrInvalidProfile):
		base = ErrBadRequest
	default:
		base = ErrInternal
	}
	return base.withDetails(err.Error())
}

// decodeBody decodes a JSON request body, rejecting unknown fields. An empty body is
// accepted only when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *APIError) {
	writeJSON(w, e.Code, e)
}
