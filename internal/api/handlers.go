package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNewVerify starts the interactive onboarding flow: it returns
// the login URL the user must visit and the verifier the follow-up
// request must echo back.
func (s *Server) handleNewVerify(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.NewTokenCopyInfo()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// upsertJobConfigRequest is the onboarding completion payload.
type upsertJobConfigRequest struct {
	TokenCopyInfo  models.TokenCopyInfo `json:"tokenCopyInfo"`
	StatInkAPIKey  string               `json:"statInkApiKey"`
	EnabledQueries []string             `json:"enabledQueries"`
	ForcedUserLang string               `json:"forcedUserLang"`
}

// handleUpsertJobConfig completes onboarding: it builds the full token
// chain from the pasted redirect URL, verifies the upload API key and
// stores the config.
func (s *Server) handleUpsertJobConfig(w http.ResponseWriter, r *http.Request) {
	var req upsertJobConfigRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	if req.TokenCopyInfo.RedirectURL == "" || req.TokenCopyInfo.AuthCodeVerifier == "" {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "tokenCopyInfo.redirectUrl and authCodeVerifier are required")
		return
	}
	if req.StatInkAPIKey == "" {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "statInkApiKey is required")
		return
	}

	queries := req.EnabledQueries
	if len(queries) == 0 {
		queries = []string{models.QueryLatestBattleHistories, models.QueryCoopResult}
	}
	for _, q := range queries {
		if !models.IsListingQuery(q) {
			respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "unknown listing query: "+q)
			return
		}
	}

	authCtx, err := s.sessions.BuildFromRedirect(r.Context(), req.TokenCopyInfo)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.statink.VerifyAPIKey(r.Context(), req.StatInkAPIKey); err != nil {
		respondError(w, err)
		return
	}

	cfg := &models.JobConfig{
		ID:             "nin-user-" + authCtx.User.ID,
		AuthContext:    *authCtx,
		Enabled:        true,
		EnabledQueries: queries,
		ForcedUserLang: req.ForcedUserLang,
		StatInkAPIKey:  req.StatInkAPIKey,
	}
	cfg.CorrectUserLang()

	if err := s.configs.Upsert(r.Context(), cfg); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleListJobConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configs.ListAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if configs == nil {
		configs = []*models.JobConfig{}
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetJobConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// handleSetEnabled flips the enabled flag. Re-enabling also clears the
// failure counter so the next cycle starts clean.
func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		cfg, err := s.configs.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}

		cfg.Enabled = enabled
		if enabled {
			cfg.ConsecutiveFailures = 0
			cfg.FailureNotified = false
		}
		if err := s.configs.Upsert(r.Context(), cfg); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, cfg)
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []models.JobRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleListRunTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.runs.ListRunTasks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.JobRunTask{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

// handleDispatch triggers one dispatch cycle outside the schedule.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		respondErrorCode(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dispatcher not running in this process")
		return
	}
	go s.dispatcher.DispatchAll(context.Background())
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "dispatch started"})
}
