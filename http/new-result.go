package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ls1intum/Artemis-sub011/httpjson"
	"github.com/ls1intum/Artemis-sub011/resultsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
)

func (s *HttpServer) handleNewResult(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validateAgainst(resultSchema, body); err != nil {
		httpjson.WriteErrorJson(w, err.Error(), http.StatusBadRequest, "invalid_payload")
		return
	}

	var request struct {
		PlanKey     string `json:"plan_key"`
		Successful  bool   `json:"successful"`
		CompletedAt string `json:"completed_at"`
		Repos       []struct {
			Slug    string   `json:"slug"`
			Commits []string `json:"commits"`
		} `json:"repos"`
		Tests []struct {
			Name       string `json:"name"`
			Successful bool   `json:"successful"`
			Message    string `json:"message"`
		} `json:"tests"`
		Logs      []string `json:"logs"`
		Analytics *struct {
			AgentSetupMillis int64 `json:"agent_setup_millis"`
			TestMillis       int64 `json:"test_millis"`
			ScaMillis        int64 `json:"sca_millis"`
			TotalMillis      int64 `json:"total_millis"`
			DependencyCount  int   `json:"dependency_count"`
		} `json:"analytics"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	notif := resultsrvc.BuildNotification{
		Successful: request.Successful,
		LogLines:   request.Logs,
	}
	if ts, err := time.Parse(time.RFC3339, request.CompletedAt); err == nil {
		notif.CompletedAt = ts
	}
	for _, repo := range request.Repos {
		notif.Repos = append(notif.Repos, resultsrvc.RepoMeta{
			Slug:    repo.Slug,
			Commits: repo.Commits,
		})
	}
	for _, t := range request.Tests {
		notif.Tests = append(notif.Tests, resultsrvc.TestCaseResult{
			Name:       t.Name,
			Successful: t.Successful,
			Message:    t.Message,
		})
	}
	if request.Analytics != nil {
		notif.Analytics = &submsrvc.BuildLogStatistics{
			AgentSetupMillis: request.Analytics.AgentSetupMillis,
			TestMillis:       request.Analytics.TestMillis,
			ScaMillis:        request.Analytics.ScaMillis,
			TotalMillis:      request.Analytics.TotalMillis,
			DependencyCount:  request.Analytics.DependencyCount,
		}
	}

	res, err := s.resultSrvc.HandleBuildResult(r.Context(), request.PlanKey, notif)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}

	httpjson.WriteSuccessJson(w, mapResult(res))
}
