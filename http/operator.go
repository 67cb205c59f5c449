package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/checksrvc"
	"github.com/ls1intum/Artemis-sub011/httpjson"
)

func (s *HttpServer) getSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := uuid.Parse(chi.URLParam(r, "submissionId"))
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}
	subm, err := s.ledger.Get(r.Context(), submissionID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	latest, err := s.ledger.Latest(r.Context(), submissionID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	response := struct {
		Submission submissionJson `json:"submission"`
		Latest     *resultJson    `json:"latest_result,omitempty"`
	}{Submission: mapSubmission(subm)}
	if latest != nil {
		mapped := mapResult(latest)
		response.Latest = &mapped
	}
	httpjson.WriteSuccessJson(w, response)
}

func (s *HttpServer) triggerBuild(w http.ResponseWriter, r *http.Request) {
	participationID, err := uuid.Parse(chi.URLParam(r, "participationId"))
	if err != nil {
		http.Error(w, "invalid participation id", http.StatusBadRequest)
		return
	}
	subm, err := s.pushSrvc.TriggerInstructorBuild(r.Context(), participationID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	httpjson.WriteSuccessJson(w, mapSubmission(subm))
}

func (s *HttpServer) getBuildLogStatistics(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := uuid.Parse(chi.URLParam(r, "exerciseId"))
	if err != nil {
		http.Error(w, "invalid exercise id", http.StatusBadRequest)
		return
	}
	stats, err := s.ledger.AverageBuildLogStats(r.Context(), exerciseID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	httpjson.WriteSuccessJson(w, mapBuildLogStats(stats))
}

func (s *HttpServer) lockAll(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := uuid.Parse(chi.URLParam(r, "exerciseId"))
	if err != nil {
		http.Error(w, "invalid exercise id", http.StatusBadRequest)
		return
	}
	outcome, err := s.accessSrvc.LockAll(r.Context(), exerciseID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	httpjson.WriteSuccessJson(w, outcome)
}

func (s *HttpServer) unlockAll(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := uuid.Parse(chi.URLParam(r, "exerciseId"))
	if err != nil {
		http.Error(w, "invalid exercise id", http.StatusBadRequest)
		return
	}
	outcome, err := s.accessSrvc.UnlockAll(r.Context(), exerciseID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	httpjson.WriteSuccessJson(w, outcome)
}

func (s *HttpServer) checkConsistency(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := uuid.Parse(chi.URLParam(r, "exerciseId"))
	if err != nil {
		http.Error(w, "invalid exercise id", http.StatusBadRequest)
		return
	}
	var request struct {
		ProjectKey              string   `json:"project_key"`
		TemplateRepositoryURI   string   `json:"template_repository_uri"`
		SolutionRepositoryURI   string   `json:"solution_repository_uri"`
		TestRepositoryURI       string   `json:"test_repository_uri"`
		AuxiliaryRepositoryURIs []string `json:"auxiliary_repository_uris"`
		TemplatePlanKey         string   `json:"template_plan_key"`
		SolutionPlanKey         string   `json:"solution_plan_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	err = s.checkSrvc.CheckConsistency(r.Context(), checksrvc.SourceExercise{
		ExerciseID:              exerciseID,
		ProjectKey:              request.ProjectKey,
		TemplateRepositoryURI:   request.TemplateRepositoryURI,
		SolutionRepositoryURI:   request.SolutionRepositoryURI,
		TestRepositoryURI:       request.TestRepositoryURI,
		AuxiliaryRepositoryURIs: request.AuxiliaryRepositoryURIs,
		TemplatePlanKey:         request.TemplatePlanKey,
		SolutionPlanKey:         request.SolutionPlanKey,
	})
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	httpjson.WriteSuccessJson(w, map[string]string{"consistency": "ok"})
}

func (s *HttpServer) sweepBuildPlans(w http.ResponseWriter, r *http.Request) {
	report := s.cleanup.SweepBuildPlans(r.Context())
	httpjson.WriteSuccessJson(w, report)
}

func (s *HttpServer) sweepGitCache(w http.ResponseWriter, r *http.Request) {
	report := s.cleanup.SweepGitCache(r.Context())
	httpjson.WriteSuccessJson(w, report)
}
