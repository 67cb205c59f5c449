package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/httpjson"
)

// handleTestCasesChanged reacts to the test repository of an exercise
// moving: the solution participation gets a TEST submission at the new head
// so the CI re-verifies the sample solution against the updated tests.
func (s *HttpServer) handleTestCasesChanged(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := uuid.Parse(chi.URLParam(r, "exerciseId"))
	if err != nil {
		http.Error(w, "invalid exercise id", http.StatusBadRequest)
		return
	}
	subm, err := s.pushSrvc.HandleTestRepoChange(r.Context(), exerciseID)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}
	httpjson.WriteSuccessJson(w, mapSubmission(subm))
}
