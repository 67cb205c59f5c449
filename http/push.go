package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/httpjson"
	"github.com/ls1intum/Artemis-sub011/logger"
	"github.com/ls1intum/Artemis-sub011/pushsrvc"
)

func (s *HttpServer) handlePush(w http.ResponseWriter, r *http.Request) {
	participationID, err := uuid.Parse(chi.URLParam(r, "participationId"))
	if err != nil {
		http.Error(w, "invalid participation id", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validateAgainst(pushSchema, body); err != nil {
		httpjson.WriteErrorJson(w, err.Error(), http.StatusBadRequest, "invalid_payload")
		return
	}

	type pushCommit struct {
		Hash      string `json:"hash"`
		Timestamp string `json:"timestamp"`
		Author    string `json:"author"`
	}
	var request struct {
		Commits []pushCommit `json:"commits"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payload := pushsrvc.PushPayload{}
	if len(request.Commits) > 0 {
		last := request.Commits[len(request.Commits)-1]
		payload.CommitHash = last.Hash
		payload.Author = last.Author
		if ts, err := time.Parse(time.RFC3339, last.Timestamp); err == nil {
			payload.Timestamp = ts
		}
	}

	ctx := logger.WithParticipation(r.Context(), participationID.String())
	subm, err := s.pushSrvc.HandlePush(ctx, participationID, payload)
	if err != nil {
		httpjson.HandleError(slog.Default(), w, err)
		return
	}

	httpjson.WriteSuccessJson(w, mapSubmission(subm))
}
