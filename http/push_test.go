package http_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls1intum/Artemis-sub011/partsrvc"
)

func pushPayload(hash string) map[string]any {
	return map[string]any{
		"commits": []map[string]any{
			{"hash": hash, "timestamp": time.Now().Format(time.RFC3339), "author": "student1"},
		},
	}
}

func TestPushWebhookCreatesSubmission(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-submissions/"+e.student.ID.String(), pushPayload("abc123"))
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	status, data := parseEnvelope(t, w)
	assert.Equal(t, "success", status)
	assert.Equal(t, "abc123", data["commit_hash"])
	assert.Equal(t, "MANUAL", data["type"])
}

func TestPushWebhookReplayReturnsSameSubmission(t *testing.T) {
	e := setupServer(t)
	path := "/public/programming-submissions/" + e.student.ID.String()

	w1 := e.webhook(t, path, pushPayload("abc123"))
	require.Equal(t, http.StatusOK, w1.Code)
	w2 := e.webhook(t, path, pushPayload("abc123"))
	require.Equal(t, http.StatusOK, w2.Code)

	_, data1 := parseEnvelope(t, w1)
	_, data2 := parseEnvelope(t, w2)
	assert.Equal(t, data1["id"], data2["id"])

	subms, err := e.ledger.ListByParticipation(context.Background(), e.student.ID)
	require.NoError(t, err)
	assert.Len(t, subms, 1)
}

func TestPushWebhookUnknownParticipation(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-submissions/"+uuid.NewString(), pushPayload("abc123"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPushWebhookEmptyBodyFetchesHead(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-submissions/"+e.student.ID.String(), map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	_, data := parseEnvelope(t, w)
	assert.Equal(t, "headcommit", data["commit_hash"])
}

func TestPushWebhookRejectsMalformedPayload(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-submissions/"+e.student.ID.String(), map[string]any{
		"commits": []map[string]any{{"timestamp": "no hash here"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushWebhookRequiresToken(t *testing.T) {
	e := setupServer(t)

	req := httptest.NewRequest(http.MethodPost,
		"/public/programming-submissions/"+e.student.ID.String(),
		bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTestCasesChangedWebhook(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()

	solution, err := e.parts.Create(ctx, partsrvc.Participation{
		ExerciseID:    e.exerciseID,
		Kind:          partsrvc.KindSolution,
		RepositoryURI: "https://vcs.example.com/ex1/ex1-solution.git",
		InitState:     partsrvc.StateInitialized,
	})
	require.NoError(t, err)
	e.vcs.AddRepository("https://vcs.example.com/ex1/ex1-tests.git", "testhead")

	w := e.webhook(t, "/public/programming-exercises/test-cases-changed/"+e.exerciseID.String(), map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	_, data := parseEnvelope(t, w)
	assert.Equal(t, "TEST", data["type"])
	assert.Equal(t, solution.ID.String(), data["participation_id"])
}
