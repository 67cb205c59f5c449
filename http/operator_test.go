package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls1intum/Artemis-sub011/partsrvc"
)

func TestOperatorEndpointsRequireJwt(t *testing.T) {
	e := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/exercises/"+e.exerciseID.String()+"/lock-all", nil)
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/exercises/"+e.exerciseID.String()+"/lock-all", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLockAllEndpoint(t *testing.T) {
	e := setupServer(t)

	w := e.operator(t, http.MethodPost, "/exercises/"+e.exerciseID.String()+"/lock-all", nil)
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	status, data := parseEnvelope(t, w)
	assert.Equal(t, "success", status)
	assert.Equal(t, float64(1), data["total"])

	stored, err := e.parts.Get(context.Background(), e.student.ID)
	require.NoError(t, err)
	assert.True(t, stored.Locked)
	assert.Equal(t, partsrvc.StateInactive, stored.InitState)
}

func TestUnlockAllEndpoint(t *testing.T) {
	e := setupServer(t)

	w := e.operator(t, http.MethodPost, "/exercises/"+e.exerciseID.String()+"/lock-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.operator(t, http.MethodPost, "/exercises/"+e.exerciseID.String()+"/unlock-all", nil)
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	stored, err := e.parts.Get(context.Background(), e.student.ID)
	require.NoError(t, err)
	assert.False(t, stored.Locked)
	assert.Equal(t, partsrvc.StateInitialized, stored.InitState)
}

func TestGetSubmissionEndpoint(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-submissions/"+e.student.ID.String(), pushPayload("abc123"))
	require.Equal(t, http.StatusOK, w.Code)
	_, data := parseEnvelope(t, w)
	submissionID := data["id"].(string)

	w = e.operator(t, http.MethodGet, "/submissions/"+submissionID, nil)
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	_, data = parseEnvelope(t, w)
	subm := data["submission"].(map[string]any)
	assert.Equal(t, "abc123", subm["commit_hash"])
	assert.Nil(t, data["latest_result"], "no result has arrived yet")
}

func TestGetSubmissionIncludesLatestResult(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-exercises/new-result", resultPayload("EX1-STUDENT1", "abc123"))
	require.Equal(t, http.StatusOK, w.Code)
	_, data := parseEnvelope(t, w)
	submissionID := data["submission_id"].(string)

	w = e.operator(t, http.MethodGet, "/submissions/"+submissionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data = parseEnvelope(t, w)
	latest := data["latest_result"].(map[string]any)
	assert.Equal(t, float64(50), latest["score"])
}

func TestBuildLogStatisticsEndpoint(t *testing.T) {
	e := setupServer(t)

	w := e.webhook(t, "/public/programming-exercises/new-result", resultPayload("EX1-STUDENT1", "abc123"))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.operator(t, http.MethodGet, "/exercises/"+e.exerciseID.String()+"/build-log-statistics", nil)
	require.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	_, data := parseEnvelope(t, w)
	assert.Equal(t, float64(4200), data["total_millis"])
}

func TestCheckConsistencyEndpoint(t *testing.T) {
	e := setupServer(t)
	e.vcs.AddProject("ex1")
	e.vcs.AddRepository("https://vcs.example.com/ex1/ex1-exercise.git", "t")
	e.vcs.AddRepository("https://vcs.example.com/ex1/ex1-solution.git", "s")
	e.vcs.AddRepository("https://vcs.example.com/ex1/ex1-tests.git", "x")
	e.ci.AddPlan("ex1", "EX1-BASE")
	e.ci.AddPlan("ex1", "EX1-SOLUTION")

	body := map[string]any{
		"project_key":             "ex1",
		"template_repository_uri": "https://vcs.example.com/ex1/ex1-exercise.git",
		"solution_repository_uri": "https://vcs.example.com/ex1/ex1-solution.git",
		"test_repository_uri":     "https://vcs.example.com/ex1/ex1-tests.git",
		"template_plan_key":       "EX1-BASE",
		"solution_plan_key":       "EX1-SOLUTION",
	}
	w := e.operator(t, http.MethodPost, "/exercises/"+e.exerciseID.String()+"/check-consistency", body)
	assert.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	// now break one reference and expect a conflict
	body["solution_plan_key"] = "EX1-GONE"
	w = e.operator(t, http.MethodPost, "/exercises/"+e.exerciseID.String()+"/check-consistency", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCleanupSweepEndpoints(t *testing.T) {
	e := setupServer(t)

	w := e.operator(t, http.MethodPost, "/admin/cleanup/build-plans", nil)
	assert.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())

	w = e.operator(t, http.MethodPost, "/admin/cleanup/git-cache", nil)
	assert.Equal(t, http.StatusOK, w.Code, "response body: %s", w.Body.String())
}
