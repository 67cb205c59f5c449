package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ls1intum/Artemis-sub011/accesssrvc"
	"github.com/ls1intum/Artemis-sub011/checksrvc"
	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/cleanupsrvc"
	"github.com/ls1intum/Artemis-sub011/conf"
	httpserver "github.com/ls1intum/Artemis-sub011/http"
	"github.com/ls1intum/Artemis-sub011/notify"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/pushsrvc"
	"github.com/ls1intum/Artemis-sub011/resultsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

const (
	testWebhookSecret = "hook-secret"
	testJwtKey        = "jwt-secret"
)

type env struct {
	server *httpserver.HttpServer
	parts  *partsrvc.ParticipationSrvc
	ledger *submsrvc.LedgerSrvc
	vcs    *vcsconn.InMemConnector
	ci     *ciconn.InMemConnector

	exerciseID uuid.UUID
	student    *partsrvc.Participation
}

func setupServer(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	vcs := vcsconn.NewInMemConnector()
	ci := ciconn.NewInMemConnector()
	parts := partsrvc.NewParticipationSrvc(vcs, ci)
	ledger := submsrvc.NewLedgerSrvc()
	recorder := &notify.Recorder{}
	hub := notify.NewHub()

	e := &env{
		parts:      parts,
		ledger:     ledger,
		vcs:        vcs,
		ci:         ci,
		exerciseID: uuid.New(),
	}

	require.NoError(t, parts.StorePolicy(ctx, partsrvc.ExercisePolicy{
		ExerciseID:        e.exerciseID,
		ProjectKey:        "ex1",
		TestRepositoryURI: "https://vcs.example.com/ex1/ex1-tests.git",
	}))
	var err error
	e.student, err = parts.Create(ctx, partsrvc.Participation{
		ExerciseID:    e.exerciseID,
		Participant:   "student1",
		Kind:          partsrvc.KindStudent,
		RepositoryURI: "https://vcs.example.com/ex1/ex1-student1.git",
		BuildPlanKey:  "EX1-STUDENT1",
		InitState:     partsrvc.StateInitialized,
	})
	require.NoError(t, err)
	vcs.AddRepository(e.student.RepositoryURI, "headcommit")

	e.server = httpserver.NewHttpServer(
		pushsrvc.NewPushSrvc(parts, ledger, vcs, ci),
		resultsrvc.NewResultSrvc(parts, ledger, recorder),
		accesssrvc.NewAccessSrvc(parts, vcs, recorder),
		cleanupsrvc.NewScheduler(parts, ledger, ci, vcs, conf.DefaultCleanupPolicy()),
		checksrvc.NewCheckSrvc(vcs, ci),
		ledger,
		hub,
		testWebhookSecret,
		[]byte(testJwtKey),
	)
	return e
}

func (e *env) webhook(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", testWebhookSecret)
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *env) operator(t *testing.T, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signTestToken(t))
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func signTestToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJwtKey))
	require.NoError(t, err)
	return signed
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var envelope struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
		Code   string         `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "response body: %s", w.Body.String())
	return envelope.Status, envelope.Data
}
