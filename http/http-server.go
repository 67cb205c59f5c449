package http

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-jwt/jwt/v5/request"
	"github.com/ls1intum/Artemis-sub011/accesssrvc"
	"github.com/ls1intum/Artemis-sub011/checksrvc"
	"github.com/ls1intum/Artemis-sub011/cleanupsrvc"
	"github.com/ls1intum/Artemis-sub011/notify"
	"github.com/ls1intum/Artemis-sub011/pushsrvc"
	"github.com/ls1intum/Artemis-sub011/resultsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
)

type HttpServer struct {
	pushSrvc   *pushsrvc.PushSrvc
	resultSrvc *resultsrvc.ResultSrvc
	accessSrvc *accesssrvc.AccessSrvc
	cleanup    *cleanupsrvc.Scheduler
	checkSrvc  *checksrvc.CheckSrvc
	ledger     *submsrvc.LedgerSrvc
	hub        *notify.Hub

	webhookSecret string
	jwtKey        []byte

	router *chi.Mux
}

func NewHttpServer(
	pushSrvc *pushsrvc.PushSrvc,
	resultSrvc *resultsrvc.ResultSrvc,
	accessSrvc *accesssrvc.AccessSrvc,
	cleanup *cleanupsrvc.Scheduler,
	checkSrvc *checksrvc.CheckSrvc,
	ledger *submsrvc.LedgerSrvc,
	hub *notify.Hub,
	webhookSecret string,
	jwtKey []byte,
) *HttpServer {
	router := chi.NewRouter()

	logger := httplog.NewLogger("reconciler", httplog.Options{
		LogLevel:         slog.LevelDebug,
		Concise:          true,
		RequestHeaders:   true,
		MessageFieldName: "message",
	})

	router.Use(httplog.RequestLogger(logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           3000,
	}))

	server := &HttpServer{
		pushSrvc:      pushSrvc,
		resultSrvc:    resultSrvc,
		accessSrvc:    accessSrvc,
		cleanup:       cleanup,
		checkSrvc:     checkSrvc,
		ledger:        ledger,
		hub:           hub,
		webhookSecret: webhookSecret,
		jwtKey:        jwtKey,
		router:        router,
	}

	server.routes()

	return server
}

func (s *HttpServer) Start(address string) error {
	return http.ListenAndServe(address, s.router)
}

func (s *HttpServer) Router() http.Handler {
	return s.router
}

func (s *HttpServer) routes() {
	r := s.router

	r.Get("/health", s.health)

	// inbound webhooks from the VCS and CI, token-authenticated
	r.Group(func(r chi.Router) {
		r.Use(s.webhookTokenMiddleware)
		r.Post("/public/programming-submissions/{participationId}", s.handlePush)
		r.Post("/public/programming-exercises/new-result", s.handleNewResult)
		r.Post("/public/programming-exercises/test-cases-changed/{exerciseId}", s.handleTestCasesChanged)
	})

	// operator surface, JWT-authenticated
	r.Group(func(r chi.Router) {
		r.Use(s.jwtAuthMiddleware)
		r.Get("/submissions/{submissionId}", s.getSubmission)
		r.Post("/participations/{participationId}/trigger-build", s.triggerBuild)
		r.Get("/exercises/{exerciseId}/build-log-statistics", s.getBuildLogStatistics)
		r.Post("/exercises/{exerciseId}/lock-all", s.lockAll)
		r.Post("/exercises/{exerciseId}/unlock-all", s.unlockAll)
		r.Post("/exercises/{exerciseId}/check-consistency", s.checkConsistency)
		r.Post("/admin/cleanup/build-plans", s.sweepBuildPlans)
		r.Post("/admin/cleanup/git-cache", s.sweepGitCache)
	})

	r.Get("/ws/participations/{participationId}/results", s.resultStream)
}

// webhookTokenMiddleware authenticates VCS/CI deliveries with the shared
// secret configured on both sides.
func (s *HttpServer) webhookTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookSecret)) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HttpServer) jwtAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, err := request.BearerExtractor{}.ExtractToken(r)
		if err != nil {
			if errors.Is(err, request.ErrNoTokenInRequest) {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		_, err = jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtKey, nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HttpServer) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
