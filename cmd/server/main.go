package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/ls1intum/Artemis-sub011/accesssrvc"
	"github.com/ls1intum/Artemis-sub011/buildlog"
	"github.com/ls1intum/Artemis-sub011/checksrvc"
	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/cleanupsrvc"
	"github.com/ls1intum/Artemis-sub011/conf"
	"github.com/ls1intum/Artemis-sub011/http"
	"github.com/ls1intum/Artemis-sub011/migrations"
	"github.com/ls1intum/Artemis-sub011/notify"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/pushsrvc"
	"github.com/ls1intum/Artemis-sub011/resultsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		slog.Warn("no .env file found, relying on process environment")
	}

	jwtKey := os.Getenv("JWT_KEY")
	if jwtKey == "" {
		slog.Error("JWT_KEY is not set")
		os.Exit(1)
	}
	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		slog.Error("WEBHOOK_SECRET is not set")
		os.Exit(1)
	}

	vcs := vcsconn.NewRestClient(
		os.Getenv("VCS_API_URL"),
		os.Getenv("VCS_API_TOKEN"),
		os.Getenv("REPO_CACHE_DIR"),
	)
	ci := ciconn.NewRestClient(
		os.Getenv("CI_API_URL"),
		os.Getenv("CI_API_TOKEN"),
	)

	partSrvc := partsrvc.NewParticipationSrvc(vcs, ci)
	ledger := submsrvc.NewLedgerSrvc()
	if os.Getenv("POSTGRES_HOST") != "" {
		err = migrations.Up(conf.GetPgUrlFromEnv("pgx5"))
		if err != nil {
			slog.Error("failed to run database migrations", "error", err)
			os.Exit(1)
		}
		pool, err := pgxpool.New(context.Background(), conf.GetPgConnStrFromEnv())
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		partSrvc = partsrvc.NewParticipationSrvcWithRepos(
			partsrvc.NewPgRepo(pool),
			partsrvc.NewPgPolicyRepo(pool),
			vcs, ci,
		)
		ledger = submsrvc.NewLedgerSrvcWithRepo(submsrvc.NewPgRepo(pool))
	}

	hub := notify.NewHub()
	var sqsClient *sqs.Client
	queueURL := os.Getenv("NOTIFY_QUEUE_URL")
	if queueURL != "" {
		cfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			slog.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsClient = sqs.NewFromConfig(cfg)
	}
	dispatcher := notify.NewDispatcher(sqsClient, queueURL, hub)

	resultSrvc := resultsrvc.NewResultSrvc(partSrvc, ledger, dispatcher)
	if bucket := os.Getenv("BUILD_LOG_BUCKET"); bucket != "" {
		archive, err := buildlog.NewArchive(os.Getenv("AWS_REGION"), bucket)
		if err != nil {
			slog.Error("failed to set up build log archive", "error", err)
			os.Exit(1)
		}
		resultSrvc = resultSrvc.WithArchive(archive)
	}

	policy, err := conf.LoadCleanupPolicy(os.Getenv("CLEANUP_POLICY_PATH"))
	if err != nil {
		slog.Error("failed to load cleanup policy", "error", err)
		os.Exit(1)
	}
	cleanup := cleanupsrvc.NewScheduler(partSrvc, ledger, ci, vcs, policy)
	go cleanup.Run(context.Background())

	pushSrvc := pushsrvc.NewPushSrvc(partSrvc, ledger, vcs, ci)
	accessSrvc := accesssrvc.NewAccessSrvc(partSrvc, vcs, dispatcher)
	checkSrvc := checksrvc.NewCheckSrvc(vcs, ci)

	httpServer := http.NewHttpServer(
		pushSrvc, resultSrvc, accessSrvc, cleanup, checkSrvc,
		ledger, hub, webhookSecret, []byte(jwtKey),
	)

	address := ":8080"
	log.Printf("Starting server on %s", address)
	err = httpServer.Start(address)
	log.Printf("Server stopped with error: %v", err)
}
