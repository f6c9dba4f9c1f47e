package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travesia_payments/internal/adapters/backend"
	"travesia_payments/internal/adapters/opener"
	"travesia_payments/internal/config"
	"travesia_payments/internal/handlers"
	"travesia_payments/internal/ports"
	"travesia_payments/internal/repository"
	"travesia_payments/internal/repository/database"
	"travesia_payments/internal/repository/journal"
	"travesia_payments/internal/server"
	"travesia_payments/internal/services/importer"
	"travesia_payments/internal/services/importer/processors"
	"travesia_payments/internal/services/payments"
	"travesia_payments/internal/services/receipts"
	"travesia_payments/internal/services/sessions"
	"travesia_payments/internal/transport/auth"
	"travesia_payments/internal/utils/email"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	log := logrus.StandardLogger()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	defer cfg.Close(context.Background())

	if err := cfg.CheckConnections(setupCtx); err != nil {
		log.Fatalf("Connection check failed: %v", err)
	}
	log.Info("All connections OK")

	store := sessionStore(cfg, log)
	debtors, methods, submitter := backendPorts(cfg, log)

	publisher := &receipts.Publisher{
		Storage: cfg.S3.Client,
		Bucket:  cfg.S3.Bucket,
		MailTo:  cfg.ReceiptMailTo,
		Log:     log,
	}
	if cfg.SMTP.Enabled() {
		publisher.Mailer = email.NewSender(cfg.SMTP, log)
	}

	svc := payments.NewService(payments.Deps{
		Store:     store,
		Debtors:   debtors,
		Methods:   methods,
		Submitter: submitter,
		Events:    journal.NewEventLog(cfg.Mongo, log),
		Receipts:  publisher,
		Log:       log,

		SubmitTimeout: cfg.BackendTimeout,
	})

	registry := processors.Register(processors.DefaultRegistry(), &processors.DebtsProcessor{
		MG:      cfg.Mongo,
		Debtors: database.NewDebtorRepo(cfg.Postgres, ""),
		Debts:   database.NewDebtsRepo(cfg.Postgres, ""),
	})
	compound := opener.NewCompoundOpener(opener.NewHTTPOpener(&http.Client{}), opener.NewS3Opener(cfg.S3.Client), cfg.S3.Bucket)
	imp := importer.NewService(compound, registry, 1000)
	imp.Journal = cfg.Mongo
	imp.Log = log

	var verifier auth.TokenVerifier
	switch cfg.AuthMode {
	case config.AuthJWT:
		verifier = auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	default:
		verifier = auth.PATVerifier{Repo: repository.NewPersonalAccessTokenRepository(cfg.Postgres)}
	}

	h := handlers.New(svc, imp, cfg, cfg.Mongo, cfg.S3, log)
	srv := server.NewServer(cfg.Port, h, auth.Middleware(verifier))

	log.Infof("Listening on :%s (backend=%s sessions=%s auth=%s)", cfg.Port, cfg.BackendMode, cfg.SessionStore, cfg.AuthMode)
	if err := srv.Run(runCtx); err != nil {
		log.Fatal(err)
	}
	svc.Wait()
}

func sessionStore(cfg *config.Config, log *logrus.Logger) sessions.Store {
	if cfg.SessionStore == config.SessionStoreRedis {
		return sessions.NewRedisStore(cfg.Redis.Client, cfg.SessionTTL)
	}

	ms := sessions.NewMemoryStore(cfg.SessionTTL, log)
	if _, err := ms.StartSweeper(cfg.SweepSpec); err != nil {
		log.Fatalf("session sweeper: %v", err)
	}
	return ms
}

func backendPorts(cfg *config.Config, log *logrus.Logger) (ports.DebtorSource, ports.MethodCatalog, ports.PaymentSubmitter) {
	if cfg.BackendMode != config.BackendREST {
		return database.NewDebtorRepo(cfg.Postgres, ""),
			database.NewPaymentMethodsRepo(cfg.Postgres, log),
			database.NewPaymentRepo(cfg.Postgres)
	}

	creds := backend.NewCredentials(cfg.BackendTokenFile)
	if err := creds.Hydrate(); err != nil {
		log.Warnf("backend credentials: %v", err)
	}
	if cfg.BackendToken != "" {
		if err := creds.Set(cfg.BackendToken); err != nil {
			log.Warnf("backend credentials: %v", err)
		}
	}
	client := backend.NewClient(cfg.BackendURL, creds, cfg.BackendTimeout)
	return client, client, client
}
