package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"ballot/internal/admin"
	"ballot/internal/ballot"
	ballothandler "ballot/internal/ballot/handler"
	ballotmetrics "ballot/internal/ballot/metrics"
	"ballot/internal/ballot/seed"
	"ballot/internal/ballot/store/candidate"
	"ballot/internal/ballot/store/voter"
	"ballot/internal/events"
	eventmetrics "ballot/internal/events/metrics"
	httpapi "ballot/internal/http"
	"ballot/internal/identity"
	identityhandler "ballot/internal/identity/handler"
	identitymetrics "ballot/internal/identity/metrics"
	"ballot/internal/inspector"
	inspectorhandler "ballot/internal/inspector/handler"
	jwttoken "ballot/internal/jwt_token"
	"ballot/internal/ledger"
	"ballot/internal/ledger/journal"
	"ballot/internal/platform/config"
	"ballot/internal/platform/kafka"
	"ballot/internal/platform/metrics"
	"ballot/internal/platform/postgres"
	"ballot/internal/platform/redis"
	"ballot/internal/ratelimit"
)

type voterStore interface {
	ballot.VoterStore
	seed.VoterWriter
}

type candidateStore interface {
	ballot.CandidateStore
	seed.CandidateWriter
}

// app holds the wired services and every resource that needs closing.
type app struct {
	router  http.Handler
	events  *events.Worker
	limiter *ratelimit.Window
	kafka   *kafka.Client
	closers []io.Closer
	log     *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("failed to close resource", "error", err)
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// A codec that cannot be built or fails its self-test aborts startup.
	codec, err := ledger.NewCodec(ledger.Algorithm(cfg.Ledger.HashAlgorithm))
	if err != nil {
		return nil, fmt.Errorf("ledger hash codec: %w", err)
	}

	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Postgres.DSN, postgres.Options{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}

	var (
		voters     voterStore
		candidates candidateStore
	)
	if db != nil {
		voters = voter.NewPostgres(db)
		candidates = candidate.NewPostgres(db)
	} else {
		voters = voter.NewInMemory()
		candidates = candidate.NewInMemory()
	}

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, cfg.SeedFile, db, candidates, voters, log); err != nil {
			return nil, err
		}
	}

	j, err := openJournal(cfg, db, a)
	if err != nil {
		return nil, err
	}
	loaded, err := journal.Open(ctx, j, codec, log)
	if err != nil {
		return nil, err
	}

	platformMetrics := metrics.New()
	eventWorker, err := buildEvents(ctx, cfg, log, a)
	if err != nil {
		return nil, err
	}
	a.events = eventWorker

	gate, err := ballot.New(loaded.Ledger, voters, candidates,
		ballot.WithConfidenceThreshold(cfg.Identity.ConfidenceThreshold),
		ballot.WithLogger(log),
		ballot.WithMetrics(ballotmetrics.New()),
		ballot.WithJournal(loaded.Syncer),
		ballot.WithObserver(eventWorker),
		ballot.WithTxTimeout(cfg.Ledger.TxTimeout),
	)
	if err != nil {
		return nil, err
	}
	if loaded.Restored {
		if _, err := gate.Reconcile(ctx); err != nil {
			return nil, err
		}
	}

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	var lockout identity.Lockout = identity.NewMemoryLockout(cfg.Identity.FailureWindow)
	if redisClient != nil {
		a.closers = append(a.closers, redisClient)
		lockout = identity.NewRedisLockout(redisClient, cfg.Identity.FailureWindow)
	}

	var verifier identity.Verifier
	if cfg.Identity.VerifierURL != "" {
		verifier = identity.NewHTTPVerifier(cfg.Identity.VerifierURL, cfg.Identity.VerifyTimeout, nil)
	} else {
		log.Warn("IDENTITY_INSECURE_DEV is enabled: every face probe is accepted")
		verifier = identity.InsecureDevVerifier{}
	}
	identitySvc, err := identity.New(verifier, identity.VoterLookupFunc(gate.VoterStatus), tokens,
		identity.WithLockout(lockout, cfg.Identity.MaxFailures),
		identity.WithThreshold(cfg.Identity.ConfidenceThreshold),
		identity.WithTimeout(cfg.Identity.VerifyTimeout),
		identity.WithProofTTL(cfg.Identity.ProofTTL),
		identity.WithLogger(log),
		identity.WithMetrics(identitymetrics.New()),
	)
	if err != nil {
		return nil, err
	}

	insp := inspector.New(loaded.Ledger, voters, candidates,
		inspector.WithReconciler(gate),
		inspector.WithMetrics(platformMetrics),
	)
	// Prime the validity gauges so a tampered journal shows up before the first admin request.
	insp.Validate(ctx)

	adminSvc := admin.New(cfg.Admin.Username, cfg.Admin.PasswordHash, tokens, cfg.Admin.TokenTTL, log)
	if cfg.Admin.PasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH is not set: admin login is disabled")
	}

	checks := map[string]httpapi.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}
	if a.kafka != nil {
		checks["kafka"] = a.kafka.Health
	}

	var publicLimit func(http.Handler) http.Handler
	if cfg.RateLimit.Requests > 0 {
		a.limiter = ratelimit.NewWindow(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		publicLimit = ratelimit.Middleware(a.limiter, log, platformMetrics)
	}

	a.router = httpapi.NewRouter(httpapi.Config{
		Logger:      log,
		Metrics:     platformMetrics,
		PublicLimit: publicLimit,
		Public: []httpapi.Registrar{
			identityhandler.New(identitySvc, log),
			ballothandler.New(gate, candidates, jwttoken.NewProofParser(tokens), log),
			admin.NewHandler(adminSvc, log),
		},
		Admin: []httpapi.Registrar{
			inspectorhandler.New(insp, log),
		},
		AdminAuth:    jwttoken.NewAdminValidatorAdapter(tokens),
		HealthChecks: checks,
	})
	return a, nil
}

func applySeed(ctx context.Context, path string, db *sql.DB, cw seed.CandidateWriter, vw seed.VoterWriter, log *slog.Logger) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	var res seed.Result
	apply := func(ctx context.Context) error {
		var err error
		res, err = f.Apply(ctx, cw, vw)
		return err
	}
	if db != nil {
		err = postgres.NewTx(db).RunInTx(ctx, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return err
	}
	log.Info("seed applied",
		"file", path,
		"elections", res.Elections,
		"candidates", res.Candidates,
		"voters", res.Voters,
	)
	return nil
}

func openJournal(cfg config.Server, db *sql.DB, a *app) (journal.Journal, error) {
	switch cfg.Ledger.Backend {
	case config.BackendLevelDB:
		j, err := journal.OpenLevelDB(cfg.Ledger.LevelDBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, j)
		return j, nil
	case config.BackendPostgres:
		return journal.NewPostgres(db), nil
	default:
		return journal.NewMemory(), nil
	}
}

func buildEvents(ctx context.Context, cfg config.Server, log *slog.Logger, a *app) (*events.Worker, error) {
	logPublisher := events.NewLogPublisher(log)
	opts := []events.WorkerOption{
		events.WithBufferSize(cfg.Kafka.BufferSize),
		events.WithLogger(log),
		events.WithMetrics(eventmetrics.New()),
	}

	client, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return events.NewWorker(logPublisher, opts...), nil
	}
	a.kafka = client
	a.closers = append(a.closers, closerFunc(func() error {
		client.Close()
		return nil
	}))
	opts = append(opts, events.WithFallback(logPublisher))
	return events.NewWorker(events.NewKafkaPublisher(client, client.Topic), opts...), nil
}
