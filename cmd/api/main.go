package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/iqautojobs/identity/internal/audit"
	"github.com/iqautojobs/identity/internal/auth"
	"github.com/iqautojobs/identity/internal/config"
	"github.com/iqautojobs/identity/internal/httpapi"
	"github.com/iqautojobs/identity/internal/notify"
	"github.com/iqautojobs/identity/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := obs.Logger()
		l.Fatal().Err(err).Msg("load config")
	}

	obs.Init()
	obs.SetLevel(cfg.LogLevel)
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	var db *sql.DB
	var accounts auth.AccountStore
	var sessions auth.SessionStore
	var sink auth.AuditSink
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		store := auth.NewPGStore(db)
		accounts, sessions, sink = store.Accounts(), store.Sessions(), store.Audit()
	} else {
		log.Warn().Msg("no IDENTITY_PG_DSN set, using in-memory store")
		store := auth.NewMemoryStore()
		accounts, sessions, sink = store.Accounts(), store.Sessions(), store.Audit()
	}

	hasher := auth.NewHasher(auth.HashParams{
		Time:    cfg.HashTime,
		Memory:  cfg.HashMemoryKiB,
		Threads: cfg.HashThreads,
		KeyLen:  auth.DefaultHashParams().KeyLen,
		SaltLen: auth.DefaultHashParams().SaltLen,
	}, cfg.HashWorkers)

	codec, err := auth.NewCodec(cfg.AuthSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("build token codec")
	}

	svc := auth.NewService(accounts, sessions, audit.NewSink(sink, log), hasher, codec,
		auth.WithMailer(notify.LogMailer{Log: log}),
		auth.WithLogger(log),
	)

	opts := []httpapi.Option{httpapi.WithAPILogger(log)}
	if cfg.GoogleOAuthEnabled() {
		opts = append(opts, httpapi.WithGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL))
	}
	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version, opts...)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stopSweep := context.WithCancel(context.Background())
	go sweepLoop(rootCtx, svc, cfg.SweepInterval, log)

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting identity-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("stopped")
}

// sweepLoop periodically deletes expired refresh sessions.
func sweepLoop(ctx context.Context, svc *auth.Service, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.SweepSessions(ctx); err != nil {
				log.Warn().Err(err).Msg("session sweep failed")
			}
		}
	}
}
