package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/characters"
	"github.com/larpkeep/characterhub/pkg/config"
	"github.com/larpkeep/characterhub/pkg/identity"
	"github.com/larpkeep/characterhub/pkg/middleware"
	"github.com/larpkeep/characterhub/pkg/observability"
	"github.com/larpkeep/characterhub/pkg/orgtree"
	"github.com/larpkeep/characterhub/pkg/tags"
	"github.com/larpkeep/characterhub/pkg/venues"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}
	defer observability.ShutdownTracing(context.Background(), tp, log)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("database is unreachable")
	}

	venueList := venues.Default()
	if cfg.VenueFile != "" {
		venueList, err = venues.LoadFile(cfg.VenueFile)
		if err != nil {
			log.WithError(err).Fatal("failed to load venue fixture")
		}
	}
	normalizer := authz.NewNormalizer(venues.IDs(venueList))

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	hub := identity.NewClient(cfg.Identity.BaseURL,
		identity.WithServiceToken(cfg.Identity.ServiceToken),
		identity.WithTokenCache(cfg.Identity.CacheSize, cfg.Identity.CacheTTL),
		identity.WithClientLogger(log),
		identity.WithLookupRecorder(metrics.RecordIdentityLookup),
	)

	treeOpts := []orgtree.Option{orgtree.WithLogger(log)}
	if cfg.OrgTree.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.OrgTree.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid redis URL")
		}
		treeOpts = append(treeOpts, orgtree.WithRedis(redis.NewClient(redisOpts)))
	}
	tree := orgtree.NewCache(hub, cfg.OrgTree.TTL, treeOpts...)

	tagStore := tags.NewStore(db)
	tagPolicy := tags.NewPolicy(normalizer, metrics, log)
	tagHandlers := tags.NewHandlers(tagStore, tagPolicy, log)

	charStore := characters.NewStore(db)
	charPolicy := characters.NewPolicy(normalizer, tree, metrics, log)
	charHandlers := characters.NewHandlers(charStore, tagStore, charPolicy, log)

	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log))
	if metrics != nil {
		router.Use(middleware.Instrument(metrics))
	}
	auth := middleware.NewAuthenticator(hub, log)

	api := router.NewRoute().Subrouter()
	api.Use(auth.Handler)
	charHandlers.Register(api)
	tagHandlers.Register(api)
	api.HandleFunc("/venues", venues.Handler(venueList)).Methods(http.MethodGet)

	var handler http.Handler = router
	if cfg.Observability.OTel.Enabled {
		handler = otelhttp.NewHandler(handler, "characterhub")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var scheduler *cron.Cron
	if cfg.OrgTree.RefreshSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.OrgTree.RefreshSchedule, func() {
			refreshed, err := tree.Refresh(context.Background())
			if err != nil {
				log.WithError(err).Warn("scheduled org tree refresh failed")
				if metrics != nil {
					metrics.TreeRefreshTotal.WithLabelValues("error").Inc()
				}
				return
			}
			if metrics != nil {
				metrics.TreeRefreshTotal.WithLabelValues("success").Inc()
				metrics.TreeUnits.Set(float64(refreshed.Size()))
			}
		})
		if err != nil {
			log.WithError(err).Fatal("invalid org tree refresh schedule")
		}
		scheduler.Start()
	}

	go func() {
		log.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("health server shutdown failed")
	}
}
