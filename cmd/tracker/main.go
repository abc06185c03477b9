package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/config"
	"github.com/F1Square/TripGo-Adv-client/internal/db"
	"github.com/F1Square/TripGo-Adv-client/internal/flush"
	"github.com/F1Square/TripGo-Adv-client/internal/location"
	"github.com/F1Square/TripGo-Adv-client/internal/permission"
	"github.com/F1Square/TripGo-Adv-client/internal/queue"
	"github.com/F1Square/TripGo-Adv-client/internal/server"
	"github.com/F1Square/TripGo-Adv-client/internal/session"
	"github.com/F1Square/TripGo-Adv-client/internal/stream"
	"github.com/F1Square/TripGo-Adv-client/internal/tripapi"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig   func() config.Config
	connectRedis func(config.Config) (*redis.Client, error)
	notify       func(chan<- os.Signal, ...os.Signal)
	run          func(context.Context, config.Config, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:   config.Load,
		connectRedis: db.ConnectRedis,
		notify:       signal.Notify,
		run:          Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	rdb, err := deps.connectRedis(cfg)
	if err != nil {
		logrus.WithError(err).Warn("redis unavailable, queue persistence is in-memory only")
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, rdb, signals, nil); err != nil {
		logrus.WithError(err).Error("tracker exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// buildPermissions derives the platform permission capability from
// configuration. iOS starts at when-in-use so the escalation path applies;
// everywhere else a single request yields the full grant.
func buildPermissions(cfg config.Config) location.Permissions {
	if cfg.Platform == "ios" {
		return location.NewStaticPermissions("ios", location.TierWhenInUse, location.TierAlways)
	}
	return location.NewStaticPermissions(cfg.Platform, location.TierUnknown, location.TierGranted)
}

// Run wires the tracking pipeline and serves the control surface until a
// termination signal arrives. Shutdown stops tracking with a final flush
// before the HTTP server goes down; the remote trip stays active for a later
// resume.
func Run(ctx context.Context, cfg config.Config, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	log := logrus.NewEntry(logrus.StandardLogger())

	var store queue.Store
	if rdb != nil {
		store = queue.NewRedisStore(rdb)
	} else {
		store = queue.NewMemoryStore()
	}
	q := queue.New(ctx, store, log)

	var source location.Source
	var mqttSource *location.MQTTSource
	if cfg.MQTTBroker != "" {
		src, err := location.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log)
		if err != nil {
			log.WithError(err).Warn("mqtt broker unreachable, using fake location source")
			source = location.NewFake()
		} else {
			mqttSource = src
			source = src
		}
	} else {
		source = location.NewFake()
	}

	client := tripapi.NewClient(cfg.APIBaseURL, cfg.APIToken)
	if client.TokenExpired() {
		log.Warn("api token is expired, remote calls will be rejected")
	}

	machine := permission.NewMachine(buildPermissions(cfg), log)
	hub := stream.NewHub(rdb, log)

	ctrl := session.NewController(session.Config{
		API:             client,
		Source:          source,
		Permissions:     machine,
		Queue:           q,
		Store:           store,
		Hub:             hub,
		Log:             log,
		DistanceFilterM: cfg.DistanceFilterM,
	})

	flusher := flush.New(q, ctrl, flush.Options{
		Interval:  time.Duration(cfg.FlushIntervalMs) * time.Millisecond,
		Threshold: cfg.FlushThreshold,
		Log:       log,
	})
	ctrl.AttachFlusher(flusher)

	if mqttSource != nil {
		mqttSource.OnOnline(func(online bool) {
			flusher.SetOnline(context.Background(), online)
		})
	}

	if resumed, err := ctrl.Resume(ctx); err != nil {
		log.WithError(err).Warn("active trip lookup failed")
	} else if resumed {
		log.Info("tracking resumed")
	}

	srv := server.NewServer(cfg, ctrl, flusher, client, hub)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ctrl.Stop(shutdownCtx)

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if mqttSource != nil {
		mqttSource.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
