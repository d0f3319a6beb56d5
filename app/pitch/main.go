package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/superfeelapi/pitchFeedback/app/pitch/handlers"
	"github.com/superfeelapi/pitchFeedback/business/recorder"
	"github.com/superfeelapi/pitchFeedback/business/session"
	"github.com/superfeelapi/pitchFeedback/business/submission"
	"github.com/superfeelapi/pitchFeedback/business/worker"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/config"
	"github.com/superfeelapi/pitchFeedback/foundation/external/analysis"
	"github.com/superfeelapi/pitchFeedback/foundation/external/capture"
	"github.com/superfeelapi/pitchFeedback/foundation/logger"
	"github.com/superfeelapi/pitchFeedback/foundation/metrics"
	"github.com/superfeelapi/pitchFeedback/foundation/pubsub"
	"github.com/superfeelapi/pitchFeedback/foundation/redis"
	"go.uber.org/zap"
)

var (
	version   = "develop"
	buildTime string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run() error {
	// =================================================================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Analysis struct {
			BaseURL string        `conf:"default:http://127.0.0.1:8000" yaml:"baseURL"`
			APIKey  string        `conf:"mask" yaml:"apiKey"`
			Timeout time.Duration `conf:"default:0s" yaml:"timeout"`
		} `yaml:"analysis"`
		Capture struct {
			URL          string        `yaml:"url"`
			DrainTimeout time.Duration `conf:"default:5s" yaml:"drainTimeout"`
		} `yaml:"capture"`
		Web struct {
			Address         string        `conf:"default:127.0.0.1:3000" yaml:"address"`
			MaxUploadBytes  int64         `conf:"default:67108864" yaml:"maxUploadBytes"`
			ShutdownTimeout time.Duration `conf:"default:20s" yaml:"shutdownTimeout"`
		} `yaml:"web"`
		Redis struct {
			Address         string `yaml:"address"`
			Password        string `conf:"mask" yaml:"password"`
			FeedbackChannel string `conf:"default:pitch:feedback" yaml:"feedbackChannel"`
		} `yaml:"redis"`
		Logger struct {
			OutputPaths []string `conf:"default:stdout" yaml:"outputPaths"`
		} `yaml:"logger"`
		File string `conf:"help:submit this audio file once and print the feedback" yaml:"file"`
	}{
		Version: conf.Version{
			Build: version,
			Desc:  buildTime,
		},
	}

	const prefix = "PITCH"
	help, err := config.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =================================================================================================================
	// Application Logger

	log, err := logger.New("pitch", cfg.Logger.OutputPaths...)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Sync()

	// =================================================================================================================
	// Configuration Stringify

	out, err := conf.String(&cfg)
	if err != nil {
		log.Errorw("startup", "ERROR", err)
	}
	log.Infow("startup", "version", version, "config", out)

	// =================================================================================================================
	// Metrics

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	handles := audio.NewHandles()
	handles.OnChange = func(live int) {
		m.LiveHandles.Set(float64(live))
	}

	// =================================================================================================================
	// Analysis Service

	client, err := analysis.New(analysis.Config{
		BaseURL: cfg.Analysis.BaseURL,
		APIKey:  cfg.Analysis.APIKey,
		Timeout: cfg.Analysis.Timeout,
	})
	if err != nil {
		return fmt.Errorf("constructing analysis client: %w", err)
	}
	log.Infow("startup", "analysis", client.Endpoint())

	// =================================================================================================================
	// Capture Device

	var device capture.Device = capture.Unavailable{}
	if cfg.Capture.URL != "" {
		device = capture.NewBridge(cfg.Capture.URL)
	} else {
		log.Infow("startup", "capture", "no bridge configured, recording is unavailable")
	}

	// =================================================================================================================
	// Redis

	var sink session.FeedbackSink
	if cfg.Redis.Address != "" {
		redisClient, err := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.FeedbackChannel, log)
		if err != nil {
			log.Errorw("startup", "ERROR", err)
		} else {
			defer redisClient.Close()
			sink = redisClient
		}
	}

	// =================================================================================================================
	// Session

	broker := pubsub.NewBroker()

	sess := session.New(session.Settings{
		Logger: log,
		Recorder: recorder.New(recorder.Settings{
			Device:       device,
			Handles:      handles,
			Logger:       log,
			Metrics:      m,
			DrainTimeout: cfg.Capture.DrainTimeout,
		}),
		Submitter: submission.New(submission.Settings{
			Analyzer: client,
			Logger:   log,
			Metrics:  m,
		}),
		Handles: handles,
		Broker:  broker,
		Sink:    sink,
		Metrics: m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =================================================================================================================
	// Run Worker

	workerCh := worker.Run(ctx, worker.Settings{
		Config:  worker.Config{File: cfg.File},
		Logger:  log,
		Session: sess,
		Broker:  broker,
	})

	if cfg.File != "" {
		return oneShot(log, sess, workerCh)
	}

	return serve(ctx, log, sess, reg, workerCh, cfg.Web.Address, cfg.Web.MaxUploadBytes, cfg.Web.ShutdownTimeout)
}

func oneShot(log *zap.SugaredLogger, sess *session.Session, workerCh <-chan error) error {
	err := <-workerCh

	snap := sess.State().Snapshot()
	if closeErr := sess.Close(context.Background()); closeErr != nil {
		log.Errorw("shutdown", "ERROR", closeErr)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap.Feedback)
}

func serve(ctx context.Context, log *zap.SugaredLogger, sess *session.Session, reg *prometheus.Registry, workerCh <-chan error, addr string, maxUpload int64, timeout time.Duration) error {
	api := http.Server{
		Addr: addr,
		Handler: handlers.API(handlers.Config{
			Log:            log,
			Session:        sess,
			Gatherer:       reg,
			MaxUploadBytes: maxUpload,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		log.Infow("shutdown", "status", "shutdown started")
		defer log.Infow("shutdown", "status", "shutdown complete")

		if err := <-workerCh; err != nil {
			log.Errorw("shutdown", "ERROR", err)
		}

		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := api.Shutdown(shutCtx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := sess.Close(shutCtx); err != nil {
			log.Errorw("shutdown", "ERROR", err)
		}
	}

	return nil
}
