package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/masonry/internal/application"
	"github.com/eugenenazirov/masonry/internal/config"
	"github.com/eugenenazirov/masonry/internal/logging"
)

var signalNotify = signal.Notify

const (
	packCommand  = "pack"
	serveCommand = "serve"
)

type cli struct {
	app       *kingpin.Application
	overrides config.CLIOverrides
	logLevel  *string
	logFormat *string
}

func newCLI() *cli {
	c := &cli{
		app: kingpin.New("masonry", "Masonry Packer - scales a directory of images and shelf-packs them into one square JPEG"),
	}
	c.app.Flag("config", "Path to YAML configuration file").StringVar(&c.overrides.ConfigFile)
	c.logLevel = c.app.Flag("log-level", "Minimum log level (debug, info, warn, error)").Default("info").String()
	c.logFormat = c.app.Flag("log-format", "Log encoding (json, console)").Default("json").String()

	pack := c.app.Command(packCommand, "Pack the images of a directory into a single JPEG").Default()
	c.overrides.Dir = pack.Flag("dir", "Directory to read images from and write the output into").String()
	c.overrides.OutputFile = pack.Flag("output", "Output file name").String()
	c.overrides.OutputSize = pack.Flag("size", "Canvas edge length in pixels").Default("0").Int()
	c.overrides.Quality = pack.Flag("quality", "JPEG quality (1-100)").Default("0").Int()
	c.overrides.Background = pack.Flag("background", "Canvas background as #rrggbb").String()
	c.overrides.Rounding = pack.Flag("rounding", "How scaled sizes are rounded (nearest, truncate)").String()

	serve := c.app.Command(serveCommand, "Serve the packer over HTTP")
	c.overrides.Port = serve.Flag("port", "HTTP port exposed by the service").String()
	c.overrides.RateLimitRPS = serve.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	c.overrides.RateLimitBurst = serve.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	return c
}

// parse selects a command and drops the overrides owned by the command that was not selected.
// kingpin only applies flag defaults for the selected command, so the other command's
// numeric flags would otherwise read as explicit zeros.
func (c *cli) parse(args []string) (string, error) {
	command, err := c.app.Parse(args)
	if err != nil {
		return "", err
	}
	switch command {
	case serveCommand:
		c.overrides.Dir = nil
		c.overrides.OutputFile = nil
		c.overrides.OutputSize = nil
		c.overrides.Quality = nil
		c.overrides.Background = nil
		c.overrides.Rounding = nil
	default:
		c.overrides.Port = nil
		c.overrides.RateLimitRPS = nil
		c.overrides.RateLimitBurst = nil
	}
	return command, nil
}

func main() {
	c := newCLI()
	command := kingpin.MustParse(c.parse(os.Args[1:]))

	cfg, err := config.Load(&c.overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(logging.WithLevel(*c.logLevel), logging.WithEncoding(*c.logFormat))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case serveCommand:
		serve(cfg, logger)
	default:
		if err := application.Run(cfg, logger, os.Stdout); err != nil {
			logger.Fatal("pack failed", zap.Error(err))
		}
	}
}

func serve(cfg config.Config, logger *zap.Logger) {
	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
