// Package server exposes the elements API over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nykw2002/elements/config"
	"github.com/nykw2002/elements/internal/analysis"
	"github.com/nykw2002/elements/internal/cache"
	"github.com/nykw2002/elements/internal/extract"
	"github.com/nykw2002/elements/internal/llm"
	"github.com/nykw2002/elements/internal/store"
)

// Run wires all dependencies and serves until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	gateway := llm.NewClient(cfg.LLM, log.New(log.Writer(), "[LLM] ", log.LstdFlags))

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	embCache, err := buildCache(ctx, cfg, orchLogger)
	if err != nil {
		return err
	}
	executor := analysis.NewScriptExecutor(cfg.Analysis.Interpreter, cfg.Analysis.ScriptTimeout, cfg.Analysis.ScratchDir, orchLogger)
	engine := analysis.New(gateway, executor, embCache, cfg.Analysis, cfg.LLM, orchLogger)

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}

	extractor := extract.NewExtractor()

	api := e.Group("/api/v1")
	eh := &ElementsHandler{Store: st, Engine: engine, Extractor: extractor, Uploads: cfg.Uploads}
	eh.Register(api.Group("/elements"))
	fh := &FilesHandler{Store: st, Uploads: cfg.Uploads}
	fh.Register(api.Group("/files"))
	dh := &DatasetHandler{Store: st}
	dh.Register(api.Group("/dataset"))

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// buildCache constructs the embeddings cache backend, or nil when caching
// is disabled.
func buildCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		return cache.NewRedis(rdb, 0, logger), nil
	default:
		d, err := cache.NewDisk(cfg.Cache.Dir, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
