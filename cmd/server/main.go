package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/shuttleboard/shuttleboard/internal/board"
	"github.com/shuttleboard/shuttleboard/internal/config"
	"github.com/shuttleboard/shuttleboard/internal/engine"
	"github.com/shuttleboard/shuttleboard/internal/httpapi"
	"github.com/shuttleboard/shuttleboard/internal/hub"
	"github.com/shuttleboard/shuttleboard/internal/queue"
	"github.com/shuttleboard/shuttleboard/internal/store"
	"github.com/shuttleboard/shuttleboard/internal/ws"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg.LogLevel)
	defer log.Sync() //nolint:errcheck

	var (
		st  store.Store
		dir store.Directory
	)
	if cfg.DBURL != "" {
		pg, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			log.Fatal("connect postgres", zap.Error(err))
		}
		st, dir = pg, pg
		log.Info("using postgres store")
	} else {
		mem := store.NewMemory()
		st, dir = mem, mem
		log.Info("using in-memory store; state will not survive restarts")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(st, dir, log)
	qm := queue.NewManager(st, dir, log)
	h := hub.NewHub(ctx, board.Deps{
		Engine: eng,
		Queue:  qm,
		Store:  st,
		Dir:    dir,
		Log:    log,
	})

	handler := httpapi.SetupRoutes(h, st, log, ws.Options{
		WriteTimeout: cfg.WSWriteTimeout,
		ReadTimeout:  cfg.WSReadTimeout,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}
