package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type Runner struct {
	Logger *zap.Logger
	// DrainTimeout bounds how long WithSignals waits for start to return
	// after a shutdown signal. Default 30s.
	DrainTimeout time.Duration
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log, DrainTimeout: 30 * time.Second}
}

// WithSignals runs start with a context cancelled on SIGINT/SIGTERM and
// returns the process exit code.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.run(ctx, start)
}

func (r *Runner) run(ctx context.Context, start func(ctx context.Context) error) int {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		// let in-flight work finish before the process exits
		select {
		case err := <-errCh:
			return r.exitCode(err)
		case <-time.After(r.drainTimeout()):
			r.Logger.Warn("drain timeout exceeded", zap.Duration("timeout", r.drainTimeout()))
			return 1
		}
	case err := <-errCh:
		return r.exitCode(err)
	}
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func (r *Runner) drainTimeout() time.Duration {
	if r.DrainTimeout <= 0 {
		return 30 * time.Second
	}
	return r.DrainTimeout
}

// Graceful runs shutdown with a fresh 10s budget once ctx is done.
func (r *Runner) Graceful(ctx context.Context, shutdown func(context.Context) error) {
	<-ctx.Done()
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdown(c); err != nil {
		r.Logger.Warn("graceful shutdown", zap.Error(err))
	}
}

func Exit(code int) {
	os.Exit(code)
}
