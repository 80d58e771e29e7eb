// Package server runs the HTTP API and the gRPC health server until the
// context is cancelled, then drains both.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/pkg/grpc"
	"github.com/shashiranjanraj/checkout/pkg/logger"
)

// Config holds the listen addresses and timeouts.
type Config struct {
	HTTPAddr string
	// GRPCPort "" disables the gRPC health server.
	GRPCPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func FromConfig() Config {
	return Config{
		HTTPAddr:        ":" + config.AppPort(),
		GRPCPort:        config.GRPCPort(),
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Run listens on cfg.HTTPAddr and serves until ctx is done.
func Run(ctx context.Context, cfg Config, handler http.Handler, probe grpc.Probe) error {
	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", cfg.HTTPAddr, err)
	}
	return Serve(ctx, lis, cfg, handler, probe)
}

// Serve serves handler on lis and, when configured, gRPC health on
// cfg.GRPCPort. It returns after both have shut down.
func Serve(ctx context.Context, lis net.Listener, cfg Config, handler http.Handler, probe grpc.Probe) error {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	if cfg.GRPCPort != "" {
		gs, _, err := grpc.Start(cfg.GRPCPort, probe)
		if err != nil {
			_ = lis.Close()
			return err
		}
		defer grpc.Stop(gs, cfg.ShutdownTimeout)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
