package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// httpService runs an *http.Server under suture: ListenAndServe until ctx is
// canceled, then a graceful Shutdown bounded by shutdownTimeout.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (h *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *httpService) String() string {
	return "http-server"
}
