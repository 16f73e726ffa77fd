package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListenAndServe serves /metrics on its own mux (not the global
// http.DefaultServeMux, which pprof's net/http/pprof package likes to
// register itself onto as a side effect of being imported anywhere in the
// binary) until ctx is cancelled, then closes the listener so the
// errgroup-supervised process in cmd/mirrobot doesn't leave it running
// after every other goroutine has started tearing down.
func ListenAndServe(ctx context.Context, promPort int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	listen := fmt.Sprintf("0.0.0.0:%d", promPort)
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.LogNoRequestID(
		"Starting Prometheus metrics",
		"version", config.Version,
		"host", listen,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
