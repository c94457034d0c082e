package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/telemetry"
)

const maxValueBytes = 1 << 20

func serveCmd() *cobra.Command {
	var (
		conn connectOptions
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the traced cache over HTTP",
		Long: "Serve the traced cache over HTTP.\n\n" +
			"  GET    /cache/{key}          read a value\n" +
			"  PUT    /cache/{key}          store the request body (?lifespan=1m, ?maxIdle=30s)\n" +
			"  DELETE /cache/{key}          remove a value\n" +
			"  GET    /cache?key=a&key=b    read several values as JSON\n" +
			"  GET    /healthz              sink health\n\n" +
			"Requests carrying W3C trace headers continue the caller's trace.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), conn, addr)
		},
	}

	conn.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func runServe(ctx context.Context, out io.Writer, conn connectOptions, addr string) (err error) {
	a, err := openApp(ctx, out, conn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Cache server listening", map[string]interface{}{
			"addr":  addr,
			"cache": a.cfg.Cache.Name,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler exposes a's cache and sink health, wrapped in server spans.
func newHandler(a *app) http.Handler {
	mux := http.NewServeMux()
	api := cacheAPI{cache: a.cache}
	mux.HandleFunc("GET /cache/{key}", api.get)
	mux.HandleFunc("PUT /cache/{key}", api.put)
	mux.HandleFunc("DELETE /cache/{key}", api.remove)
	mux.HandleFunc("GET /cache", api.getAll)
	mux.Handle("GET /healthz", telemetry.HealthHandler(a.sink))

	return telemetry.TracingMiddleware(a.cfg.Telemetry.ServiceName, &telemetry.HTTPConfig{
		ExcludedPaths:  []string{"/healthz"},
		TracerProvider: a.providers.TracerProvider(),
	})(mux)
}

type cacheAPI struct {
	cache cache.RemoteCache[string]
}

func (api cacheAPI) get(w http.ResponseWriter, r *http.Request) {
	v, found, err := api.cache.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, v)
}

func (api cacheAPI) put(w http.ResponseWriter, r *http.Request) {
	var opts []cache.WriteOption
	for param, opt := range map[string]func(time.Duration) cache.WriteOption{
		"lifespan": cache.WithLifespan,
		"maxIdle":  cache.WithMaxIdle,
	} {
		if s := r.URL.Query().Get(param); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid %s: %v", param, err), http.StatusBadRequest)
				return
			}
			opts = append(opts, opt(d))
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	_, existed, err := api.cache.Put(r.Context(), r.PathValue("key"), string(body), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (api cacheAPI) remove(w http.ResponseWriter, r *http.Request) {
	_, found, err := api.cache.Remove(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api cacheAPI) getAll(w http.ResponseWriter, r *http.Request) {
	values, err := api.cache.GetAll(r.Context(), r.URL.Query()["key"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(values)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	telemetry.RecordSpanError(r.Context(), err)
	status := http.StatusInternalServerError
	if errors.Is(err, cache.ErrCacheClosed) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
