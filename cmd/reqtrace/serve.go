package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/reqtrace"
	"github.com/aretw0/reqtrace/pkg/adapters/memory"
	"github.com/aretw0/reqtrace/pkg/adapters/redis"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracing HTTP server",
	Long: `Serves requests (proxied to --upstream, or echoed back when no upstream is
set) and traces those matching a configured tracer. The admin API and
Prometheus metrics are served on the admin address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := load(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			l.cfg.Server.Addr = addr
		}
		if addr, _ := cmd.Flags().GetString("admin-addr"); addr != "" {
			l.cfg.Server.AdminAddr = addr
		}
		upstream, _ := cmd.Flags().GetString("upstream")

		app, err := appHandler(upstream)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, l, app)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Override the traffic listen address")
	serveCmd.Flags().String("admin-addr", "", "Override the admin listen address")
	serveCmd.Flags().String("upstream", "", "Proxy requests to this URL instead of echoing them")
}

func appHandler(upstream string) (http.Handler, error) {
	if upstream == "" {
		return http.HandlerFunc(echo), nil
	}
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream: %w", err)
	}
	return httputil.NewSingleHostReverseProxy(target), nil
}

func echo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%s %s\n", r.Method, r.URL.Path)
	io.Copy(w, r.Body)
}

func newTracer(l *loaded) *reqtrace.Tracer {
	opts := []reqtrace.Option{reqtrace.WithLogger(l.logger)}
	for _, p := range l.profiles {
		opts = append(opts, reqtrace.WithProfile(p))
	}

	if rc := l.cfg.Redis; rc.Addr != "" {
		reg := redis.New(rc.Addr, "", 0, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		opts = append(opts,
			reqtrace.WithTraceRegistry(reg),
			reqtrace.WithLocker(redis.NewLocker(reg.Client(), rc.Prefix+"lock:")),
		)
		l.logger.Info("Using Redis trace registry", "addr", rc.Addr)
	} else {
		opts = append(opts, reqtrace.WithLocker(memory.NewLocker()))
	}
	return reqtrace.New(opts...)
}

func serve(ctx context.Context, l *loaded, app http.Handler) error {
	t := newTracer(l)
	logger := l.logger

	servers := []*http.Server{
		{Addr: l.cfg.Server.Addr, Handler: t.Wrap(app)},
		{Addr: l.cfg.Server.AdminAddr, Handler: t.AdminHandler()},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Start shutdown...")

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "addr", srv.Addr, "err", err)
				errs = append(errs, srv.Close())
			}
		}
		if err := t.Shutdown(sctx); err != nil {
			errs = append(errs, err)
		}
		logger.Info("Server stopped", slog.Int("tracers_left", t.Supervisor().Len()))
		return errors.Join(errs...)
	})

	return g.Wait()
}
