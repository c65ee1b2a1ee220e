package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"shared-spreadsheet-editor/internal/auth"
	"shared-spreadsheet-editor/internal/config"
	"shared-spreadsheet-editor/internal/remote"
	"shared-spreadsheet-editor/internal/session"
	"shared-spreadsheet-editor/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP service address (overrides the config file)")
	rootCmd.AddCommand(serveCmd)
}

func newMux(cfg config.Config, log *logrus.Entry, hub *session.Hub, baseCtx context.Context) (http.Handler, error) {
	users, err := auth.NewManager(cfg.DataDir,
		auth.WithSessionTimeout(cfg.SessionTimeout),
		auth.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	files, err := store.Open(filepath.Join(cfg.DataDir, "excel"), log)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	users.Routes(mux)
	store.NewHandler(files, log).Routes(mux, users.Require)
	mux.Handle("/ws", &session.Server{
		Hub: hub,
		Session: session.Config{
			AutosaveDelay: cfg.AutosaveDelay,
			BannerTimeout: cfg.BannerTimeout,
			HistoryLimit:  cfg.HistoryLimit,
		},
		Persistence: func(token string) session.Persistence {
			return remote.New(cfg.BaseURL, token)
		},
		Validate:    users.ValidateToken,
		Upgrader:    websocket.Upgrader{CheckOrigin: session.CheckOrigin(cfg.AllowedOrigins)},
		BaseContext: baseCtx,
		Log:         log,
	})
	return store.CORS(cfg.AllowedOrigins, mux), nil
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logrus.NewEntry(cfg.Logger())
	hub := session.NewHub(log)

	g, ctx := errgroup.WithContext(ctx)
	handler, err := newMux(cfg, log, hub, ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error {
		log.WithField("addr", cfg.Addr).Info("server: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("server: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
