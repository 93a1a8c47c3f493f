package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ayumerna "github.com/Lovelumine/AYumeRNA"
	"github.com/Lovelumine/AYumeRNA/auth"
	"github.com/Lovelumine/AYumeRNA/catalog"
	"github.com/Lovelumine/AYumeRNA/config"
	"github.com/Lovelumine/AYumeRNA/policy"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the API server. Every operation except /hello, /auth/register, /auth/login,
the documentation endpoints and /metrics requires "Authorization: Bearer <token>".
In jwt mode the token is a signed JWT; in session mode it is an opaque token
looked up in Redis.

SIGHUP reloads the API metadata from the configuration.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if address, _ := cmd.Flags().GetString("address"); address != "" {
		cfg.Server.Address = address
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	bearer, closeAuth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeAuth(); err != nil {
			logger.Warn("failed to close session store", zap.Error(err))
		}
	}()
	logger.Info("bearer verification", zap.String("mode", cfg.Auth.Mode))

	e, err := newEngine(cfg, logger, bearer, catalog.Services{
		Tasks: newLoggingTasks(logger),
	})
	if err != nil {
		return err
	}
	if err := e.Init(); err != nil {
		return fmt.Errorf("failed to initialize api: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      e.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for {
		select {
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				reload(cmd, e.Reload, logger)
				continue
			}
			logger.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Error("server forced to shutdown", zap.Error(err))
				return err
			}
			logger.Info("server shutdown complete")
			return nil
		}
	}
}

// newAuthenticator builds the bearerAuth verifier for the configured mode.
// The returned func releases its resources.
func newAuthenticator(cfg config.AuthConfig) (policy.Authenticator, func() error, error) {
	switch cfg.Mode {
	case config.AuthModeSession:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sessions := auth.NewSessionTokens(client)
		sessions.TTL = cfg.SessionTTL
		return sessions, client.Close, nil
	default:
		bearer, err := auth.NewBearerJWT([]byte(cfg.JWTSecret), cfg.Issuer)
		if err != nil {
			return nil, nil, err
		}
		bearer.Leeway = cfg.Leeway
		return bearer, func() error { return nil }, nil
	}
}

func reload(cmd *cobra.Command, apply func(ayumerna.Info) error, logger *zap.Logger) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		logger.Error("reload failed", zap.Error(err))
		return
	}
	if err := apply(apiInfo(cfg.API)); err != nil {
		logger.Error("reload failed", zap.Error(err))
	}
}
