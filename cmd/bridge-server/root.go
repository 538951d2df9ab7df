package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/app"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/router"
)

const shutdownTimeout = 15 * time.Second

var cfgPath string

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bridge-server",
		Short: "Proof-verified NFT bridge service",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "hash-password" || cmd.Name() == "totp-secret" {
				return nil
			}
			if err := config.LoadConfig(cfgPath); err != nil {
				return err
			}
			return configureLogging(config.AppConfig.Log)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, NATS relay and verification dispatcher",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the bridge tables and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				conn, err := db.InitDB()
				if err != nil {
					return err
				}
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
		&cobra.Command{
			Use:   "hash-password <password>",
			Short: "Print the bcrypt hash for admin.passwordHash",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				fmt.Println(string(hash))
				return nil
			},
		},
		&cobra.Command{
			Use:   "totp-secret <account>",
			Short: "Generate an admin TOTP secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := handlers.GenerateTOTPSecret(args[0])
				if err != nil {
					return err
				}
				code, err := totp.GenerateCode(key.Secret(), time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("Secret: %s\n", key.Secret())
				fmt.Printf("URL: %s\n", key.URL())
				fmt.Printf("Current TOTP Code: %s\n", code)
				return nil
			},
		},
	)
	return root
}

func configureLogging(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func serve(parent context.Context) (err error) {
	cfg := config.AppConfig
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.InitDB()
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, sqlDB.Close())
	}()

	container, err := app.NewServiceContainer(cfg, conn)
	if err != nil {
		return err
	}
	defer container.Cleanup()

	if err := container.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRouter(cfg, conn, container.Handlers()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logrus.WithField("addr", srv.Addr).Info("🌐 HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logrus.Info("🛑 Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logrus.Info("✅ Bridge server stopped")
	return nil
}
