package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rfpmanager/db"
	"rfpmanager/db/migrations"
	"rfpmanager/internal/ai"
	"rfpmanager/internal/auth"
	"rfpmanager/internal/config"
	"rfpmanager/internal/handlers"
	"rfpmanager/internal/mail"
	"rfpmanager/internal/router"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rfp-server",
		Short: "RFP Manager API server",
		// без подкоманды запускаем сервер
		RunE: runServe,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory with app.env")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the mailbox poller",
		RunE:  runServe,
	})
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apiLog := log.New(os.Stdout, "api: ", log.LstdFlags)
	mailLog := log.New(os.Stdout, "mail: ", log.LstdFlags)
	aiLog := log.New(os.Stdout, "ai: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(ctx, cfg.PostgresConn)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if cfg.AutoMigrate {
		if err := migrations.Up(dbConn.DB, apiLog); err != nil {
			return err
		}
	}

	store := db.NewStorage(dbConn)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	correlator := mail.NewCorrelator(store, mailLog)

	deps := handlers.Deps{
		AI:         ai.NewService(ai.NewClient(cfg.AI), aiLog),
		Correlator: correlator,
		Tokens:     tokens,
		Logger:     apiLog,
		Timeout:    cfg.RequestTimeout,
		AppURL:     cfg.AppURL,
		AppEnv:     cfg.AppEnv,
	}
	if cfg.AI.APIKey == "" {
		aiLog.Println("OPENAI_API_KEY is not set, AI features use fallback results")
	}
	if cfg.Email.SMTPEnabled() {
		deps.Mailer = mail.NewSMTPSender(cfg.Email)
	} else {
		mailLog.Println("SMTP is not configured, RFPs will not be emailed")
	}

	pollerDone := make(chan struct{})
	if cfg.Email.IMAPEnabled() {
		poller := mail.NewPoller(mail.DialIMAP(cfg.Email), correlator, mail.PollerConfig{
			Interval:       cfg.Email.ProcessInterval,
			MaxPerCheck:    cfg.Email.MaxPerCheck,
			ReconnectDelay: cfg.Email.ReconnectDelay,
		}, mailLog)
		deps.Poller = poller
		go func() {
			defer close(pollerDone)
			if err := poller.Run(ctx); err != nil {
				mailLog.Printf("poller stopped: %v", err)
			}
		}()
	} else {
		close(pollerDone)
		mailLog.Println("IMAP is not configured, inbound email processing disabled")
	}

	h := handlers.NewHandler(store, deps)
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router.New(h, tokens, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		apiLog.Printf("Starting server on %s (%s)", cfg.ServerAddress, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		<-pollerDone
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	apiLog.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-pollerDone
	apiLog.Println("Server stopped")
	return nil
}
