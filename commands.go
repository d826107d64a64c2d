package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"feastq/internal/api"
	"feastq/internal/constants"
	"feastq/internal/db"
	"feastq/internal/ratelimit"
	"feastq/internal/referral"
	"feastq/internal/reputation"
)

const shutdownTimeout = 15 * time.Second

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API (по умолчанию)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Создать таблицы, применить миграции и выйти",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL не установлена")
			}
			if _, err := db.InitDB(cmd.Context(), a.cfg.DatabaseURL, a.logger); err != nil {
				return err
			}
			db.CloseDB(a.logger)
			a.logger.Info("Миграции применены.")
			return nil
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить токен доступа (для разработки)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET не установлен")
			}
			tok, err := api.GenerateToken(a.cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "ID пользователя")
	cmd.Flags().StringVar(&role, "role", constants.ROLE_USER, "роль: user, staff, owner, admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "срок действия токена")
	cmd.MarkFlagRequired("user")
	return cmd
}

// serve собирает хранилище, лимитер и сервисы, затем запускает HTTP-сервер
// до получения SIGINT/SIGTERM.
func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET не установлен, API не может проверять токены")
	}

	var (
		referralStore referral.Store
		reviewStore   reputation.ReviewStore
		menuStore     reputation.MenuStore
	)
	if a.cfg.DatabaseURL != "" {
		conn, err := db.InitDB(ctx, a.cfg.DatabaseURL, a.logger)
		if err != nil {
			return fmt.Errorf("не удалось инициализировать базу данных: %w", err)
		}
		defer db.CloseDB(a.logger)
		store := db.NewStore(conn, a.logger)
		referralStore, reviewStore, menuStore = store, store, store
	} else {
		a.logger.Warn("Используется хранилище в памяти, данные не сохраняются между перезапусками.")
		store := db.NewMemoryStore()
		referralStore, reviewStore, menuStore = store, store, store
	}

	var limiter referral.Limiter
	if a.cfg.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("не удалось подключиться к Redis: %w", err)
		}
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, a.cfg.ReferralRateLimit, a.cfg.ReferralRateWindow)
	} else {
		limiter = ratelimit.NewMemoryLimiter(a.cfg.ReferralRateLimit, a.cfg.ReferralRateWindow)
	}

	issuer := referral.NewIssuer(referralStore, referral.NewCodeGenerator(nil), limiter, referral.Options{
		RewardAmount:  a.cfg.ReferralRewardAmount,
		PublicBaseURL: a.cfg.PublicBaseURL,
	}, a.logger.Named("referral"))
	aggregator := reputation.NewAggregator(reviewStore, menuStore, a.logger.Named("reputation"))

	router := api.NewRouter(api.ApiDependencies{
		Config:     a.cfg,
		Referrals:  issuer,
		Reputation: aggregator,
		Logger:     a.logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("Запуск HTTP-сервера на порту %s", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("не удалось запустить HTTP-сервер: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Получен сигнал остановки, завершаем работу...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
	}
	a.logger.Info("HTTP-сервер остановлен.")
	return nil
}
