package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"feastq/internal/config"
)

// app - общее окружение команд: конфигурация и логгер.
type app struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "feastq",
		Short:         "Реферальная программа и репутация меню",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	rootCmd.AddCommand(a.serveCmd(), a.migrateCmd(), a.tokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Критическая ошибка: %v\n", err)
		os.Exit(1)
	}
}

// init загружает .env, конфигурацию и создает логгер.
func (a *app) init() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Предупреждение: не удалось загрузить файл .env. Переменные окружения должны быть установлены иным способом.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("не удалось создать логгер: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
