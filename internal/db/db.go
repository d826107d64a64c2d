// Файл: internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

var DB *sql.DB // Глобальное подключение к БД, выставляется InitDB

// InitDB открывает соединение с PostgreSQL, создает таблицы, применяет миграции и индексы.
func InitDB(ctx context.Context, dbURL string, logger *zap.SugaredLogger) (*sql.DB, error) {
	logger = orNop(logger)
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL не установлена")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DATABASE_URL: %w", err)
	}
	query := parsedURL.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "prefer")
	}
	parsedURL.RawQuery = query.Encode()

	conn, err := sql.Open("postgres", parsedURL.String())
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(20)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка проверки соединения с базой данных: %w", err)
	}
	logger.Info("Успешное подключение к базе данных.")

	if err := createTables(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("Создание таблиц (если не существуют) завершено.")

	if err := migrateDBSchema(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка выполнения миграции схемы: %w", err)
	}

	createIndexes(ctx, conn, logger)

	DB = conn
	logger.Info("Инициализация базы данных успешно завершена.")
	return conn, nil
}

const createTablesSQL = `
    CREATE TABLE IF NOT EXISTS menus (
        id UUID PRIMARY KEY,
        owner_id TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE TABLE IF NOT EXISTS reviews (
        id UUID PRIMARY KEY,
        menu_id UUID NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
        rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
        status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
        comment TEXT,
        response TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE TABLE IF NOT EXISTS referrals (
        id UUID PRIMARY KEY,
        referrer_id TEXT NOT NULL,
        referred_email VARCHAR(255) NOT NULL DEFAULT '',
        referral_code VARCHAR(20) NOT NULL,
        status TEXT NOT NULL DEFAULT 'pending',
        reward_amount BIGINT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        completed_at TIMESTAMPTZ,
        UNIQUE (referral_code, referred_email)
    );
`

func createTables(ctx context.Context, conn *sql.DB) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции для создания таблиц: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("ошибка создания таблиц: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции создания таблиц: %w", err)
	}
	return nil
}

// migrateDBSchema выполняет идемпотентные миграции для уже существующих таблиц.
func migrateDBSchema(ctx context.Context, conn *sql.DB, logger *zap.SugaredLogger) error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "reviews.response",
			sql:  `ALTER TABLE reviews ADD COLUMN IF NOT EXISTS response TEXT;`,
		},
		{
			name: "referrals.completed_at",
			sql:  `ALTER TABLE referrals ADD COLUMN IF NOT EXISTS completed_at TIMESTAMPTZ;`,
		},
		{
			// Одна якорная запись на пользователя: гонка первого создания кода
			// проявляется как нарушение уникальности.
			name: "referrals.one_seed_per_referrer",
			sql: `CREATE UNIQUE INDEX IF NOT EXISTS referrals_one_seed_per_referrer
                  ON referrals (referrer_id) WHERE referred_email = '';`,
		},
	}

	for _, migration := range migrations {
		if _, err := conn.ExecContext(ctx, migration.sql); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				logger.Infof("Миграция '%s' пропущена (объект уже существует): %v", migration.name, err)
				continue
			}
			return fmt.Errorf("ошибка миграции схемы ('%s'): %w", migration.name, err)
		}
		logger.Debugf("Миграция ('%s') применена или объект уже существовал.", migration.name)
	}
	return nil
}

// createIndexes создает индексы по одному; ошибка одного индекса не мешает остальным.
func createIndexes(ctx context.Context, conn *sql.DB, logger *zap.SugaredLogger) {
	indexStatements := []string{
		`CREATE INDEX IF NOT EXISTS idx_menus_owner_id ON menus(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_menu_id_status ON reviews(menu_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_referrals_referrer_id ON referrals(referrer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_referrals_created_at ON referrals(created_at)`,
	}
	for _, stmt := range indexStatements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			logger.Warnf("Ошибка при создании индекса ('%s'): %v", stmt, err)
		}
	}
}

// CloseDB закрывает глобальное соединение с базой данных.
func CloseDB(logger *zap.SugaredLogger) {
	if DB != nil {
		DB.Close()
		orNop(logger).Info("Соединение с базой данных закрыто.")
	}
}

func orNop(logger *zap.SugaredLogger) *zap.SugaredLogger {
	if logger == nil {
		return zap.NewNop().Sugar()
	}
	return logger
}
