package db

import (
	"database/sql"

	"go.uber.org/zap"
)

// Store реализует хранилища рефералов и отзывов поверх PostgreSQL.
type Store struct {
	conn *sql.DB
	log  *zap.SugaredLogger
}

// NewStore оборачивает открытое соединение.
func NewStore(conn *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{conn: conn, log: orNop(logger)}
}
