// Package postgres is the database/sql + lib/pq implementation of the
// purchase order, approval, registration and dashboard persistence contracts.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
	"go.uber.org/zap"
)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) txOptions(isolation sql.IsolationLevel) database.TxOptions {
	opts := database.DefaultTxOptions()
	opts.IsolationLevel = isolation
	opts.Logger = s.log
	return opts
}

// addressColumn maps an Address to a JSONB column.
type addressColumn struct {
	a *models.Address
}

func (c addressColumn) Value() (driver.Value, error) {
	if c.a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.a)
}

func (c addressColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.a = models.Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, c.a)
	case string:
		return json.Unmarshal([]byte(v), c.a)
	}
	return fmt.Errorf("scan address: unsupported type %T", src)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type rowScanner interface {
	Scan(dest ...any) error
}
