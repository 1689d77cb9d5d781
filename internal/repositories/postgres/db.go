// Package postgres implements the repositories on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/printhouse/orders-api/internal/platform/config"
	"github.com/printhouse/orders-api/internal/repositories"
)

// Open connects to cfg.PostgresDSN and applies the pool limits.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	db, err := gorm.Open(gormpostgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, wrapError("postgres.ping", err)
	}
	return db, nil
}

type txKey struct{}

// conn returns the transaction carried by ctx or a session on db.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

func inTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok && tx != nil
}

// Postgres SQLSTATE codes mapped onto repository error kinds.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.NewError(op, repositories.ErrorKindNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation, sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return repositories.NewError(op, repositories.ErrorKindConflict, err)
		case sqlStateForeignKeyViolation:
			return repositories.NewError(op, repositories.ErrorKindNotFound, err)
		}
		return repositories.NewError(op, repositories.ErrorKindUnknown, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return repositories.NewError(op, repositories.ErrorKindUnavailable, err)
	}
	return repositories.NewError(op, repositories.ErrorKindUnknown, err)
}
