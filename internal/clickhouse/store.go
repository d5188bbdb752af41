package clickhouse

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/crashwatch/crashwatch/internal/config"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/logger"
)

// ClickHouseStore owns the connection pool to the analytical store.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logger.Logger
}

// NewClickHouseStore opens a connection pool and verifies connectivity.
func NewClickHouseStore(cfg *config.Configuration, log *logger.Logger) (*ClickHouseStore, error) {
	opts := &clickhouse.Options{
		Addr: []string{cfg.ClickHouse.Address},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		},
		DialTimeout: 10 * time.Second,
		Debug:       cfg.ClickHouse.Debug,
	}
	if cfg.ClickHouse.UseTLS {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open clickhouse connection").
			WithReportableDetails(map[string]interface{}{
				"address":  cfg.ClickHouse.Address,
				"database": cfg.ClickHouse.Database,
			}).
			Mark(ierr.ErrDatabase)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to ping clickhouse").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("connected to clickhouse",
		"address", cfg.ClickHouse.Address,
		"database", cfg.ClickHouse.Database,
	)

	return &ClickHouseStore{conn: conn, logger: log}, nil
}

// GetConn returns the underlying driver connection.
func (s *ClickHouseStore) GetConn() driver.Conn {
	return s.conn
}

// Close closes the connection pool.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
