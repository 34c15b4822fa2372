package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qivr/analytics-etl/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultStatementTimeout = 5 * time.Minute
	defaultMaxConns         = 4
	applicationName         = "analytics-etl"
)

var ErrNoCredentials = errors.New("no database credentials configured")

type Options struct {
	// StatementTimeout bounds every query both server-side and via context.
	StatementTimeout time.Duration
	MaxConns         int32
}

// Connector opens read-only sessions against the operational store. Credentials
// come from DatabaseURL when set, otherwise from the credential source.
type Connector struct {
	creds       domain.CredentialSource
	databaseURL string
	opts        Options
	logger      *zap.Logger
}

func NewConnector(creds domain.CredentialSource, databaseURL string, opts Options, logger *zap.Logger) *Connector {
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = DefaultStatementTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	return &Connector{creds: creds, databaseURL: databaseURL, opts: opts, logger: logger}
}

func (c *Connector) Connect(ctx context.Context) (domain.Session, error) {
	cfg, err := c.poolConfig(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	c.logger.Info("connected to operational store",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Duration("statement_timeout", c.opts.StatementTimeout))
	return NewSession(pool, c.opts.StatementTimeout), nil
}

func (c *Connector) poolConfig(ctx context.Context) (*pgxpool.Config, error) {
	if c.databaseURL != "" {
		return PoolConfigFromURL(c.databaseURL, c.opts)
	}
	if c.creds == nil {
		return nil, ErrNoCredentials
	}
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}
	return PoolConfig(creds, c.opts)
}

// PoolConfig builds a pool configuration from discrete connection parameters.
func PoolConfig(creds domain.DBCredentials, opts Options) (*pgxpool.Config, error) {
	if creds.Host == "" || creds.Database == "" || creds.User == "" {
		return nil, fmt.Errorf("incomplete credentials for %s", creds)
	}
	port := creds.Port
	if port == 0 {
		port = 5432
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		dsnValue(creds.Host), port, dsnValue(creds.Database), dsnValue(creds.User), dsnValue(creds.Password))
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		// The DSN holds the password; report only the safe form.
		return nil, fmt.Errorf("invalid connection parameters for %s", creds)
	}
	applyOptions(cfg, opts)
	return cfg, nil
}

// dsnValue quotes v for a keyword/value connection string.
func dsnValue(v string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

func PoolConfigFromURL(url string, opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	applyOptions(cfg, opts)
	return cfg, nil
}

// applyOptions forces every session read-only and sets the statement timeout.
func applyOptions(cfg *pgxpool.Config, opts Options) {
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = DefaultStatementTimeout
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	rp := cfg.ConnConfig.RuntimeParams
	rp["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	rp["default_transaction_read_only"] = "on"
	rp["application_name"] = applicationName
}
