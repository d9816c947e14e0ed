package internal

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/lychee-technology/sweet"
	"go.uber.org/zap"
)

// ValidatePostgresConfig performs basic sanity checks on Postgres-related settings.
func ValidatePostgresConfig(cfg sweet.DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("database.port must be a valid TCP port")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("database.maxConnections must be greater than 0")
	}
	if cfg.IAMAuth && cfg.Region == "" {
		return fmt.Errorf("database.region is required when iamAuth is enabled")
	}
	// Timeout may be zero (use defaults elsewhere), no strict check here.
	return nil
}

// BuildPostgresDSN renders cfg as a postgres:// URL with the given password.
func BuildPostgresDSN(cfg sweet.DatabaseConfig, password string) string {
	userInfo := url.User(cfg.Username)
	if password != "" {
		userInfo = url.UserPassword(cfg.Username, password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}

	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.Timeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.Timeout.Seconds())))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// iamTokenFunc generates a fresh Aurora DSQL connect token.
type iamTokenFunc func(ctx context.Context) (string, error)

func newIAMTokenFunc(ctx context.Context, cfg sweet.DatabaseConfig) (iamTokenFunc, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return func(ctx context.Context) (string, error) {
		token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
		if err != nil {
			return "", fmt.Errorf("generate dsql auth token: %w", err)
		}
		return token, nil
	}, nil
}

// NewPostgresPool opens a pgx pool sized from cfg. With IAMAuth every new
// connection authenticates with a freshly generated token.
func NewPostgresPool(ctx context.Context, cfg sweet.DatabaseConfig) (*pgxpool.Pool, error) {
	if err := ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(BuildPostgresDSN(cfg, cfg.Password))
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxConnections))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	if cfg.IAMAuth {
		tokenFn, err := newIAMTokenFunc(ctx, cfg)
		if err != nil {
			return nil, err
		}
		poolCfg.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := tokenFn(ctx)
			if err != nil {
				return err
			}
			cc.Password = token
			return nil
		}
		zap.S().Infow("postgres pool uses IAM auth tokens (dsql)", "host", cfg.Host, "region", cfg.Region)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// OpenPostgresSQL opens a database/sql handle through lib/pq. An IAM token
// is generated once at open time.
func OpenPostgresSQL(ctx context.Context, cfg sweet.DatabaseConfig) (*sql.DB, error) {
	if err := ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}

	password := cfg.Password
	if cfg.IAMAuth {
		tokenFn, err := newIAMTokenFunc(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if password, err = tokenFn(ctx); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("postgres", BuildPostgresDSN(cfg, password))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}
