package e2e_harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16"
	s3Image       = "rustfs/rustfs:latest"

	pgUser     = "postgres"
	pgPassword = "password"
	pgDatabase = "sweet"

	s3AccessKey = "minio"
	s3SecretKey = "minio"

	startupTimeout = 60 * time.Second
)

// TestHarness owns the containers backing the E2E suite. Each Start call
// is paired with its Stop call by the test.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	PGDB        *sql.DB
	S3Container testcontainers.Container
	S3Endpoint  string
}

// startContainer runs req and resolves the host address of port.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start %s: %w", req.Image, err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		return c, "", err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return c, "", err
	}
	return c, fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

func terminate(ctx context.Context, c testcontainers.Container) error {
	if c == nil {
		return nil
	}
	return c.Terminate(ctx)
}

// StartPostgres boots Postgres and opens a lib/pq handle on it.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		// initdb restarts the server once, so the ready line shows up twice
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(startupTimeout),
	}
	c, addr, err := startContainer(ctx, req, "5432/tcp")
	h.PGContainer = c
	if err != nil {
		return "", err
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, addr, pgDatabase)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return "", fmt.Errorf("ping postgres: %w", err)
	}
	h.PGDSN = dsn
	h.PGDB = db
	return dsn, nil
}

// StopPostgres closes the DB handle and removes the container.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	var closeErr error
	if h.PGDB != nil {
		closeErr = h.PGDB.Close()
		h.PGDB = nil
	}
	err := terminate(ctx, h.PGContainer)
	h.PGContainer = nil
	return errors.Join(closeErr, err)
}

// StartS3 boots an S3 compatible object store and returns its endpoint URL.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        s3Image,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": s3AccessKey,
			"RUSTFS_SECRET_KEY": s3SecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(startupTimeout),
	}
	c, addr, err := startContainer(ctx, req, "9000/tcp")
	h.S3Container = c
	if err != nil {
		return "", err
	}
	h.S3Endpoint = "http://" + addr
	return h.S3Endpoint, nil
}

func (h *TestHarness) StopS3(ctx context.Context) error {
	err := terminate(ctx, h.S3Container)
	h.S3Container = nil
	return err
}
