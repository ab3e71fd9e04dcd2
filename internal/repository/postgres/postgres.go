package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ensure PostgresDB implements db.Database interface
var _ db.Database = (*PostgresDB)(nil)

// PostgresDB implements the db.Database interface
type PostgresDB struct {
	conn *sql.DB
}

// NewPostgresDB opens a connection, verifies it and applies migrations
func NewPostgresDB(ctx context.Context, dbConfig config.DatabaseConfig) (*PostgresDB, error) {
	logger.Log.WithField("host", dbConfig.Host).WithField("database", dbConfig.Name).Info("Connecting to PostgreSQL")

	conn, err := sql.Open("postgres", dbConfig.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	logger.Log.Info("Successfully connected to PostgreSQL")

	p := &PostgresDB{conn: conn}

	if err = p.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return p, nil
}

// Ping checks the connection
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.conn.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RunMigrations applies the embedded migrations using golang-migrate
func (p *PostgresDB) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error opening migration source: %w", err)
	}

	driver, err := migratepg.WithInstance(p.conn, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("error creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	logger.Log.Info("Database migrations applied successfully")
	return nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// validID reports whether id can be compared against a UUID column.
// Malformed ids are treated as missing rows instead of query errors.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
