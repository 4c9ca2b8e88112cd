package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file source driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/logger"
)

// Connection pool settings.
const (
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 2
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultPingTimeout     = 5 * time.Second
)

// NewPostgresConnection connects and pings the database.
func NewPostgresConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// RunMigrations applies every pending migration found in dir.
func RunMigrations(db *sql.DB, dir string, log logger.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	if absPath, absErr := filepath.Abs(dir); absErr == nil {
		dir = absPath
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if upErr := m.Up(); upErr != nil {
		if errors.Is(upErr, migrate.ErrNoChange) {
			log.Info("No pending migrations", logger.String("migrations_path", dir))
			return nil
		}
		return fmt.Errorf("run migrations: %w", upErr)
	}

	log.Info("Migrations applied", logger.String("migrations_path", dir))
	return nil
}

// PostgresStore keeps recipes as JSONB documents.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a store on db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type recipeRow struct {
	ID   string `db:"id"`
	Body []byte `db:"body"`
}

func (s *PostgresStore) Get(ctx context.Context) (Snapshot, error) {
	var rows []recipeRow
	query := `SELECT id, body FROM recipes ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return Snapshot{}, fmt.Errorf("failed to list recipes: %w", err)
	}

	recipes := make([]CrawlRecipe, 0, len(rows))
	for _, row := range rows {
		var r CrawlRecipe
		if err := json.Unmarshal(row.Body, &r); err != nil {
			return Snapshot{}, fmt.Errorf("decode recipe %s: %w", row.ID, err)
		}
		recipes = append(recipes, r)
	}

	var active sql.NullString
	activeQuery := `SELECT active_recipe_id FROM recipe_session WHERE singleton`
	err := s.db.GetContext(ctx, &active, activeQuery)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("failed to read active recipe: %w", err)
	}

	return Snapshot{Recipes: recipes, ActiveID: active.String}, nil
}

func (s *PostgresStore) Put(ctx context.Context, r CrawlRecipe) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode recipe %s: %w", r.ID, err)
	}

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := `
		INSERT INTO recipes (id, name, url_pattern, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, url_pattern = EXCLUDED.url_pattern,
			body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`
	if _, execErr := s.db.ExecContext(ctx, query, r.ID, r.Name, r.URLPattern, body, created, r.UpdatedAt); execErr != nil {
		return fmt.Errorf("failed to save recipe %s: %w", r.ID, execErr)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrNotFound, id))
}

func (s *PostgresStore) SetActive(ctx context.Context, id string) error {
	var active sql.NullString
	if id != "" {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM recipes WHERE id = $1)`, id); err != nil {
			return fmt.Errorf("failed to check recipe %s: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		active = sql.NullString{String: id, Valid: true}
	}

	query := `
		INSERT INTO recipe_session (singleton, active_recipe_id) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET active_recipe_id = EXCLUDED.active_recipe_id
	`
	if _, err := s.db.ExecContext(ctx, query, active); err != nil {
		return fmt.Errorf("failed to set active recipe: %w", err)
	}
	return nil
}

func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
