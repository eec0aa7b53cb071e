package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"

	"github.com/fjod/go_storefront/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository struct {
	db     *sql.DB
	driver string
}

type ProductRepository interface {
	ListProducts(ctx context.Context, search string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, sku string, update domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, sku string) error
}

type CartRepository interface {
	AddCartItem(ctx context.Context, userRef, sku string, qty int) (int, error)
	SetCartItem(ctx context.Context, userRef, sku string, qty int) (domain.SetOutcome, error)
	RemoveCartItem(ctx context.Context, userRef, sku string) (bool, error)
	GetCartSnapshot(ctx context.Context, userRef string) (*domain.CartSnapshot, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

func NewPostgresRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db, driver: "postgres"}, nil
}

// NewSQLiteRepository opens a sqlite database at dbPath (":memory:" works).
// The pool is capped at a single connection: sqlite has one writer, and an
// in-memory database would otherwise be a different database per connection.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	if _, e3 := db.Exec(`PRAGMA foreign_keys = ON`); e3 != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", e3)
	}

	return &Repository{db: db, driver: "sqlite"}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	m, err := r.newMigrate(migrationsPath)
	if err != nil {
		return err
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) newMigrate(migrationsPath string) (*migrate.Migrate, error) {
	switch r.driver {
	case "postgres":
		driver, err := migratepg.WithInstance(r.db, &migratepg.Config{
			MigrationsTable: "storefront_schema_migrations",
		})
		if err != nil {
			return nil, fmt.Errorf("could not create migration driver: %w", err)
		}
		m, err := migrate.NewWithDatabaseInstance(
			fmt.Sprintf("file://%s", migrationsPath), "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("could not create migrate instance: %w", err)
		}
		return m, nil
	case "sqlite":
		driver, err := migratesqlite.WithInstance(r.db, &migratesqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("could not create migration driver: %w", err)
		}
		m, err := migrate.NewWithDatabaseInstance(
			fmt.Sprintf("file://%s", migrationsPath), "sqlite", driver)
		if err != nil {
			return nil, fmt.Errorf("could not create migrate instance: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", r.driver)
	}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// isUniqueViolation recognizes unique-constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		// SQLITE_CONSTRAINT_PRIMARYKEY / SQLITE_CONSTRAINT_UNIQUE
		return sqErr.Code() == 1555 || sqErr.Code() == 2067
	}
	return false
}

// isContention recognizes transient lock and serialization failures that the
// caller may retry: postgres lock_not_available, serialization_failure,
// deadlock_detected; sqlite SQLITE_BUSY.
func isContention(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40001", "40P01":
			return true
		}
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == 5
	}
	return false
}

// translateErr maps driver error codes to the package sentinels, wrapping so
// the original cause stays inspectable.
func translateErr(err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicateSKU, err)
	case isContention(err):
		return fmt.Errorf("%w: %v", ErrStoreContention, err)
	default:
		return err
	}
}
