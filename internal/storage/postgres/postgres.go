package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/MikhailRaia/paylink/internal/generator"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage implements LinkStorage on top of PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage connects to the database and applies pending migrations.
func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	if dsn == "" {
		return nil, errors.New("database connection string is empty")
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, err
	}

	return &Storage{pool: pool}, nil
}

func runMigrations(dsn string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

func (s *Storage) Save(ctx context.Context, link model.PaymentLink) (string, error) {
	id, err := generator.GenerateID(generator.LinkIDLength)
	if err != nil {
		return "", fmt.Errorf("error generating ID: %w", err)
	}

	if link.Status == "" {
		link.Status = model.StatusPending
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO payment_links (id, code, action, url, user_id, status) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, link.Code, link.Action, link.URL, link.UserID, string(link.Status))
	if err == nil {
		return id, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		existing, getErr := s.GetByCode(ctx, link.Code)
		if getErr != nil {
			return "", fmt.Errorf("error fetching existing link: %w", getErr)
		}
		return existing.ID, storage.ErrLinkExists
	}

	return "", fmt.Errorf("error inserting link into database: %w", err)
}

const selectLink = `SELECT id, code, action, url, user_id, status, created_at FROM payment_links`

func (s *Storage) Get(ctx context.Context, id string) (model.PaymentLink, error) {
	return s.queryOne(ctx, selectLink+` WHERE id = $1`, id)
}

func (s *Storage) GetByCode(ctx context.Context, code string) (model.PaymentLink, error) {
	return s.queryOne(ctx, selectLink+` WHERE code = $1`, code)
}

func (s *Storage) UpdateStatus(ctx context.Context, code string, from, to model.LinkStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE payment_links SET status = $1 WHERE code = $2 AND status = $3`,
		string(to), code, string(from))
	if err != nil {
		return fmt.Errorf("error updating link status: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := s.GetByCode(ctx, code); err != nil {
		return err
	}
	return storage.ErrStatusConflict
}

func (s *Storage) GetUserLinks(ctx context.Context, userID string) ([]model.PaymentLink, error) {
	rows, err := s.pool.Query(ctx, selectLink+` WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying user links: %w", err)
	}
	defer rows.Close()

	links := make([]model.PaymentLink, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user links: %w", err)
	}

	return links, nil
}

func (s *Storage) CancelUserLinks(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`UPDATE payment_links SET status = $1 WHERE id = $2 AND user_id = $3 AND status = $4`,
			string(model.StatusCancelled), id, userID, string(model.StatusPending))
	}

	results := tx.SendBatch(ctx, batch)
	for range ids {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to cancel link: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Storage) GetStats(ctx context.Context) (int, int, error) {
	var links, users int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT NULLIF(user_id, '')) FROM payment_links`).Scan(&links, &users)
	if err != nil {
		return 0, 0, fmt.Errorf("error querying stats: %w", err)
	}

	return links, users, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Storage) queryOne(ctx context.Context, query string, arg string) (model.PaymentLink, error) {
	link, err := scanLink(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PaymentLink{}, storage.ErrLinkNotFound
	}
	return link, err
}

func scanLink(row pgx.Row) (model.PaymentLink, error) {
	var (
		link   model.PaymentLink
		status string
	)

	if err := row.Scan(&link.ID, &link.Code, &link.Action, &link.URL, &link.UserID, &status, &link.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PaymentLink{}, err
		}
		return model.PaymentLink{}, fmt.Errorf("error scanning link: %w", err)
	}

	link.Status = model.LinkStatus(status)
	return link, nil
}
