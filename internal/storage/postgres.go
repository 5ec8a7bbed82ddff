package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalogbot/internal/domain"
)

// CatalogStore persists normalized items in PostgreSQL. The items table
// carries a UNIQUE constraint on name so concurrent ingestion runs cannot
// slip a duplicate past the find-then-insert check; a unique violation
// surfaces as domain.ErrDuplicate.
type CatalogStore struct {
	db *pgxpool.Pool
}

func NewCatalogStore(connStr string) (*CatalogStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &CatalogStore{db: db}, nil
}

func (s *CatalogStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *CatalogStore) Close() {
	s.db.Close()
}

// FindByName returns the catalog entry with the exact name, or (nil, nil)
// when none exists.
func (s *CatalogStore) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, name, type, version, category, file_size, description,
		        download_links, source_url, date_added, added_by, scraped, is_game
		 FROM items WHERE name = $1`,
		name,
	)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// Insert commits a new item. A name collision maps to domain.ErrDuplicate.
func (s *CatalogStore) Insert(ctx context.Context, item *domain.Item) error {
	links, err := json.Marshal(item.DownloadLinks)
	if err != nil {
		return fmt.Errorf("marshaling download links: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO items (name, type, version, category, file_size, description,
		                    download_links, source_url, os, date_added, added_by, scraped, is_game)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		item.Name, string(item.Type), item.Version, item.Category, item.FileSize,
		item.Description, links, item.SourceURL, item.OS, item.DateAdded,
		item.AddedBy, item.Scraped, item.IsGame,
	).Scan(&item.ID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicate
	}
	return err
}

// ListItems returns recently added items for the query API.
func (s *CatalogStore) ListItems(ctx context.Context, itemType string, limit int) ([]domain.Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, name, type, version, category, file_size, description,
	                 download_links, source_url, date_added, added_by, scraped, is_game
	          FROM items`
	args := []any{}
	if itemType != "" {
		query += ` WHERE type = $1`
		args = append(args, itemType)
	}
	query += fmt.Sprintf(` ORDER BY date_added DESC LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CountByType returns the number of catalog entries of a given type.
func (s *CatalogStore) CountByType(ctx context.Context, itemType string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE type = $1`, itemType).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var itemType string
	var links []byte

	err := row.Scan(&item.ID, &item.Name, &itemType, &item.Version, &item.Category,
		&item.FileSize, &item.Description, &links, &item.SourceURL,
		&item.DateAdded, &item.AddedBy, &item.Scraped, &item.IsGame)
	if err != nil {
		return nil, err
	}

	item.Type = domain.ItemType(itemType)
	if len(links) > 0 {
		if err := json.Unmarshal(links, &item.DownloadLinks); err != nil {
			return nil, fmt.Errorf("unmarshaling download links: %w", err)
		}
	}
	return &item, nil
}
