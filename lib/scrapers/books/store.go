package books

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const Schema = `
create table if not exists book (
	url text primary key,
	title text not null,
	price text not null,
	price_amount real,
	rating integer not null,
	in_stock integer not null,
	upc text not null default '',
	description text not null default '',
	scraped_at integer not null
);
`

type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a sqlite database at `path` and ensures the
// schema exists, ":memory:" works for throwaway stores.
func OpenStore(path string) (Store, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	// every connection to ":memory:" is a separate database
	database.SetMaxOpenConns(1)
	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return Store{}, err
	}
	return NewStore(database), nil
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

func (s Store) Close() error {
	return s.db.Close()
}

const upsertBook = `
insert into book (url, title, price, price_amount, rating, in_stock, upc, description, scraped_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (url) do update set
	title = excluded.title,
	price = excluded.price,
	price_amount = excluded.price_amount,
	rating = excluded.rating,
	in_stock = excluded.in_stock,
	upc = excluded.upc,
	description = excluded.description,
	scraped_at = excluded.scraped_at
`

// SaveBooks upserts `books` keyed by their detail url, books without one are
// keyed by title.
func (s Store) SaveBooks(ctx context.Context, books []Book, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range books {
		key := b.DetailURL
		if key == "" {
			key = b.Title
		}

		var amount sql.NullFloat64
		parsed, err := ParsePrice(b.Price)
		if err != nil {
			slog.DebugContext(ctx, "storing book without price amount", "title", b.Title, "err", err)
		} else {
			amount = sql.NullFloat64{Float64: parsed, Valid: true}
		}

		_, err = tx.ExecContext(
			ctx, upsertBook,
			key, b.Title, b.Price, amount, b.Rating, b.InStock, b.UPC, b.Description, now.Unix(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Books returns every stored book ordered by title.
func (s Store) Books(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select url, title, price, rating, in_stock, upc, description from book order by title`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Book
	for rows.Next() {
		var b Book
		err := rows.Scan(&b.DetailURL, &b.Title, &b.Price, &b.Rating, &b.InStock, &b.UPC, &b.Description)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
