package refreshtoken

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Postgres is the production Store backend, grounded on the teacher's
// encoder/decoder JSON-wrapping pattern over database/sql, using sqlx as the
// connection wrapper and lib/pq as the driver.
type Postgres struct {
	db *sqlx.DB
}

// OpenPostgres opens a connection pool against dsn and pings it. It does not
// check for the refresh_token table; Migrate creates it.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("refreshtoken: opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("refreshtoken: pinging postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the refresh_token table if it does not already exist.
func (p *Postgres) Migrate() error {
	_, err := p.db.Exec(`
		create table if not exists refresh_token (
			hash text primary key,
			record jsonb not null
		);
	`)
	if err != nil {
		return fmt.Errorf("refreshtoken: creating table: %w", err)
	}
	return nil
}

func (p *Postgres) Put(ctx context.Context, hash string, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("refreshtoken: marshaling record: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		insert into refresh_token (hash, record) values ($1, $2)
		on conflict (hash) do update set record = excluded.record`,
		hash, payload)
	return err
}

func (p *Postgres) Get(ctx context.Context, hash string) (Record, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `select record from refresh_token where hash = $1`, hash).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("refreshtoken: unmarshaling record: %w", err)
	}
	return record, nil
}

func (p *Postgres) Delete(ctx context.Context, hash string) error {
	_, err := p.db.ExecContext(ctx, `delete from refresh_token where hash = $1`, hash)
	return err
}
