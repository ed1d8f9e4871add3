package vocab

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the vocabulary table. Execute it via
// [Postgres.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS vocabulary (
    term       TEXT NOT NULL,
    language   TEXT NOT NULL,
    reading    TEXT NOT NULL DEFAULT '',
    meaning    TEXT NOT NULL DEFAULT '',
    notes      TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    seen_count INTEGER NOT NULL DEFAULT 1,
    first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (term, language)
);
CREATE INDEX IF NOT EXISTS idx_vocabulary_language ON vocabulary(language);
CREATE INDEX IF NOT EXISTS idx_vocabulary_source ON vocabulary(source);
`

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a [Store] backed by a PostgreSQL database.
type Postgres struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

// NewPostgres creates a store that uses the given database connection or
// pool. The caller is responsible for calling [Postgres.Migrate] to ensure
// the schema exists before issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("vocab: migrate: %w", err)
	}
	return nil
}

// Add implements Store. Terms conflict on (term, language); conflicts update
// the gloss and bump the seen count.
func (p *Postgres) Add(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO vocabulary (term, language, reading, meaning, notes, source)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (term, language) DO UPDATE SET
			reading = CASE WHEN EXCLUDED.reading <> '' THEN EXCLUDED.reading ELSE vocabulary.reading END,
			meaning = EXCLUDED.meaning,
			notes = CASE WHEN EXCLUDED.notes <> '' THEN EXCLUDED.notes ELSE vocabulary.notes END,
			seen_count = vocabulary.seen_count + 1,
			last_seen = now()`

	_, err := p.db.Exec(ctx, query,
		entry.Term, entry.Language, entry.Reading, entry.Meaning, entry.Notes, entry.Source,
	)
	if err != nil {
		return fmt.Errorf("vocab: add %q: %w", entry.Term, err)
	}
	return nil
}

// List implements Store.
func (p *Postgres) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT term, language, reading, meaning, notes, source, seen_count, first_seen, last_seen
		FROM vocabulary`
	var (
		args  []any
		conds []string
	)
	if filter.Language != "" {
		args = append(args, filter.Language)
		conds = append(conds, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY last_seen DESC, term"

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vocab: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Term, &e.Language, &e.Reading, &e.Meaning, &e.Notes,
			&e.Source, &e.SeenCount, &e.FirstSeen, &e.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("vocab: list scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocab: list: %w", err)
	}
	return entries, nil
}
