package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound means no record matched the query.
	ErrNotFound = errors.New("record not found")
	// ErrConnection means the record database could not be opened.
	ErrConnection = errors.New("record store connection failed")
)

// Record is one entry of the record table
type Record struct {
	Entry        string
	EntryName    string
	ProteinNames string
	GeneNames    string
	Organism     string
	Length       int
	Function     string
}

// DB wraps the record SQLite database
type DB struct {
	db    *sql.DB
	table string
}

// Open opens the record database read-only. table must be a plain
// identifier; it is spliced into query text.
func Open(path, table string) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrConnection, err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect to database: %v", ErrConnection, err)
	}

	return &DB{db: db, table: table}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// LookupOne returns the first record, in table order, whose entry or entry
// name equals query or whose protein names, gene names or organism contain
// it. Matching ignores case.
func (d *DB) LookupOne(ctx context.Context, query string) (*Record, error) {
	q := strings.ToLower(query)
	row := d.db.QueryRowContext(ctx, `
		SELECT entry, entry_name, protein_names, gene_names, organism, length, function
		FROM `+d.table+`
		WHERE lower(entry) = ?
		   OR lower(entry_name) = ?
		   OR instr(lower(protein_names), ?) > 0
		   OR instr(lower(gene_names), ?) > 0
		   OR instr(lower(organism), ?) > 0
		ORDER BY rowid
		LIMIT 1
	`, q, q, q, q, q)

	var r Record
	var entryName, proteins, genes, organism, function sql.NullString
	var length sql.NullInt64
	err := row.Scan(&r.Entry, &entryName, &proteins, &genes, &organism, &length, &function)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	r.EntryName = entryName.String
	r.ProteinNames = proteins.String
	r.GeneNames = genes.String
	r.Organism = organism.String
	r.Function = function.String
	r.Length = int(length.Int64)
	return &r, nil
}

// Count returns the number of records.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM `+d.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Store opens a fresh connection for every lookup and closes it afterwards.
type Store struct {
	Path  string
	Table string
}

// NewStore creates a per-call record store.
func NewStore(path, table string) *Store {
	return &Store{Path: path, Table: table}
}

// LookupOne opens the database, runs DB.LookupOne and closes it again.
func (s *Store) LookupOne(ctx context.Context, query string) (*Record, error) {
	database, err := Open(s.Path, s.Table)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	return database.LookupOne(ctx, query)
}

// Count opens the database, runs DB.Count and closes it again.
func (s *Store) Count(ctx context.Context) (int, error) {
	database, err := Open(s.Path, s.Table)
	if err != nil {
		return 0, err
	}
	defer database.Close()

	return database.Count(ctx)
}
