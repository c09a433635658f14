package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/larpkeep/characterhub/pkg/query"
)

// ErrNotFound is returned when no tag matches the requested id.
var ErrNotFound = errors.New("tag not found")

// columns maps exposed filter fields to table columns and doubles as the
// filter whitelist.
var columns = map[string]string{
	"id":    "id",
	"name":  "name",
	"type":  "type",
	"venue": "venue",
}

// Store persists tags in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore builds a tag store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List returns tags matching the filter.
func (s *Store) List(ctx context.Context, f *query.Filter) ([]*Tag, error) {
	clause, args, err := query.ToSQL(f.Where, columns)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT id, name, type, venue FROM tags WHERE ")
	b.WriteString(clause)
	b.WriteString(" ORDER BY id")
	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var list []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Venue); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// Count returns the number of tags matching the predicate.
func (s *Store) Count(ctx context.Context, p query.Predicate) (int64, error) {
	clause, args, err := query.ToSQL(p, columns)
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags WHERE "+clause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting tags: %w", err)
	}
	return count, nil
}

// Get returns a tag by id.
func (s *Store) Get(ctx context.Context, id int64) (*Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, type, venue FROM tags WHERE id = $1", id,
	).Scan(&t.ID, &t.Name, &t.Type, &t.Venue)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %d: %w", id, err)
	}
	return &t, nil
}

// Create inserts a tag and fills in its generated id.
func (s *Store) Create(ctx context.Context, t *Tag) error {
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO tags (name, type, venue) VALUES ($1, $2, $3) RETURNING id",
		t.Name, t.Type, t.Venue,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("creating tag: %w", err)
	}
	return nil
}

// Update replaces a tag's mutable attributes.
func (s *Store) Update(ctx context.Context, t *Tag) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tags SET name = $1, type = $2, venue = $3 WHERE id = $4",
		t.Name, t.Type, t.Venue, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tag %d: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a tag and its character links.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting tag %d: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM character_tags WHERE tag_id = $1", id); err != nil {
		return fmt.Errorf("unlinking tag %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting tag %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
