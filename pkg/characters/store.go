package characters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/larpkeep/characterhub/pkg/query"
	"github.com/larpkeep/characterhub/pkg/tags"
)

// ErrNotFound is returned when no character matches the requested id.
var ErrNotFound = errors.New("character not found")

// columns maps exposed filter fields to table columns and doubles as the
// filter whitelist.
var columns = map[string]string{
	"id":      "id",
	"userid":  "userid",
	"name":    "name",
	"type":    "type",
	"venue":   "venue",
	"orgunit": "orgunit",
	"active":  "active",
}

const selectColumns = "id, userid, name, type, venue, orgunit, active"

// Store persists characters in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore builds a character store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func scanCharacter(row interface{ Scan(...interface{}) error }) (*Character, error) {
	var ch Character
	var userID sql.NullInt64
	if err := row.Scan(&ch.ID, &userID, &ch.Name, &ch.Type, &ch.Venue, &ch.OrgUnit, &ch.Active); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		ch.UserID = &id
	}
	return &ch, nil
}

// List returns characters matching the filter. The filter is expected to
// have passed through the policy's scope restriction already.
func (s *Store) List(ctx context.Context, f *query.Filter) ([]*Character, error) {
	clause, args, err := query.ToSQL(f.Where, columns)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT " + selectColumns + " FROM characters WHERE ")
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
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	var list []*Character
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character: %w", err)
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

// Count returns the number of characters matching the predicate.
func (s *Store) Count(ctx context.Context, p query.Predicate) (int64, error) {
	clause, args, err := query.ToSQL(p, columns)
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM characters WHERE "+clause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting characters: %w", err)
	}
	return count, nil
}

// Get returns a character by id.
func (s *Store) Get(ctx context.Context, id int64) (*Character, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM characters WHERE id = $1", id)
	ch, err := scanCharacter(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting character %d: %w", id, err)
	}
	return ch, nil
}

// Create inserts a character and fills in its generated id.
func (s *Store) Create(ctx context.Context, ch *Character) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO characters (userid, name, type, venue, orgunit, active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		nullableID(ch.UserID), ch.Name, ch.Type, ch.Venue, ch.OrgUnit, ch.Active,
	).Scan(&ch.ID)
	if err != nil {
		return fmt.Errorf("creating character: %w", err)
	}
	return nil
}

// Update replaces a character's mutable attributes: name, owner (when being
// set for the first time) and active flag. Type, venue and org unit never
// change through this path.
func (s *Store) Update(ctx context.Context, ch *Character) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE characters SET userid = $1, name = $2, active = $3 WHERE id = $4",
		nullableID(ch.UserID), ch.Name, ch.Active, ch.ID,
	)
	if err != nil {
		return fmt.Errorf("updating character %d: %w", ch.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOrgUnit moves a character to another org unit. Only the dedicated move
// operation uses this.
func (s *Store) SetOrgUnit(ctx context.Context, id int64, orgunit int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE characters SET orgunit = $1 WHERE id = $2", orgunit, id)
	if err != nil {
		return fmt.Errorf("moving character %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate performs the logical delete. Rows are never removed physically.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE characters SET active = FALSE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deactivating character %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Tags returns the tags linked to a character.
func (s *Store) Tags(ctx context.Context, characterID int64) ([]*tags.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.type, t.venue
		 FROM tags t
		 JOIN character_tags ct ON ct.tag_id = t.id
		 WHERE ct.character_id = $1
		 ORDER BY t.id`, characterID)
	if err != nil {
		return nil, fmt.Errorf("listing tags for character %d: %w", characterID, err)
	}
	defer rows.Close()

	var list []*tags.Tag
	for rows.Next() {
		var t tags.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Venue); err != nil {
			return nil, fmt.Errorf("scanning linked tag: %w", err)
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// LinkTag associates a tag with a character. Linking twice is a no-op.
func (s *Store) LinkTag(ctx context.Context, characterID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO character_tags (character_id, tag_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`, characterID, tagID)
	if err != nil {
		return fmt.Errorf("linking tag %d to character %d: %w", tagID, characterID, err)
	}
	return nil
}

// UnlinkTag removes a tag association.
func (s *Store) UnlinkTag(ctx context.Context, characterID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM character_tags WHERE character_id = $1 AND tag_id = $2",
		characterID, tagID)
	if err != nil {
		return fmt.Errorf("unlinking tag %d from character %d: %w", tagID, characterID, err)
	}
	return nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
