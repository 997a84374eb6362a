package persistent

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"heritage/internal/member/models"
	"heritage/pkg/platform/sentinel"
	txcontext "heritage/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const memberColumns = `slug, id, name, gender, birth_date, death_date, parent_ids, spouse_id, generation,
	bio, email, phone, location, profession, image_url,
	education, achievements, skills, languages, hobbies, personality,
	created_at, updated_at`

// PostgresStore persists members in PostgreSQL. Operations join a transaction
// carried in the context (pkg/platform/tx) when one is present.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed member store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the members table when it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate members: %w", err)
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts m. A duplicate slug is reported as ErrConflict so callers can
// re-read the winning row.
func (s *PostgresStore) Create(ctx context.Context, m *models.Member) error {
	args, err := memberArgs(m)
	if err != nil {
		return err
	}
	query := `INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23)`
	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("member %q: %w", m.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Member, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE slug = $1`, slug)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %q: %w", slug, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find member by slug: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email <> '' AND lower(email) = lower($1) ORDER BY id LIMIT 1`, email)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member with email: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find member by email: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Member, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id, slug`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate on
// it and writes the result back in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, slug string, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.execute(ctx, tx, slug, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin member transaction: %w", err)
	}
	m, err := s.execute(ctx, tx, slug, validate, mutate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit member transaction: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) execute(ctx context.Context, tx *sql.Tx, slug string, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE slug = $1 FOR UPDATE`, slug)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %q: %w", slug, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock member: %w", err)
	}

	if validate != nil {
		if err := validate(m); err != nil {
			return nil, err
		}
	}
	mutate(m)
	m.Slug = slug

	args, err := memberArgs(m)
	if err != nil {
		return nil, err
	}
	query := `UPDATE members SET
			id = $2, name = $3, gender = $4, birth_date = $5, death_date = $6, parent_ids = $7,
			spouse_id = $8, generation = $9, bio = $10, email = $11, phone = $12, location = $13,
			profession = $14, image_url = $15, education = $16, achievements = $17, skills = $18,
			languages = $19, hobbies = $20, personality = $21, created_at = $22, updated_at = $23
		WHERE slug = $1`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return m, nil
}

// memberArgs flattens m in memberColumns order.
func memberArgs(m *models.Member) ([]any, error) {
	education, err := json.Marshal(entries(m.Education))
	if err != nil {
		return nil, fmt.Errorf("encode education: %w", err)
	}
	achievements, err := json.Marshal(entries(m.Achievements))
	if err != nil {
		return nil, fmt.Errorf("encode achievements: %w", err)
	}
	var spouse sql.NullInt64
	if m.SpouseID != nil {
		spouse = sql.NullInt64{Int64: *m.SpouseID, Valid: true}
	}
	return []any{
		m.Slug, m.ID, m.Name, m.Gender, nullTime(m.BirthDate), nullTime(m.DeathDate),
		pq.Array(ints(m.ParentIDs)), spouse, m.Generation,
		m.Bio, m.Email, m.Phone, m.Location, m.Profession, m.ImageURL,
		education, achievements,
		pq.Array(strs(m.Skills)), pq.Array(strs(m.Languages)), pq.Array(strs(m.Hobbies)), pq.Array(strs(m.Personality)),
		m.CreatedAt, m.UpdatedAt,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*models.Member, error) {
	var (
		m                       models.Member
		birth, death            sql.NullTime
		spouse                  sql.NullInt64
		education, achievements []byte
	)
	err := row.Scan(
		&m.Slug, &m.ID, &m.Name, &m.Gender, &birth, &death,
		pq.Array(&m.ParentIDs), &spouse, &m.Generation,
		&m.Bio, &m.Email, &m.Phone, &m.Location, &m.Profession, &m.ImageURL,
		&education, &achievements,
		pq.Array(&m.Skills), pq.Array(&m.Languages), pq.Array(&m.Hobbies), pq.Array(&m.Personality),
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if birth.Valid {
		t := birth.Time.UTC()
		m.BirthDate = &t
	}
	if death.Valid {
		t := death.Time.UTC()
		m.DeathDate = &t
	}
	if spouse.Valid {
		v := spouse.Int64
		m.SpouseID = &v
	}
	if err := json.Unmarshal(education, &m.Education); err != nil {
		return nil, fmt.Errorf("decode education: %w", err)
	}
	if err := json.Unmarshal(achievements, &m.Achievements); err != nil {
		return nil, fmt.Errorf("decode achievements: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// NOT NULL array and JSONB columns need empty values rather than NULL.

func ints(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func strs(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func entries(v []models.Entry) []models.Entry {
	if v == nil {
		return []models.Entry{}
	}
	return v
}
