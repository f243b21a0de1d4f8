package directory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxListLimit = 100

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads the platform's doctors and specializations tables.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository creates a repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db querier) *PostgresRepository {
	if db == nil {
		panic("directory: querier required")
	}
	return &PostgresRepository{db: db}
}

const doctorColumns = `d.id::text, d.name, COALESCE(s.name, ''), COALESCE(d.email, ''), COALESCE(d.phone, ''),
	COALESCE(d.experience_years, 0), COALESCE(d.bio, '')`

// FindDoctorByName matches the full name case-insensitively; a "Dr." prefix is ignored.
func (r *PostgresRepository) FindDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, ErrNotFound
	}
	query := `SELECT ` + doctorColumns + `
		FROM doctors d
		LEFT JOIN specializations s ON s.id = d.specialization_id
		WHERE lower(d.name) = lower($1)
		LIMIT 1`

	var d Doctor
	err := r.db.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.Specialization, &d.Email, &d.Phone, &d.ExperienceYears, &d.Bio)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("directory: find doctor: %w", err)
	}
	return &d, nil
}

// DoctorsBySpecialization lists doctors of a specialization ordered by name.
func (r *PostgresRepository) DoctorsBySpecialization(ctx context.Context, specialization string, limit int) ([]Doctor, error) {
	query := `SELECT ` + doctorColumns + `
		FROM doctors d
		JOIN specializations s ON s.id = d.specialization_id
		WHERE lower(s.name) = lower($1)
		ORDER BY d.name
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, strings.TrimSpace(specialization), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("directory: doctors by specialization: %w", err)
	}
	return scanDoctors(rows)
}

// CountDoctorsBySpecialization counts doctors of a specialization.
func (r *PostgresRepository) CountDoctorsBySpecialization(ctx context.Context, specialization string) (int, error) {
	query := `SELECT COUNT(*)
		FROM doctors d
		JOIN specializations s ON s.id = d.specialization_id
		WHERE lower(s.name) = lower($1)`
	var count int
	if err := r.db.QueryRow(ctx, query, strings.TrimSpace(specialization)).Scan(&count); err != nil {
		return 0, fmt.Errorf("directory: count doctors: %w", err)
	}
	return count, nil
}

// SearchDoctors returns doctors whose name contains partial.
func (r *PostgresRepository) SearchDoctors(ctx context.Context, partial string, limit int) ([]Doctor, error) {
	query := `SELECT ` + doctorColumns + `
		FROM doctors d
		LEFT JOIN specializations s ON s.id = d.specialization_id
		WHERE d.name ILIKE '%' || $1 || '%'
		ORDER BY d.name
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, escapeLike(NormalizeName(partial)), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("directory: search doctors: %w", err)
	}
	return scanDoctors(rows)
}

func scanDoctors(rows pgx.Rows) ([]Doctor, error) {
	defer rows.Close()

	doctors := []Doctor{}
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.Email, &d.Phone, &d.ExperienceYears, &d.Bio); err != nil {
			return nil, fmt.Errorf("directory: scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate doctors: %w", err)
	}
	return doctors, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var titlePrefix = regexp.MustCompile(`(?i)^(?:dr\.?|doctor)\s+`)

// NormalizeName trims, collapses whitespace and drops a leading "Dr." title.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return strings.TrimSpace(titlePrefix.ReplaceAllString(name, ""))
}
