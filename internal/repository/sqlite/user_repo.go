package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, total_avg_ratings, number_of_rents, recently_active,
	created_at, updated_at, potential_score, pref_theme, pref_notifications, version`

// Get retrieves a user by id.
func (r *userRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create inserts a new user document.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	user.Version = 1
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		nullFloat(user.TotalAverageWeightRatings),
		nullInt(user.NumberOfRents),
		nullInt(user.RecentlyActive),
		user.CreatedAt,
		user.UpdatedAt,
		user.PotentialScore,
		user.Preferences.Theme,
		boolToInt(user.Preferences.Notifications),
		user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update writes the document conditionally on the expected version.
func (r *userRepository) Update(ctx context.Context, user *domain.User, expectedVersion int64) error {
	query := `
		UPDATE users
		SET name = ?, email = ?, total_avg_ratings = ?, number_of_rents = ?,
		    recently_active = ?, updated_at = ?, potential_score = ?,
		    pref_theme = ?, pref_notifications = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		nullFloat(user.TotalAverageWeightRatings),
		nullInt(user.NumberOfRents),
		nullInt(user.RecentlyActive),
		user.UpdatedAt,
		user.PotentialScore,
		user.Preferences.Theme,
		boolToInt(user.Preferences.Notifications),
		user.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Distinguish a lost race from a vanished document.
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, user.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrVersionMismatch
	}

	user.Version = expectedVersion + 1
	return nil
}

// Delete removes a user by id.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ListByScore returns one leaderboard page ordered by potential score
// descending, ties broken by id ascending.
func (r *userRepository) ListByScore(ctx context.Context, opts repository.ScorePageOptions) ([]*domain.User, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if opts.After != nil {
		query := `
			SELECT ` + userColumns + ` FROM users
			WHERE potential_score < ? OR (potential_score = ? AND id > ?)
			ORDER BY potential_score DESC, id ASC
			LIMIT ?
		`
		rows, err = r.db.QueryContext(ctx, query,
			opts.After.Score, opts.After.Score, opts.After.ID, opts.Limit)
	} else {
		query := `
			SELECT ` + userColumns + ` FROM users
			ORDER BY potential_score DESC, id ASC
			LIMIT ?
		`
		rows, err = r.db.QueryContext(ctx, query, opts.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list users by score: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// ListAll streams every user in id order.
func (r *userRepository) ListAll(ctx context.Context, fn func(*domain.User) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return fmt.Errorf("failed to scan user: %w", err)
		}
		if err := fn(user); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of user documents.
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans one user row into a domain.User.
func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var (
		avgRatings     sql.NullFloat64
		rents          sql.NullInt64
		recentlyActive sql.NullInt64
		notifications  int
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&avgRatings,
		&rents,
		&recentlyActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.PotentialScore,
		&user.Preferences.Theme,
		&notifications,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}

	if avgRatings.Valid {
		user.TotalAverageWeightRatings = &avgRatings.Float64
	}
	if rents.Valid {
		user.NumberOfRents = &rents.Int64
	}
	if recentlyActive.Valid {
		user.RecentlyActive = &recentlyActive.Int64
	}
	user.Preferences.Notifications = notifications != 0

	return user, nil
}

// nullFloat converts an optional float to its SQL representation.
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// nullInt converts an optional int to its SQL representation.
func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isNoRows checks for the no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation checks for a unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
