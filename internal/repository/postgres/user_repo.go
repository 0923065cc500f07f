package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/repository"
)

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, total_avg_ratings, number_of_rents, recently_active,
	created_at, updated_at, potential_score, pref_theme, pref_notifications, version`

// Get retrieves a user by id.
func (r *userRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create inserts a new user document.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	user.Version = 1
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		user.ID,
		user.Name,
		user.Email,
		user.TotalAverageWeightRatings,
		user.NumberOfRents,
		user.RecentlyActive,
		user.CreatedAt,
		user.UpdatedAt,
		user.PotentialScore,
		user.Preferences.Theme,
		user.Preferences.Notifications,
		user.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update writes the document conditionally on the expected version.
func (r *userRepository) Update(ctx context.Context, user *domain.User, expectedVersion int64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, total_avg_ratings = $3, number_of_rents = $4,
		    recently_active = $5, updated_at = $6, potential_score = $7,
		    pref_theme = $8, pref_notifications = $9, version = version + 1
		WHERE id = $10 AND version = $11
	`,
		user.Name,
		user.Email,
		user.TotalAverageWeightRatings,
		user.NumberOfRents,
		user.RecentlyActive,
		user.UpdatedAt,
		user.PotentialScore,
		user.Preferences.Theme,
		user.Preferences.Notifications,
		user.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionMismatch
	}

	user.Version = expectedVersion + 1
	return nil
}

// Delete removes a user by id.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ListByScore returns one leaderboard page ordered by potential score
// descending, ties broken by id ascending.
func (r *userRepository) ListByScore(ctx context.Context, opts repository.ScorePageOptions) ([]*domain.User, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if opts.After != nil {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT `+userColumns+` FROM users
			WHERE potential_score < $1 OR (potential_score = $1 AND id > $2)
			ORDER BY potential_score DESC, id ASC
			LIMIT $3
		`, opts.After.Score, opts.After.ID, opts.Limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT `+userColumns+` FROM users
			ORDER BY potential_score DESC, id ASC
			LIMIT $1
		`, opts.Limit)
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
	rows, err := r.db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
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
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// scanUser scans one user row into a domain.User.
func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.TotalAverageWeightRatings,
		&user.NumberOfRents,
		&user.RecentlyActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.PotentialScore,
		&user.Preferences.Theme,
		&user.Preferences.Notifications,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
