// Package repository defines data access interfaces for Harper Profiles.
// These interfaces abstract the user document store, allowing different
// implementations (SQLite, PostgreSQL, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/harper-profiles/internal/domain"
)

// UserRepository defines the interface for user document access.
//
// The store behaves like a document collection keyed by user id: point
// get/put/delete, a conditional update keyed on the record version for
// optimistic concurrency, and a score-ordered keyset page query for the
// leaderboard.
type UserRepository interface {
	// Get retrieves a user by id.
	// Returns ErrNotFound if the document does not exist.
	Get(ctx context.Context, id string) (*domain.User, error)

	// Create inserts a new user document.
	// Returns ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, user *domain.User) error

	// Update writes the full document conditionally: the write succeeds
	// only if the stored version still equals expectedVersion, and bumps
	// the version on success. Returns ErrVersionMismatch when another
	// writer got there first, ErrNotFound when the document is gone.
	Update(ctx context.Context, user *domain.User, expectedVersion int64) error

	// Delete removes a user by id. Deleting an absent id is not an error;
	// the operation is a passthrough with no cascading logic.
	Delete(ctx context.Context, id string) error

	// ListByScore returns up to opts.Limit users ordered by potential
	// score descending (ties broken by id ascending). When opts.After is
	// set, the page resumes strictly after that user's position.
	ListByScore(ctx context.Context, opts ScorePageOptions) ([]*domain.User, error)

	// ListAll streams every user in id order, invoking fn per document.
	// Used by maintenance operations (snapshot export, bulk rescore).
	ListAll(ctx context.Context, fn func(*domain.User) error) error

	// Count returns the number of user documents.
	Count(ctx context.Context) (int64, error)
}

// ScorePageOptions describes one leaderboard page request.
type ScorePageOptions struct {
	// Limit is the maximum number of users to return.
	Limit int

	// After is the cursor position to resume from: the score and id of
	// the last document of the previous page. Nil means start from the top.
	After *ScoreCursor
}

// ScoreCursor is the keyset position of a document in the score ordering.
type ScoreCursor struct {
	Score float64
	ID    string
}
