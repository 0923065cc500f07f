package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/metrics"
	"github.com/prn-tf/harper-profiles/internal/repository"
)

// Leaderboard page bounds.
const (
	// DefaultPageLimit is used when the caller passes no limit.
	DefaultPageLimit = 10

	// MaxPageLimit caps the page size regardless of what the caller asks for.
	MaxPageLimit = 100
)

// LeaderboardService serves score-ordered user pages.
type LeaderboardService struct {
	repo   repository.UserRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(repo repository.UserRepository, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		repo:   repo,
		logger: logger.With().Str("service", "leaderboard").Logger(),
		now:    time.Now,
	}
}

// Page is one leaderboard page.
type Page struct {
	Users []*domain.User

	// NextCursor is the id to pass as the cursor for the following page.
	// Empty when the collection is exhausted.
	NextCursor string
}

// TopUsers returns one page of users ordered by potential score descending,
// ties broken by id ascending. cursor is the id of the last user of the
// previous page; it must resolve to an existing record. A non-positive limit
// falls back to the default page size; oversized limits are capped.
func (s *LeaderboardService) TopUsers(ctx context.Context, limit int, cursor string) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	opts := repository.ScorePageOptions{Limit: limit}
	if cursor != "" {
		// The cursor resolves through a point read so a deleted or bogus
		// id fails loudly instead of silently restarting from the top.
		after, err := s.repo.Get(ctx, cursor)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.NewDomainError(domain.ErrInvalidCursor, "", cursor)
			}
			s.logger.Error().Err(err).Str("cursor", cursor).Msg("failed to resolve cursor")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		opts.After = &repository.ScoreCursor{
			Score: after.PotentialScore,
			ID:    after.ID,
		}
	}

	users, err := s.repo.ListByScore(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users by score")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	metrics.LeaderboardQueries.Inc()

	page := &Page{Users: users}
	if len(users) == limit {
		page.NextCursor = users[len(users)-1].ID
	}
	return page, nil
}
