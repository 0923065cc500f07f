// Package service provides business logic services for Harper Profiles.
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
	"github.com/prn-tf/harper-profiles/internal/scoring"
)

// Conditional-write retry policy. A mismatch means another writer updated
// the record between our read and write; re-reading and re-applying is safe
// because every mutation is expressed as a function of the fresh record.
const (
	maxUpdateAttempts = 3
	retryBaseDelay    = 10 * time.Millisecond
)

// UserService orchestrates all user profile mutations. Every metric-changing
// operation recomputes the potential score inline, so the persisted score is
// never stale relative to the fields it derives from.
type UserService struct {
	repo   repository.UserRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, logger zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger.With().Str("service", "user").Logger(),
		now:    time.Now,
	}
}

// FetchResult is the outcome of a fetch-or-create.
type FetchResult struct {
	User *domain.User

	// Created reports whether the record was created by this call.
	Created bool
}

// Fetch retrieves a user, creating the record lazily when it does not exist
// yet. New records are seeded from the verified token identity: email when
// the token carries one, name falling back to the default display name.
func (s *UserService) Fetch(ctx context.Context, id, tokenName, tokenEmail string) (*FetchResult, error) {
	user, err := s.repo.Get(ctx, id)
	if err == nil {
		return &FetchResult{User: user}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to fetch user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user = domain.NewUser(id, s.now())
	if tokenName != "" {
		user.Name = tokenName
	}
	user.Email = tokenEmail
	s.rescore(user, "create")

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// Lost a create race; the other writer's record wins.
			user, err = s.repo.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
			}
			return &FetchResult{User: user}, nil
		}
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	metrics.LazyCreations.Inc()
	s.logger.Info().Str("user_id", id).Msg("user created lazily on fetch")
	return &FetchResult{User: user, Created: true}, nil
}

// RegisterInput contains the data for an explicit registration.
type RegisterInput struct {
	Name  string
	Email string
}

// Register creates a user record explicitly, or merges into an existing one.
// Registration is idempotent: when the record already exists, non-empty
// incoming fields win over the stored ones and createdAt is preserved.
func (s *UserService) Register(ctx context.Context, id string, input RegisterInput) (*domain.User, error) {
	if input.Email == "" {
		return nil, domain.ErrEmailRequired
	}

	user := domain.NewUser(id, s.now())
	if input.Name != "" {
		user.Name = input.Name
	}
	user.Email = input.Email
	s.rescore(user, "register")

	err := s.repo.Create(ctx, user)
	if err == nil {
		s.logger.Info().Str("user_id", id).Msg("user registered")
		return user, nil
	}
	if !errors.Is(err, repository.ErrAlreadyExists) {
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to register user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	// Merge into the existing record.
	return s.mutate(ctx, id, "register", func(u *domain.User) error {
		if input.Name != "" {
			u.Name = input.Name
		}
		u.Email = input.Email
		return nil
	})
}

// UpdateProfile applies a typed partial update to an existing user. Only the
// allow-listed fields (name, email, preference settings) are mutable; the
// record must already exist.
func (s *UserService) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (*domain.User, error) {
	if patch.IsEmpty() {
		return nil, domain.ErrEmptyPatch
	}
	return s.mutate(ctx, id, "profile", func(u *domain.User) error {
		patch.Apply(u)
		return nil
	})
}

// RecordRating folds one rating event into the running average. The stored
// average stays rounded to one decimal place and the event also counts as
// activity, refreshing recentlyActive.
func (s *UserService) RecordRating(ctx context.Context, id string, rating float64) (*domain.User, error) {
	if rating < 0 || rating > scoring.MaxRating {
		return nil, domain.ErrInvalidRating
	}

	user, err := s.mutateOrCreate(ctx, id, "rating", func(u *domain.User) error {
		count := u.Rents()
		newAvg := scoring.RoundRating((u.Rating()*float64(count) + rating) / float64(count+1))
		newCount := count + 1
		active := domain.EpochMillis(s.now())

		u.TotalAverageWeightRatings = &newAvg
		u.NumberOfRents = &newCount
		u.RecentlyActive = &active
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RatingsRecorded.Inc()
	return user, nil
}

// TouchActivity marks the user as active now. When the record does not exist
// yet, a fresh one is created carrying only the activity timestamp.
func (s *UserService) TouchActivity(ctx context.Context, id string) (*domain.User, error) {
	return s.mutateOrCreate(ctx, id, "activity", func(u *domain.User) error {
		active := domain.EpochMillis(s.now())
		u.RecentlyActive = &active
		return nil
	})
}

// RecalculateScore recomputes and persists the potential score from the
// stored metrics. It fails with ErrUserNotFound when the record is absent
// and is idempotent absent intervening mutations.
func (s *UserService) RecalculateScore(ctx context.Context, id string) (*domain.User, error) {
	return s.mutate(ctx, id, "recalculate", func(u *domain.User) error {
		return nil
	})
}

// Delete removes the user record. Deleting an absent user is not an error.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to delete user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

// mutate runs the read-modify-conditional-write loop against an existing
// record. apply receives the freshly read record on every attempt; the score
// and updatedAt are refreshed before the write so both land atomically with
// the field changes. Returns ErrUserNotFound when the record does not exist.
func (s *UserService) mutate(ctx context.Context, id, trigger string, apply func(*domain.User) error) (*domain.User, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay << (attempt - 1)):
			}
		}

		user, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.NewDomainError(domain.ErrUserNotFound, "", id)
			}
			s.logger.Error().Err(err).Str("user_id", id).Msg("failed to read user for update")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		expectedVersion := user.Version
		if err := apply(user); err != nil {
			return nil, err
		}
		user.UpdatedAt = domain.EpochMillis(s.now())
		s.rescore(user, trigger)

		err = s.repo.Update(ctx, user, expectedVersion)
		if err == nil {
			return user, nil
		}
		if errors.Is(err, repository.ErrVersionMismatch) {
			metrics.UpdateConflicts.Inc()
			s.logger.Debug().
				Str("user_id", id).
				Int("attempt", attempt+1).
				Msg("conditional write lost to concurrent update, retrying")
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewDomainError(domain.ErrUserNotFound, "", id)
		}
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Warn().Str("user_id", id).Msg("update conflict persisted through retries")
	return nil, domain.NewDomainError(domain.ErrUpdateConflict, "", id)
}

// mutateOrCreate is mutate with first-write-creates semantics: when the
// record is absent, apply runs against a fresh default record which is then
// inserted. A create race falls back to the update path.
func (s *UserService) mutateOrCreate(ctx context.Context, id, trigger string, apply func(*domain.User) error) (*domain.User, error) {
	user, err := s.mutate(ctx, id, trigger, apply)
	if err == nil || !errors.Is(err, domain.ErrUserNotFound) {
		return user, err
	}

	user = domain.NewUser(id, s.now())
	if err := apply(user); err != nil {
		return nil, err
	}
	s.rescore(user, trigger)

	err = s.repo.Create(ctx, user)
	if err == nil {
		s.logger.Info().Str("user_id", id).Str("trigger", trigger).Msg("user created on first event")
		return user, nil
	}
	if errors.Is(err, repository.ErrAlreadyExists) {
		return s.mutate(ctx, id, trigger, apply)
	}
	s.logger.Error().Err(err).Str("user_id", id).Msg("failed to create user")
	return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
}

// RescoreAll recomputes and persists the score for every user. Returns the
// number of records rescored. Individual conflicts are retried by the
// regular mutation path; a record deleted mid-run is skipped.
func (s *UserService) RescoreAll(ctx context.Context) (int, error) {
	var ids []string
	err := s.repo.ListAll(ctx, func(u *domain.User) error {
		ids = append(ids, u.ID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	rescored := 0
	for _, id := range ids {
		if _, err := s.RecalculateScore(ctx, id); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				continue
			}
			return rescored, err
		}
		rescored++
	}

	s.logger.Info().Int("rescored", rescored).Msg("bulk score recalculation complete")
	return rescored, nil
}

// rescore recomputes the potential score from the record's current metrics.
func (s *UserService) rescore(u *domain.User, trigger string) {
	u.PotentialScore = scoring.Compute(scoring.Metrics{
		Rating:       u.TotalAverageWeightRatings,
		Rents:        u.NumberOfRents,
		LastActiveAt: u.RecentlyActive,
	}, s.now())
	metrics.ScoreRecomputations.WithLabelValues(trigger).Inc()
}

// Breakdown returns the per-factor score detail for a user at the current
// time, for inclusion in API payloads.
func (s *UserService) Breakdown(u *domain.User) scoring.Breakdown {
	return scoring.Explain(scoring.Metrics{
		Rating:       u.TotalAverageWeightRatings,
		Rents:        u.NumberOfRents,
		LastActiveAt: u.RecentlyActive,
	}, s.now())
}
