package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/repository"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestUserService(repo repository.UserRepository) *UserService {
	svc := NewUserService(repo, zerolog.Nop())
	svc.now = func() time.Time { return testTime }
	return svc
}

func TestFetch_LazyCreation(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	res, err := svc.Fetch(context.Background(), "user-1", "Alice", "alice@example.com")
	require.NoError(t, err)
	require.True(t, res.Created)

	u := res.User
	require.Equal(t, "user-1", u.ID)
	require.Equal(t, "Alice", u.Name)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, domain.DefaultTheme, u.Preferences.Theme)
	require.True(t, u.Preferences.Notifications)
	require.Nil(t, u.TotalAverageWeightRatings)
	require.Nil(t, u.NumberOfRents)
	require.Nil(t, u.RecentlyActive)
	require.Equal(t, u.CreatedAt, u.UpdatedAt)
	require.Zero(t, u.PotentialScore)
}

func TestFetch_DefaultNameWhenTokenHasNone(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	res, err := svc.Fetch(context.Background(), "user-1", "", "")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultName, res.User.Name)
	require.Empty(t, res.User.Email)
}

func TestFetch_ExistingUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	first, err := svc.Fetch(context.Background(), "user-1", "Alice", "alice@example.com")
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := svc.Fetch(context.Background(), "user-1", "Other", "other@example.com")
	require.NoError(t, err)
	require.False(t, second.Created)
	// The stored record wins; the token identity does not overwrite it.
	require.Equal(t, "Alice", second.User.Name)
	require.Equal(t, "alice@example.com", second.User.Email)
}

func TestRegister(t *testing.T) {
	t.Run("email required", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		_, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice"})
		require.ErrorIs(t, err, domain.ErrEmailRequired)
	})

	t.Run("creates new user", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		u, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice", Email: "alice@example.com"})
		require.NoError(t, err)
		require.Equal(t, "Alice", u.Name)
		require.Equal(t, "alice@example.com", u.Email)
		require.Equal(t, domain.DefaultPreferences(), u.Preferences)
	})

	t.Run("name defaults when empty", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		u, err := svc.Register(context.Background(), "user-1", RegisterInput{Email: "alice@example.com"})
		require.NoError(t, err)
		require.Equal(t, domain.DefaultName, u.Name)
	})

	t.Run("merge preserves createdAt and non-empty fields win", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		first, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice", Email: "alice@example.com"})
		require.NoError(t, err)

		svc.now = func() time.Time { return testTime.Add(time.Hour) }
		merged, err := svc.Register(context.Background(), "user-1", RegisterInput{Email: "alice@new.example.com"})
		require.NoError(t, err)

		require.Equal(t, first.CreatedAt, merged.CreatedAt)
		require.Equal(t, "Alice", merged.Name) // empty incoming name does not clobber
		require.Equal(t, "alice@new.example.com", merged.Email)
		require.Greater(t, merged.UpdatedAt, merged.CreatedAt)
	})
}

func TestUpdateProfile(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	boolPtr := func(b bool) *bool { return &b }

	t.Run("empty patch rejected", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		_, err := svc.UpdateProfile(context.Background(), "user-1", domain.ProfilePatch{})
		require.ErrorIs(t, err, domain.ErrEmptyPatch)
	})

	t.Run("missing user", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		_, err := svc.UpdateProfile(context.Background(), "ghost", domain.ProfilePatch{Name: strPtr("X")})
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("applies allow-listed fields", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)
		_, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice", Email: "alice@example.com"})
		require.NoError(t, err)

		u, err := svc.UpdateProfile(context.Background(), "user-1", domain.ProfilePatch{
			Name:          strPtr("Alice B"),
			Theme:         strPtr("dark"),
			Notifications: boolPtr(false),
		})
		require.NoError(t, err)
		require.Equal(t, "Alice B", u.Name)
		require.Equal(t, "dark", u.Preferences.Theme)
		require.False(t, u.Preferences.Notifications)
		require.Equal(t, "alice@example.com", u.Email)
	})
}

func TestRecordRating(t *testing.T) {
	t.Run("range validation", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		for _, bad := range []float64{-0.1, 5.1, 100} {
			_, err := svc.RecordRating(context.Background(), "user-1", bad)
			require.ErrorIs(t, err, domain.ErrInvalidRating, "rating %v", bad)
		}
	})

	t.Run("first rating creates the record", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		u, err := svc.RecordRating(context.Background(), "user-1", 4)
		require.NoError(t, err)
		require.Equal(t, 4.0, u.Rating())
		require.Equal(t, int64(1), u.Rents())
		require.NotNil(t, u.RecentlyActive)
		require.Equal(t, domain.EpochMillis(testTime), *u.RecentlyActive)
	})

	t.Run("running average rounds to one decimal", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())

		_, err := svc.RecordRating(context.Background(), "user-1", 4)
		require.NoError(t, err)
		u, err := svc.RecordRating(context.Background(), "user-1", 5)
		require.NoError(t, err)
		require.Equal(t, 4.5, u.Rating())
		require.Equal(t, int64(2), u.Rents())

		// (4.5*2 + 3) / 3 = 4.0
		u, err = svc.RecordRating(context.Background(), "user-1", 3)
		require.NoError(t, err)
		require.Equal(t, 4.0, u.Rating())
		require.Equal(t, int64(3), u.Rents())
	})

	t.Run("score is persisted with the rating", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.RecordRating(context.Background(), "user-1", 5)
		require.NoError(t, err)

		stored, err := repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
		// rating 5/5 -> 0.5, rents 1/100 -> 0.003, fresh activity -> 0.2
		require.InDelta(t, 0.703, stored.PotentialScore, 1e-9)
	})
}

func TestTouchActivity(t *testing.T) {
	t.Run("creates with only activity set", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		u, err := svc.TouchActivity(context.Background(), "user-1")
		require.NoError(t, err)
		require.Nil(t, u.TotalAverageWeightRatings)
		require.Nil(t, u.NumberOfRents)
		require.NotNil(t, u.RecentlyActive)
		// Fresh activity alone contributes exactly the recency weight.
		require.InDelta(t, 0.2, u.PotentialScore, 1e-9)
	})

	t.Run("refreshes existing record", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.TouchActivity(context.Background(), "user-1")
		require.NoError(t, err)

		later := testTime.Add(48 * time.Hour)
		svc.now = func() time.Time { return later }
		u, err := svc.TouchActivity(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, domain.EpochMillis(later), *u.RecentlyActive)
		require.InDelta(t, 0.2, u.PotentialScore, 1e-9)
	})
}

func TestRecalculateScore(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		svc := newTestUserService(newMockUserRepo())
		_, err := svc.RecalculateScore(context.Background(), "ghost")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("idempotent without intervening mutations", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.RecordRating(context.Background(), "user-1", 4)
		require.NoError(t, err)

		first, err := svc.RecalculateScore(context.Background(), "user-1")
		require.NoError(t, err)
		second, err := svc.RecalculateScore(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, first.PotentialScore, second.PotentialScore)
	})

	t.Run("decays with the clock", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.TouchActivity(context.Background(), "user-1")
		require.NoError(t, err)

		svc.now = func() time.Time { return testTime.Add(15 * 24 * time.Hour) }
		u, err := svc.RecalculateScore(context.Background(), "user-1")
		require.NoError(t, err)
		require.InDelta(t, 0.1, u.PotentialScore, 1e-9)
	})
}

func TestMutate_ConflictRetry(t *testing.T) {
	t.Run("transient conflict succeeds on retry", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice", Email: "alice@example.com"})
		require.NoError(t, err)

		// A concurrent writer bumps the stored version exactly once.
		conflicts := 0
		repo.beforeUpdate = func(r *mockUserRepo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if conflicts == 0 {
				r.users["user-1"].Version++
				conflicts++
			}
		}

		u, err := svc.RecordRating(context.Background(), "user-1", 5)
		require.NoError(t, err)
		require.Equal(t, int64(1), u.Rents())
	})

	t.Run("persistent conflict surfaces ErrUpdateConflict", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice", Email: "alice@example.com"})
		require.NoError(t, err)

		repo.beforeUpdate = func(r *mockUserRepo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.users["user-1"].Version++
		}

		_, err = svc.RecordRating(context.Background(), "user-1", 5)
		require.ErrorIs(t, err, domain.ErrUpdateConflict)
	})

	t.Run("no rating event is lost under interleaving", func(t *testing.T) {
		// Two logical writers interleave: the mock applies a competing
		// rating between our read and write on the first attempt. The
		// retry re-reads and folds on top, so both events land.
		repo := newMockUserRepo()
		svc := newTestUserService(repo)

		_, err := svc.RecordRating(context.Background(), "user-1", 4)
		require.NoError(t, err)

		applied := false
		repo.beforeUpdate = func(r *mockUserRepo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if applied {
				return
			}
			applied = true
			u := r.users["user-1"]
			newAvg := (u.Rating()*float64(u.Rents()) + 2) / float64(u.Rents()+1)
			count := u.Rents() + 1
			u.TotalAverageWeightRatings = &newAvg
			u.NumberOfRents = &count
			u.Version++
		}

		u, err := svc.RecordRating(context.Background(), "user-1", 5)
		require.NoError(t, err)
		require.Equal(t, int64(3), u.Rents())
		// (3.0*2 + 5) / 3 = 3.7 after rounding
		require.Equal(t, 3.7, u.Rating())
	})
}

func TestDelete(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	_, err := svc.Register(context.Background(), "user-1", RegisterInput{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user-1"))
	_, err = repo.Get(context.Background(), "user-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	// Deleting an absent user is a no-op.
	require.NoError(t, svc.Delete(context.Background(), "user-1"))
}

func TestRescoreAll(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.TouchActivity(context.Background(), id)
		require.NoError(t, err)
	}

	svc.now = func() time.Time { return testTime.Add(30 * 24 * time.Hour) }
	n, err := svc.RescoreAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, id := range []string{"a", "b", "c"} {
		u, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		require.Zero(t, u.PotentialScore)
	}
}
