package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/harper-profiles/internal/domain"
)

func seedScoredUsers(t *testing.T, repo *mockUserRepo, scores map[string]float64) {
	t.Helper()
	for id, score := range scores {
		u := domain.NewUser(id, testTime)
		u.PotentialScore = score
		require.NoError(t, repo.Create(context.Background(), u))
	}
}

func newTestLeaderboard(repo *mockUserRepo) *LeaderboardService {
	svc := NewLeaderboardService(repo, zerolog.Nop())
	svc.now = func() time.Time { return testTime }
	return svc
}

func TestTopUsers_Ordering(t *testing.T) {
	repo := newMockUserRepo()
	seedScoredUsers(t, repo, map[string]float64{
		"low": 0.1, "high": 0.9, "mid": 0.5,
	})
	svc := newTestLeaderboard(repo)

	page, err := svc.TopUsers(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, page.Users, 3)
	require.Equal(t, "high", page.Users[0].ID)
	require.Equal(t, "mid", page.Users[1].ID)
	require.Equal(t, "low", page.Users[2].ID)
	require.Empty(t, page.NextCursor)
}

func TestTopUsers_PaginationWalksEveryUserOnce(t *testing.T) {
	repo := newMockUserRepo()
	seedScoredUsers(t, repo, map[string]float64{
		"a": 0.9,
		"b": 0.5, "c": 0.5, "d": 0.5, // tie broken by id
		"e": 0.2,
	})
	svc := newTestLeaderboard(repo)

	seen := make(map[string]int)
	cursor := ""
	pages := 0
	for {
		page, err := svc.TopUsers(context.Background(), 2, cursor)
		require.NoError(t, err)
		for _, u := range page.Users {
			seen[u.ID]++
		}
		pages++
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, 5)
	for id, n := range seen {
		require.Equal(t, 1, n, "user %s visited %d times", id, n)
	}
	require.Equal(t, 3, pages)
}

func TestTopUsers_LimitDefaultsAndCap(t *testing.T) {
	repo := newMockUserRepo()
	scores := make(map[string]float64)
	for i := 0; i < 15; i++ {
		scores[string(rune('a'+i))] = float64(i) / 100
	}
	seedScoredUsers(t, repo, scores)
	svc := newTestLeaderboard(repo)

	page, err := svc.TopUsers(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, page.Users, DefaultPageLimit)

	page, err = svc.TopUsers(context.Background(), -5, "")
	require.NoError(t, err)
	require.Len(t, page.Users, DefaultPageLimit)

	// Oversized limits are capped rather than rejected.
	page, err = svc.TopUsers(context.Background(), 100000, "")
	require.NoError(t, err)
	require.Len(t, page.Users, 15)
}

func TestTopUsers_InvalidCursor(t *testing.T) {
	repo := newMockUserRepo()
	seedScoredUsers(t, repo, map[string]float64{"a": 0.5})
	svc := newTestLeaderboard(repo)

	_, err := svc.TopUsers(context.Background(), 10, "no-such-user")
	require.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestTopUsers_ShortLastPageHasNoCursor(t *testing.T) {
	repo := newMockUserRepo()
	seedScoredUsers(t, repo, map[string]float64{"a": 0.9, "b": 0.5, "c": 0.1})
	svc := newTestLeaderboard(repo)

	page, err := svc.TopUsers(context.Background(), 2, "")
	require.NoError(t, err)
	require.Equal(t, "b", page.NextCursor)

	page, err = svc.TopUsers(context.Background(), 2, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	require.Empty(t, page.NextCursor)
}
