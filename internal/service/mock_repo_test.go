package service

import (
	"context"
	"sort"
	"sync"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/repository"
)

// mockUserRepo is an in-memory UserRepository with the same conditional
// write semantics as the real backends. beforeUpdate, when set, runs just
// before each conditional write and can simulate a concurrent writer.
type mockUserRepo struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	beforeUpdate func(r *mockUserRepo)

	getErr    error
	createErr error
	updateErr error
	listErr   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.TotalAverageWeightRatings != nil {
		v := *u.TotalAverageWeightRatings
		c.TotalAverageWeightRatings = &v
	}
	if u.NumberOfRents != nil {
		v := *u.NumberOfRents
		c.NumberOfRents = &v
	}
	if u.RecentlyActive != nil {
		v := *u.RecentlyActive
		c.RecentlyActive = &v
	}
	return &c
}

func (r *mockUserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.users[user.ID]; ok {
		return repository.ErrAlreadyExists
	}
	user.Version = 1
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *mockUserRepo) Update(ctx context.Context, user *domain.User, expectedVersion int64) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	user.Version = expectedVersion + 1
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *mockUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *mockUserRepo) ListByScore(ctx context.Context, opts repository.ScorePageOptions) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	all := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].PotentialScore != all[j].PotentialScore {
			return all[i].PotentialScore > all[j].PotentialScore
		}
		return all[i].ID < all[j].ID
	})
	if opts.After != nil {
		for i, u := range all {
			if u.PotentialScore == opts.After.Score && u.ID == opts.After.ID {
				all = all[i+1:]
				break
			}
			if u.PotentialScore < opts.After.Score {
				all = all[i:]
				break
			}
		}
	}
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (r *mockUserRepo) ListAll(ctx context.Context, fn func(*domain.User) error) error {
	r.mu.Lock()
	if r.listErr != nil {
		r.mu.Unlock()
		return r.listErr
	}
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshot := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, cloneUser(r.users[id]))
	}
	r.mu.Unlock()

	for _, u := range snapshot {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockUserRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}
