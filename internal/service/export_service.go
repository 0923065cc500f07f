package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/lock"
	"github.com/prn-tf/harper-profiles/internal/metrics"
	"github.com/prn-tf/harper-profiles/internal/repository"
	"github.com/prn-tf/harper-profiles/internal/storage"
)

// exportLockTTL bounds how long a crashed exporter can block the next run.
const exportLockTTL = 10 * time.Minute

// ExportService writes full user collection snapshots to a sink. A
// distributed lock keeps concurrent instances from producing duplicate
// snapshots.
type ExportService struct {
	repo   repository.UserRepository
	sink   storage.SnapshotSink
	locker lock.Locker
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewExportService creates a new ExportService. prefix is the object key
// prefix snapshots are stored under.
func NewExportService(repo repository.UserRepository, sink storage.SnapshotSink, locker lock.Locker, prefix string, logger zerolog.Logger) *ExportService {
	return &ExportService{
		repo:   repo,
		sink:   sink,
		locker: locker,
		prefix: prefix,
		logger: logger.With().Str("service", "export").Logger(),
		now:    time.Now,
	}
}

// snapshot is the serialized export document.
type snapshot struct {
	ExportedAt string         `json:"exportedAt"`
	Count      int            `json:"count"`
	Users      []*domain.User `json:"users"`
}

// Run exports every user to the sink as one JSON snapshot object and returns
// the object key. Returns ErrExportInProgress when another instance holds
// the export lock.
func (s *ExportService) Run(ctx context.Context) (string, error) {
	acquired, err := s.locker.Acquire(ctx, lock.Keys.UserExport(), exportLockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire export lock")
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return "", ErrExportInProgress
	}
	defer func() {
		if _, err := s.locker.Release(context.Background(), lock.Keys.UserExport()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release export lock")
		}
	}()

	started := s.now().UTC()
	snap := snapshot{
		ExportedAt: started.Format(time.RFC3339),
	}
	err = s.repo.ListAll(ctx, func(u *domain.User) error {
		snap.Users = append(snap.Users, u)
		return nil
	})
	if err != nil {
		metrics.ExportRuns.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("failed to read users for export")
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	snap.Count = len(snap.Users)

	body, err := json.Marshal(snap)
	if err != nil {
		metrics.ExportRuns.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	key := fmt.Sprintf("%s/%s-%s.json", s.prefix, started.Format("20060102T150405Z"), uuid.NewString())
	if err := s.sink.Put(ctx, key, bytes.NewReader(body)); err != nil {
		metrics.ExportRuns.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("failed to write snapshot")
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	metrics.ExportRuns.WithLabelValues("success").Inc()
	s.logger.Info().
		Str("key", key).
		Int("users", snap.Count).
		Msg("user snapshot exported")
	return key, nil
}
