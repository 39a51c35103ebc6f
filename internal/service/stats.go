package service

import (
	"context"
	"fmt"
	"time"

	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

type statsService struct {
	repo StatsRepository
	now  func() time.Time
}

func NewStatsService(repo StatsRepository) StatsService {
	return &statsService{repo: repo, now: time.Now}
}

func (s *statsService) GetStats(ctx context.Context, req domain.StatsRequest) (*domain.AlertStats, error) {
	minutes := req.Minutes
	if minutes == 0 {
		minutes = 60
	}
	if minutes < 0 || minutes > 1440 {
		return nil, fmt.Errorf("minutes %d: %w", minutes, e.ErrInvalidInput)
	}

	since := s.now().Add(-time.Duration(minutes) * time.Minute)
	byStatus, err := s.repo.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &domain.AlertStats{
		Minutes:  minutes,
		ByStatus: make(map[domain.AlertStatus]int64, 4),
	}
	for _, st := range []domain.AlertStatus{domain.AlertActive, domain.AlertResponded, domain.AlertResolved, domain.AlertCancelled} {
		stats.ByStatus[st] = byStatus[st]
		stats.Total += byStatus[st]
	}
	return stats, nil
}
