package menu

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/domain/models"
)

// Store is the read surface for serving today's menu.
type Store interface {
	DailyTitles(ctx context.Context) ([]string, error)
	ItemsByTitles(ctx context.Context, titles []string) ([]models.MenuItem, error)
}

// Service serves the join of the daily index against the catalog. An empty
// or partially rebuilt index just means fewer items today; history is never
// affected.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService wires a menu service instance.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// TodaysItems returns every catalog item whose title is on today's menu.
// Indexed titles without a catalog record are dropped, not errors; the
// index only proves presence, the catalog holds the content.
func (s *Service) TodaysItems(ctx context.Context) ([]models.MenuItem, error) {
	titles, err := s.store.DailyTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load daily titles: %w", err)
	}
	if len(titles) == 0 {
		return []models.MenuItem{}, nil
	}

	items, err := s.store.ItemsByTitles(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("load today's items: %w", err)
	}

	s.logger.Debug("serving today's items",
		zap.Int("indexed", len(titles)),
		zap.Int("count", len(items)))
	return items, nil
}
