package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dosada05/courtside/models"
	"github.com/Dosada05/courtside/repositories"
)

type PlayerHistoryView struct {
	History      models.PlayerHistory       `json:"history"`
	Achievements []models.AchievementEarned `json:"achievements"`
}

type HistoryService interface {
	GetPlayerHistory(ctx context.Context, playerID string, venue models.VenueContext) (*PlayerHistoryView, error)
	ListRewards(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error)
}

type historyService struct {
	historyRepo repositories.HistoryRepository
	catalog     CatalogProvider
}

func NewHistoryService(historyRepo repositories.HistoryRepository, catalog CatalogProvider) HistoryService {
	return &historyService{historyRepo: historyRepo, catalog: catalog}
}

func (s *historyService) GetPlayerHistory(ctx context.Context, playerID string, venue models.VenueContext) (*PlayerHistoryView, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrValidationFailed)
	}
	h, err := s.historyRepo.GetByPlayer(ctx, playerID, venue)
	if err != nil {
		return nil, err
	}
	list, err := s.historyRepo.ListAchievements(ctx, playerID, venue)
	if err != nil {
		return nil, err
	}
	if h.Version == 0 && len(list) == 0 {
		return nil, ErrNotFound
	}
	return &PlayerHistoryView{History: h, Achievements: list}, nil
}

func (s *historyService) ListRewards(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error) {
	catalog, err := s.catalog.Catalog(ctx, venue)
	if err != nil {
		return nil, err
	}
	active := make([]models.RewardDefinition, 0, len(catalog))
	for _, d := range catalog {
		if d.Active {
			active = append(active, d)
		}
	}
	return active, nil
}
