package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/courtside/achievements"
	"github.com/Dosada05/courtside/models"
	"github.com/Dosada05/courtside/repositories"
	"github.com/Dosada05/courtside/rewards"
)

const defaultConflictRetries = 3

type HistoryReader interface {
	GetByPlayer(ctx context.Context, playerID string, venue models.VenueContext) (models.PlayerHistory, error)
}

// MatchWriter commits a record with its history deltas atomically.
type MatchWriter interface {
	ApplyMatch(ctx context.Context, record *models.MatchRecord, deltas []models.HistoryDelta) error
	GetByToken(ctx context.Context, matchToken string) (*models.MatchRecord, error)
}

type CatalogProvider interface {
	Catalog(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error)
}

// Archiver publishes a completed result. It is optional.
type Archiver interface {
	Archive(ctx context.Context, result models.MatchResult) (string, error)
	URLFor(matchToken string) string
}

type MatchProcessor struct {
	histories HistoryReader
	store     MatchWriter
	catalog   CatalogProvider
	engine    *achievements.Engine
	archiver  Archiver
	logger    *slog.Logger
	retries   int
	now       func() time.Time
}

func NewMatchProcessor(
	histories HistoryReader,
	store MatchWriter,
	catalog CatalogProvider,
	engine *achievements.Engine,
	archiver Archiver,
	logger *slog.Logger,
) *MatchProcessor {
	if engine == nil {
		engine = achievements.Default()
	}
	return &MatchProcessor{
		histories: histories,
		store:     store,
		catalog:   catalog,
		engine:    engine,
		archiver:  archiver,
		logger:    logger,
		retries:   defaultConflictRetries,
		now:       time.Now,
	}
}

// Process evaluates achievements and rewards for every participant and commits
// the histories together with the match record. Processing a token that is
// already recorded returns the stored result without touching histories.
func (s *MatchProcessor) Process(ctx context.Context, facts models.MatchFacts) (models.MatchResult, error) {
	if facts.MatchToken == "" || !facts.Teams.Complete() {
		return models.MatchResult{}, ErrInvalidMatchFacts
	}

	if stored, ok, err := s.loadRecorded(ctx, facts.MatchToken); err != nil {
		return models.MatchResult{}, err
	} else if ok {
		s.logger.Info("match already recorded, returning stored result", slog.String("match_token", facts.MatchToken))
		return stored, nil
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		result, err := s.processOnce(ctx, facts)
		switch {
		case err == nil:
			return s.archive(ctx, result), nil
		case errors.Is(err, repositories.ErrHistoryConflict):
			s.logger.Warn("history changed during processing, recomputing",
				slog.String("match_token", facts.MatchToken),
				slog.Int("attempt", attempt))
			continue
		case errors.Is(err, repositories.ErrMatchAlreadyRecorded):
			stored, ok, loadErr := s.loadRecorded(ctx, facts.MatchToken)
			if loadErr != nil {
				return models.MatchResult{}, loadErr
			}
			if ok {
				return stored, nil
			}
			return models.MatchResult{}, fmt.Errorf("%w: record for %s vanished", ErrPersistenceFailure, facts.MatchToken)
		default:
			return models.MatchResult{}, err
		}
	}
	return models.MatchResult{}, fmt.Errorf("%w: match %s after %d attempts", ErrHistoryContention, facts.MatchToken, s.retries)
}

func (s *MatchProcessor) processOnce(ctx context.Context, facts models.MatchFacts) (models.MatchResult, error) {
	players := facts.Players()
	histories := make([]models.PlayerHistory, len(players))

	g, gctx := errgroup.WithContext(ctx)
	for i, playerID := range players {
		i, playerID := i, playerID
		g.Go(func() error {
			h, err := s.histories.GetByPlayer(gctx, playerID, facts.VenueContext)
			if err != nil {
				return err
			}
			histories[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.MatchResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	deltas := make([]models.HistoryDelta, 0, len(players))
	earned := make([]models.AchievementEarned, 0)
	for _, h := range histories {
		d, ok := s.engine.Propose(h, facts)
		if !ok {
			continue
		}
		deltas = append(deltas, d)
		earned = append(earned, d.Earned...)
	}

	catalog, err := s.catalog.Catalog(ctx, facts.VenueContext)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("%w: reward catalog: %v", ErrPersistenceFailure, err)
	}

	result := models.MatchResult{
		MatchToken:  facts.MatchToken,
		Earned:      earned,
		Rewards:     rewards.Resolve(earned, facts.VenueContext, catalog),
		CompletedAt: s.now(),
	}
	record := &models.MatchRecord{
		MatchToken:   facts.MatchToken,
		VenueContext: facts.VenueContext,
		TeamA:        facts.Teams.TeamA,
		TeamB:        facts.Teams.TeamB,
		TeamAScore:   facts.Score.TeamA,
		TeamBScore:   facts.Score.TeamB,
		Result:       &result,
	}

	if err := s.store.ApplyMatch(ctx, record, deltas); err != nil {
		if errors.Is(err, repositories.ErrMatchAlreadyRecorded) || errors.Is(err, repositories.ErrHistoryConflict) {
			return models.MatchResult{}, err
		}
		return models.MatchResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	s.logger.Info("match recorded",
		slog.String("match_token", facts.MatchToken),
		slog.Int("achievements", len(result.Earned)),
		slog.Int("rewards", len(result.Rewards)))
	return result, nil
}

func (s *MatchProcessor) loadRecorded(ctx context.Context, matchToken string) (models.MatchResult, bool, error) {
	rec, err := s.store.GetByToken(ctx, matchToken)
	if errors.Is(err, repositories.ErrMatchRecordNotFound) {
		return models.MatchResult{}, false, nil
	}
	if err != nil {
		return models.MatchResult{}, false, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if rec.Result == nil {
		return models.MatchResult{MatchToken: matchToken, CompletedAt: rec.RecordedAt}, true, nil
	}
	result := *rec.Result
	if s.archiver != nil && result.ArchiveURL == "" {
		result.ArchiveURL = s.archiver.URLFor(matchToken)
	}
	return result, true, nil
}

// archive is best effort: the durable record already exists.
func (s *MatchProcessor) archive(ctx context.Context, result models.MatchResult) models.MatchResult {
	if s.archiver == nil {
		return result
	}
	location, err := s.archiver.Archive(ctx, result)
	if err != nil {
		s.logger.Warn("failed to archive match result", slog.String("match_token", result.MatchToken), slog.Any("error", err))
		return result
	}
	result.ArchiveURL = location
	return result
}
