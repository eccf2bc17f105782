package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/courtside/models"
)

// MatchStore writes a match record and its history deltas in one transaction.
type MatchStore struct {
	db      *sql.DB
	history HistoryRepository
	records MatchRecordRepository
	logger  *slog.Logger
}

func NewMatchStore(db *sql.DB, history HistoryRepository, records MatchRecordRepository, logger *slog.Logger) *MatchStore {
	return &MatchStore{db: db, history: history, records: records, logger: logger}
}

func (s *MatchStore) GetByToken(ctx context.Context, matchToken string) (*models.MatchRecord, error) {
	return s.records.GetByToken(ctx, matchToken)
}

// ApplyMatch returns ErrMatchAlreadyRecorded or ErrHistoryConflict unwrapped so
// callers can branch on them; nothing is committed in either case.
func (s *MatchStore) ApplyMatch(ctx context.Context, record *models.MatchRecord, deltas []models.HistoryDelta) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("rollback failed",
					slog.String("match_token", record.MatchToken),
					slog.Any("error", rbErr),
					slog.Any("cause", txErr))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit match %s: %w", record.MatchToken, cErr)
		}
	}()

	if err := s.records.Create(ctx, tx, record); err != nil {
		return err
	}
	for _, d := range deltas {
		if err := s.history.ApplyDelta(ctx, tx, record.MatchToken, d); err != nil {
			return err
		}
	}
	return nil
}
