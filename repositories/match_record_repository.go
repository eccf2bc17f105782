package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Dosada05/courtside/models"
)

var (
	ErrMatchRecordNotFound  = errors.New("match record not found")
	ErrMatchAlreadyRecorded = errors.New("match already recorded")
)

type MatchRecordRepository interface {
	Create(ctx context.Context, exec SQLExecutor, record *models.MatchRecord) error
	GetByToken(ctx context.Context, matchToken string) (*models.MatchRecord, error)
}

type postgresMatchRecordRepository struct {
	db *sql.DB
}

func NewPostgresMatchRecordRepository(db *sql.DB) MatchRecordRepository {
	return &postgresMatchRecordRepository{db: db}
}

func (r *postgresMatchRecordRepository) Create(ctx context.Context, exec SQLExecutor, record *models.MatchRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to encode match result: %w", err)
	}

	query := `
		INSERT INTO match_records
			(id, match_token, venue_context, team_a, team_b, team_a_score, team_b_score, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING recorded_at`

	err = exec.QueryRowContext(ctx, query,
		record.ID,
		record.MatchToken,
		record.VenueContext,
		pq.Array(record.TeamA),
		pq.Array(record.TeamB),
		record.TeamAScore,
		record.TeamBScore,
		resultJSON,
	).Scan(&record.RecordedAt)

	return r.handleMatchRecordError(err)
}

func (r *postgresMatchRecordRepository) GetByToken(ctx context.Context, matchToken string) (*models.MatchRecord, error) {
	query := `
		SELECT id, match_token, venue_context, team_a, team_b, team_a_score, team_b_score, result, recorded_at
		FROM match_records
		WHERE match_token = $1`

	record := &models.MatchRecord{}
	var resultJSON []byte
	err := r.db.QueryRowContext(ctx, query, matchToken).Scan(
		&record.ID,
		&record.MatchToken,
		&record.VenueContext,
		pq.Array(&record.TeamA),
		pq.Array(&record.TeamB),
		&record.TeamAScore,
		&record.TeamBScore,
		&resultJSON,
		&record.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan match record %s: %w", matchToken, err)
	}
	if len(resultJSON) > 0 && string(resultJSON) != "null" {
		var result models.MatchResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to decode result of match record %s: %w", matchToken, err)
		}
		record.Result = &result
	}
	return record, nil
}

func (r *postgresMatchRecordRepository) handleMatchRecordError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pgUniqueViolation {
		switch pqErr.Constraint {
		case "match_records_match_token_key", "match_records_pkey":
			return ErrMatchAlreadyRecorded
		}
	}
	return fmt.Errorf("failed to insert match record: %w", err)
}
