package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/courtside/models"
)

var (
	// ErrHistoryConflict means the row changed after the snapshot the delta was
	// computed from.
	ErrHistoryConflict = errors.New("player history changed concurrently")
)

type HistoryRepository interface {
	GetByPlayer(ctx context.Context, playerID string, venue models.VenueContext) (models.PlayerHistory, error)
	ListAchievements(ctx context.Context, playerID string, venue models.VenueContext) ([]models.AchievementEarned, error)
	ApplyDelta(ctx context.Context, exec SQLExecutor, matchToken string, delta models.HistoryDelta) error
}

type postgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) HistoryRepository {
	return &postgresHistoryRepository{db: db}
}

// GetByPlayer returns a zero-valued history at version 0 for a player who has
// never finished a match in the venue context.
func (r *postgresHistoryRepository) GetByPlayer(ctx context.Context, playerID string, venue models.VenueContext) (models.PlayerHistory, error) {
	query := `
		SELECT wins, losses, win_streak, points_won, matches_played, version, updated_at
		FROM player_histories
		WHERE player_id = $1 AND venue_context = $2`

	h := models.NewPlayerHistory(playerID, venue)
	err := r.db.QueryRowContext(ctx, query, playerID, venue).Scan(
		&h.Wins,
		&h.Losses,
		&h.WinStreak,
		&h.PointsWon,
		&h.MatchesPlayed,
		&h.Version,
		&h.UpdatedAt,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.PlayerHistory{}, fmt.Errorf("failed to load history for player %s: %w", playerID, err)
	}

	countQuery := `
		SELECT achievement_key, repeatable, COUNT(*)
		FROM player_achievements
		WHERE player_id = $1 AND venue_context = $2
		GROUP BY achievement_key, repeatable`

	rows, err := r.db.QueryContext(ctx, countQuery, playerID, venue)
	if err != nil {
		return models.PlayerHistory{}, fmt.Errorf("failed to load achievements for player %s: %w", playerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key        string
			repeatable bool
			count      int
		)
		if err := rows.Scan(&key, &repeatable, &count); err != nil {
			return models.PlayerHistory{}, fmt.Errorf("failed to scan achievement count: %w", err)
		}
		if repeatable {
			h.RepeatableCounts[key] = count
		} else {
			h.Earned[key] = true
		}
	}
	if err := rows.Err(); err != nil {
		return models.PlayerHistory{}, fmt.Errorf("error iterating achievement rows: %w", err)
	}
	return h, nil
}

func (r *postgresHistoryRepository) ListAchievements(ctx context.Context, playerID string, venue models.VenueContext) ([]models.AchievementEarned, error) {
	query := `
		SELECT achievement_key, repeatable, occurrence, earned_at
		FROM player_achievements
		WHERE player_id = $1 AND venue_context = $2
		ORDER BY earned_at ASC, achievement_key ASC, occurrence ASC`

	rows, err := r.db.QueryContext(ctx, query, playerID, venue)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements for player %s: %w", playerID, err)
	}
	defer rows.Close()

	list := make([]models.AchievementEarned, 0)
	for rows.Next() {
		a := models.AchievementEarned{PlayerID: playerID}
		if err := rows.Scan(&a.Key, &a.Repeatable, &a.Occurrence, &a.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement row: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievement rows: %w", err)
	}
	return list, nil
}

// ApplyDelta increments the counters only if the row is still at the version
// the delta was computed against, then appends the earned achievements.
func (r *postgresHistoryRepository) ApplyDelta(ctx context.Context, exec SQLExecutor, matchToken string, d models.HistoryDelta) error {
	wins, losses := 0, 1
	if d.Won {
		wins, losses = 1, 0
	}

	var (
		result sql.Result
		err    error
	)
	if d.ExpectedVersion == 0 {
		query := `
			INSERT INTO player_histories
				(player_id, venue_context, wins, losses, win_streak, points_won, matches_played, version, updated_at)
			VALUES ($1, $2, $3, $4, $3, $5, 1, 1, NOW())
			ON CONFLICT (player_id, venue_context) DO NOTHING`
		result, err = exec.ExecContext(ctx, query, d.PlayerID, d.VenueContext, wins, losses, d.PointsWon)
	} else {
		query := `
			UPDATE player_histories
			SET wins = wins + $3,
			    losses = losses + $4,
			    win_streak = CASE WHEN $3 = 1 THEN win_streak + 1 ELSE 0 END,
			    points_won = points_won + $5,
			    matches_played = matches_played + 1,
			    version = version + 1,
			    updated_at = NOW()
			WHERE player_id = $1 AND venue_context = $2 AND version = $6`
		result, err = exec.ExecContext(ctx, query, d.PlayerID, d.VenueContext, wins, losses, d.PointsWon, d.ExpectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to update history for player %s: %w", d.PlayerID, err)
	}
	if err := checkAffectedRows(result, ErrHistoryConflict); err != nil {
		return err
	}

	insert := `
		INSERT INTO player_achievements
			(player_id, venue_context, achievement_key, repeatable, occurrence, match_token, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id, venue_context, achievement_key, occurrence) DO NOTHING`
	for _, a := range d.Earned {
		if _, err := exec.ExecContext(ctx, insert, d.PlayerID, d.VenueContext, a.Key, a.Repeatable, a.Occurrence, matchToken, a.EarnedAt); err != nil {
			return fmt.Errorf("failed to record achievement %s for player %s: %w", a.Key, d.PlayerID, err)
		}
	}
	return nil
}
