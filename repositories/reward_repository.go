package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/courtside/models"
)

// RewardRepository is a read-only view of the venue reward configuration.
type RewardRepository interface {
	ListByVenueContext(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error)
}

type postgresRewardRepository struct {
	db *sql.DB
}

func NewPostgresRewardRepository(db *sql.DB) RewardRepository {
	return &postgresRewardRepository{db: db}
}

func (r *postgresRewardRepository) ListByVenueContext(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error) {
	query := `
		SELECT id, venue_context, achievement_key, name, COALESCE(description, ''),
		       discount_type, discount_value, COALESCE(product_category, ''), active
		FROM reward_definitions
		WHERE venue_context = $1
		ORDER BY achievement_key ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, venue)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards for venue %s: %w", venue, err)
	}
	defer rows.Close()

	catalog := make([]models.RewardDefinition, 0)
	for rows.Next() {
		var d models.RewardDefinition
		if err := rows.Scan(
			&d.ID,
			&d.VenueContext,
			&d.AchievementKey,
			&d.Name,
			&d.Description,
			&d.DiscountType,
			&d.DiscountValue,
			&d.ProductCategory,
			&d.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reward definition: %w", err)
		}
		catalog = append(catalog, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reward rows: %w", err)
	}
	return catalog, nil
}
