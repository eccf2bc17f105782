// Package rewards maps earned achievements onto the configured reward catalog.
package rewards

import (
	"github.com/Dosada05/courtside/models"
)

// Resolve looks up every earned achievement in the catalog of the given venue
// context. Achievements without a configured reward resolve to nothing.
// A key with several active rewards yields all of them in catalog order.
func Resolve(earned []models.AchievementEarned, venue models.VenueContext, catalog []models.RewardDefinition) []models.ResolvedReward {
	byKey := make(map[string][]models.RewardDefinition)
	for _, def := range catalog {
		if def.VenueContext != venue || !def.Active {
			continue
		}
		byKey[def.AchievementKey] = append(byKey[def.AchievementKey], def)
	}

	resolved := make([]models.ResolvedReward, 0)
	for _, a := range earned {
		for _, def := range byKey[a.Key] {
			resolved = append(resolved, models.ResolvedReward{
				PlayerID:        a.PlayerID,
				AchievementKey:  a.Key,
				RewardID:        def.ID,
				Name:            def.Name,
				Description:     def.Description,
				DiscountType:    def.DiscountType,
				DiscountValue:   def.DiscountValue,
				ProductCategory: def.ProductCategory,
			})
		}
	}
	return resolved
}
