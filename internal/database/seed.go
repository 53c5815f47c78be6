package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
)

// Seed inserts the default currencies and the shared default categories.
// Rows that already exist are left untouched, so Seed can run on every start.
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var created int
		for _, c := range models.DefaultCurrencies {
			currency := c
			res := tx.Where("code = ?", currency.Code).
				Attrs(models.Currency{Name: currency.Name, Symbol: currency.Symbol}).
				FirstOrCreate(&currency)
			if res.Error != nil {
				return fmt.Errorf("seed currency %s: %w", c.Code, res.Error)
			}
			created += int(res.RowsAffected)
		}

		for _, c := range models.DefaultCategories {
			category := c
			res := tx.Where("user_id IS NULL AND name = ? AND type = ?", category.Name, category.Type).
				Attrs(models.Category{Icon: category.Icon, Color: category.Color}).
				FirstOrCreate(&category)
			if res.Error != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, res.Error)
			}
			created += int(res.RowsAffected)
		}

		if created > 0 {
			logger.Get().Infow("Seeded reference data", "rows", created)
		}
		return nil
	})
}
