// Package loyalty реализует подсчёт штампов карты фидельности.
// Накопительные счётчики хранятся в репозитории; здесь только чистая
// арифметика подсчёта и прогресса.
package loyalty

import (
	"strings"

	"github.com/Six9one/twinbite-order-sub002/internal/model"
)

// DefaultStampsPerFreeItem — число штампов для бесплатной позиции.
const DefaultStampsPerFreeItem = 10

// DefaultQualifyingCategories — категории, покупки в которых дают штампы.
var DefaultQualifyingCategories = []string{
	"pizzas",
	"sandwiches",
	"soufflet",
	"makloub",
	"mlawi",
	"tacos",
	"panini",
}

// Config содержит параметры программы фидельности.
type Config struct {
	QualifyingCategories []string
	StampsPerFreeItem    int
}

// DefaultConfig возвращает действующие параметры программы.
func DefaultConfig() Config {
	return Config{
		QualifyingCategories: DefaultQualifyingCategories,
		StampsPerFreeItem:    DefaultStampsPerFreeItem,
	}
}

// CountQualifyingUnits возвращает число единиц заказа, дающих штампы.
// Категория позиции сравнивается с каждой учитываемой категорией без учёта
// регистра, по вхождению подстроки. Отрицательные количества не учитываются.
func CountQualifyingUnits(items []model.LineItem, cfg Config) int {
	total := 0
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		category := strings.ToLower(item.Category)
		for _, q := range cfg.QualifyingCategories {
			if strings.Contains(category, strings.ToLower(q)) {
				total += item.Quantity
				break
			}
		}
	}
	return total
}

// Progress возвращает видимое состояние карты: позицию в текущем цикле,
// цель и число заработанных бесплатных позиций.
func Progress(acc model.LoyaltyAccount, cfg Config) model.LoyaltyProgress {
	target := cfg.StampsPerFreeItem
	if target <= 0 {
		target = DefaultStampsPerFreeItem
	}

	earned := acc.StampCount / int64(target)
	available := earned - acc.FreeItemsRedeemed
	if available < 0 {
		available = 0
	}

	return model.LoyaltyProgress{
		Current:            int(acc.StampCount % int64(target)),
		Target:             target,
		FreeItemsEarned:    earned,
		FreeItemsAvailable: available,
	}
}
