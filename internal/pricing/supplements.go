package pricing

import "github.com/Six9one/twinbite-order-sub002/internal/model"

// ItemSupplementsCents возвращает стоимость дополнений одной единицы позиции.
// Неизвестные идентификаторы дополнений игнорируются и дают ноль.
func (p PriceTable) ItemSupplementsCents(item model.LineItem) int64 {
	if item.Customization == nil {
		return 0
	}

	var sum int64
	for _, id := range item.Customization.Supplements {
		sum += p.Supplements[id]
	}
	return sum
}

// SupplementsCents возвращает суммарную стоимость дополнений по всем позициям
// с учётом количества.
func (p PriceTable) SupplementsCents(items []model.LineItem) int64 {
	var sum int64
	for _, item := range items {
		sum += p.ItemSupplementsCents(item) * int64(item.Quantity)
	}
	return sum
}

// ResolveUnitPrice возвращает цену за единицу позиции. Для пицц цена
// определяется размером и тарифом menu midi плюс дополнения; для остальных
// позиций используется зафиксированная цена, а при её отсутствии — fallback.
func (p PriceTable) ResolveUnitPrice(item model.LineItem, fallbackCents int64) int64 {
	if c := item.Customization; c != nil && c.Size != "" {
		return p.BasePrice(c.Size, c.MenuMidi) + p.ItemSupplementsCents(item)
	}
	if item.UnitPriceCents != nil {
		return *item.UnitPriceCents
	}
	return fallbackCents
}
