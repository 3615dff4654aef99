package pricing

import (
	"errors"
	"fmt"

	"github.com/Six9one/twinbite-order-sub002/internal/model"
)

// ErrInvalidAmount возвращается при отрицательном количестве или отрицательной цене.
var ErrInvalidAmount = errors.New("invalid amount")

// promoRatio описывает правило акции: из каждой полной группы divisor единиц
// оплачиваются payable, остальные бесплатны.
type promoRatio struct {
	divisor int64
	payable int64
	label   string
}

func ratioForOrderType(orderType model.OrderType) promoRatio {
	switch orderType {
	case model.OrderTypeTakeaway, model.OrderTypeDineIn:
		return promoRatio{divisor: 2, payable: 1, label: "1 achetée = 1 offerte"}
	case model.OrderTypeDelivery:
		return promoRatio{divisor: 3, payable: 2, label: "2 achetées = 1 offerte"}
	default:
		// Неизвестный или не выбранный способ получения: без скидки.
		return promoRatio{divisor: 1, payable: 1}
	}
}

// sizeGroup — ключ разбиения пицц при применении акции. Акция никогда не
// объединяет единицы из разных групп: одна бесплатная пицца всегда того же
// размера и того же тарифа, что и оплаченные.
type sizeGroup struct {
	size     model.PizzaSize
	menuMidi bool
}

// ApplyPizzaPromotions рассчитывает скидку для семейства пицц в заказе.
// Позиции разбиваются на группы по размеру и тарифу, в каждой группе из
// каждых divisor единиц оплачиваются payable по базовой цене группы, остаток
// оплачивается полностью. Дополнения не участвуют в скидке и прибавляются к
// обеим итоговым суммам одинаково.
func (p PriceTable) ApplyPizzaPromotions(items []model.LineItem, orderType model.OrderType) (model.PromoResult, error) {
	counts := make(map[sizeGroup]int64)

	for _, item := range items {
		if item.Quantity < 0 {
			return model.PromoResult{}, fmt.Errorf("%w: quantity %d for product %d", ErrInvalidAmount, item.Quantity, item.ProductID)
		}
		if item.UnitPriceCents != nil && *item.UnitPriceCents < 0 {
			return model.PromoResult{}, fmt.Errorf("%w: unit price %d for product %d", ErrInvalidAmount, *item.UnitPriceCents, item.ProductID)
		}

		g := sizeGroup{size: model.SizeSenior}
		if c := item.Customization; c != nil {
			if c.Size != "" {
				g.size = c.Size
			}
			g.menuMidi = c.MenuMidi
		}
		counts[g] += int64(item.Quantity)
	}

	ratio := ratioForOrderType(orderType)

	var (
		originalBase   int64
		discountedBase int64
		freePizzas     int64
	)

	for g, n := range counts {
		base := p.BasePrice(g.size, g.menuMidi)

		fullGroups := n / ratio.divisor
		remainder := n % ratio.divisor

		originalBase += n * base
		discountedBase += fullGroups*ratio.payable*base + remainder*base
		freePizzas += fullGroups * (ratio.divisor - ratio.payable)
	}

	supplements := p.SupplementsCents(items)

	res := model.PromoResult{
		OriginalCents:    originalBase + supplements,
		DiscountedCents:  discountedBase + supplements,
		SupplementsCents: supplements,
		FreePizzas:       int(freePizzas),
	}

	if res.FreePizzas > 0 {
		plural := ""
		if res.FreePizzas > 1 {
			plural = "s"
		}
		res.Description = fmt.Sprintf("%s (%d pizza%s offerte%s)", ratio.label, res.FreePizzas, plural, plural)
	}

	return res, nil
}
