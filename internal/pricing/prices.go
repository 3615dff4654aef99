// Package pricing реализует ценовое ядро: прейскурант, суммирование
// дополнений, акции на пиццы и разложение НДС. Все функции чистые и
// работают с уже загруженными в память данными заказа.
package pricing

import (
	"time"

	"github.com/Six9one/twinbite-order-sub002/internal/model"
)

// PriceTable содержит базовые цены пицц по размерам и цены дополнений в центах.
type PriceTable struct {
	Senior         int64
	Mega           int64
	MenuMidiSenior int64
	MenuMidiMega   int64
	Supplements    map[string]int64
}

// DefaultPriceTable возвращает действующий прейскурант ресторана.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		Senior:         1800,
		Mega:           2500,
		MenuMidiSenior: 1000,
		MenuMidiMega:   1500,
		Supplements: map[string]int64{
			"chevre":     100,
			"reblochon":  100,
			"mozzarella": 100,
			"raclette":   100,
			"cheddar":    100,
			"boursin":    100,
			"fromage":    100,
			"viande":     150,
			"sauce":      50,
		},
	}
}

// BasePrice возвращает базовую цену пиццы для размера с учётом тарифа menu midi.
// Дополнения в базовую цену не входят.
func (p PriceTable) BasePrice(size model.PizzaSize, menuMidi bool) int64 {
	if menuMidi {
		if size == model.SizeMega {
			return p.MenuMidiMega
		}
		return p.MenuMidiSenior
	}
	if size == model.SizeMega {
		return p.Mega
	}
	return p.Senior
}

// Menu midi действует с 11:00 до 15:00.
const (
	menuMidiStartHour = 11
	menuMidiEndHour   = 15
)

// IsMenuMidi сообщает, действует ли тариф menu midi в указанный момент времени.
func IsMenuMidi(now time.Time) bool {
	h := now.Hour()
	return h >= menuMidiStartHour && h < menuMidiEndHour
}

// MenuMidiRemaining возвращает время до окончания действия тарифа menu midi
// и false, если тариф сейчас не действует.
func MenuMidiRemaining(now time.Time) (time.Duration, bool) {
	if !IsMenuMidi(now) {
		return 0, false
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), menuMidiEndHour, 0, 0, 0, now.Location())
	return end.Sub(now), true
}
