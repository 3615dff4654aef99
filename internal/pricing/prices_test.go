package pricing

import (
	"testing"
	"time"

	"github.com/Six9one/twinbite-order-sub002/internal/model"
)

func TestIsMenuMidi(t *testing.T) {
	day := func(hour, minute int) time.Time {
		return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "before window", at: day(10, 59), want: false},
		{name: "window start", at: day(11, 0), want: true},
		{name: "midday", at: day(13, 30), want: true},
		{name: "last minute", at: day(14, 59), want: true},
		{name: "window end", at: day(15, 0), want: false},
		{name: "evening", at: day(20, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMenuMidi(tt.at); got != tt.want {
				t.Fatalf("IsMenuMidi(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestMenuMidiRemaining(t *testing.T) {
	at := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	remaining, ok := MenuMidiRemaining(at)
	if !ok {
		t.Fatalf("MenuMidiRemaining(%v): expected active window", at)
	}
	if remaining != time.Hour {
		t.Fatalf("remaining = %v, want 1h", remaining)
	}

	if _, ok := MenuMidiRemaining(time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("expected inactive window at 16:00")
	}
}

func TestBasePrice(t *testing.T) {
	p := DefaultPriceTable()

	tests := []struct {
		size     model.PizzaSize
		menuMidi bool
		want     int64
	}{
		{size: model.SizeSenior, menuMidi: false, want: 1800},
		{size: model.SizeMega, menuMidi: false, want: 2500},
		{size: model.SizeSenior, menuMidi: true, want: 1000},
		{size: model.SizeMega, menuMidi: true, want: 1500},
	}

	for _, tt := range tests {
		if got := p.BasePrice(tt.size, tt.menuMidi); got != tt.want {
			t.Fatalf("BasePrice(%s, %v) = %d, want %d", tt.size, tt.menuMidi, got, tt.want)
		}
	}
}

func TestResolveUnitPrice(t *testing.T) {
	p := DefaultPriceTable()

	// Пицца: цена из прейскуранта по размеру плюс дополнения.
	item := model.LineItem{
		Category: "pizzas",
		Quantity: 1,
		Customization: &model.Customization{
			Size:        model.SizeMega,
			Supplements: []string{"mozzarella", "viande"},
		},
	}
	if got := p.ResolveUnitPrice(item, 0); got != 2750 {
		t.Fatalf("ResolveUnitPrice(pizza) = %d, want 2750", got)
	}

	// Зафиксированная цена имеет приоритет для остальных позиций.
	fixed := int64(650)
	other := model.LineItem{Category: "tacos", Quantity: 1, UnitPriceCents: &fixed}
	if got := p.ResolveUnitPrice(other, 999); got != 650 {
		t.Fatalf("ResolveUnitPrice(fixed) = %d, want 650", got)
	}

	// Без зафиксированной цены используется fallback из меню.
	if got := p.ResolveUnitPrice(model.LineItem{Category: "frites"}, 450); got != 450 {
		t.Fatalf("ResolveUnitPrice(fallback) = %d, want 450", got)
	}
}
