// Package model содержит доменные сущности сервиса приёма заказов.
package model

import "time"

// StaffUser представляет сотрудника с доступом к панели управления.
type StaffUser struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// OrderType описывает способ получения заказа.
type OrderType string

const (
	OrderTypeTakeaway OrderType = "emporter"
	OrderTypeDelivery OrderType = "livraison"
	OrderTypeDineIn   OrderType = "surplace"
	// OrderTypeUnset означает, что способ получения не выбран: акции не применяются.
	OrderTypeUnset OrderType = ""
)

// Valid сообщает, является ли значение одним из известных способов получения.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeTakeaway, OrderTypeDelivery, OrderTypeDineIn, OrderTypeUnset:
		return true
	}
	return false
}

// OrderStatus описывает статус обработки заказа на кухне.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid сообщает, является ли значение известным статусом заказа.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// PizzaSize описывает размер пиццы.
type PizzaSize string

const (
	SizeSenior PizzaSize = "senior"
	SizeMega   PizzaSize = "mega"
)

// MenuItem описывает позицию меню.
type MenuItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	PriceCents  int64     `json:"-"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"-"`
}

// Customization содержит выбранные покупателем параметры позиции.
type Customization struct {
	Size        PizzaSize `json:"size,omitempty"`
	Base        string    `json:"base,omitempty"`
	MenuMidi    bool      `json:"menu_midi,omitempty"`
	Supplements []string  `json:"supplements,omitempty"`
	MenuOption  string    `json:"menu_option,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// LineItem описывает одну позицию корзины. Ценовое ядро читает её без изменений.
type LineItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	// UnitPriceCents — зафиксированная цена за единицу; nil означает,
	// что цена вычисляется из прейскуранта по параметрам позиции.
	UnitPriceCents *int64         `json:"unit_price_cents,omitempty"`
	Customization  *Customization `json:"customization,omitempty"`
}

// PromoResult содержит итог применения акции к семейству позиций.
type PromoResult struct {
	OriginalCents    int64
	DiscountedCents  int64
	SupplementsCents int64
	FreePizzas       int
	Description      string
}

// TaxBreakdown содержит разложение суммы с НДС на составляющие.
type TaxBreakdown struct {
	HT  float64 `json:"ht"`
	TVA float64 `json:"tva"`
	TTC float64 `json:"ttc"`
}

// Order описывает заказ покупателя со всеми рассчитанными суммами.
type Order struct {
	Number           string
	Type             OrderType
	Status           OrderStatus
	CustomerName     string
	CustomerPhone    string
	CustomerAddress  string
	CustomerNotes    string
	PaymentMethod    string
	ZoneID           string
	Items            []LineItem
	SubtotalCents    int64
	TVACents         int64
	DeliveryFeeCents int64
	TotalCents       int64
	PromoDescription string
	FreePizzas       int
	StampsEarned     int
	CreatedAt        time.Time
}

// LoyaltyAccount содержит накопительные счётчики карты фидельности покупателя.
type LoyaltyAccount struct {
	CustomerPhone     string
	CustomerName      string
	StampCount        int64
	TotalOrders       int64
	FreeItemsRedeemed int64
	LastOrderAt       time.Time
}

// LoyaltyProgress описывает видимое покупателю состояние карты.
type LoyaltyProgress struct {
	Current            int   `json:"current"`
	Target             int   `json:"target"`
	FreeItemsEarned    int64 `json:"free_items_earned"`
	FreeItemsAvailable int64 `json:"free_items_available"`
}

// DeliveryZone описывает зону доставки с минимальной суммой заказа.
type DeliveryZone struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	MinOrderCents    int64   `json:"-"`
	MinOrder         float64 `json:"min_order"`
	DeliveryFeeCents int64   `json:"-"`
	DeliveryFee      float64 `json:"delivery_fee"`
	EstimatedTime    string  `json:"estimated_time"`
}
