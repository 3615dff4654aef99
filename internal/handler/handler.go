// Package handler содержит HTTP-обработчики API сервиса приёма заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Six9one/twinbite-order-sub002/internal/middleware"
	"github.com/Six9one/twinbite-order-sub002/internal/model"
	"github.com/Six9one/twinbite-order-sub002/internal/repository"
	"github.com/Six9one/twinbite-order-sub002/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterStaff(ctx context.Context, login, password string) (int64, error)
	AuthenticateStaff(ctx context.Context, login, password string) (int64, error)
	ListMenu(ctx context.Context, activeOnly bool) ([]model.MenuItem, error)
	CreateMenuItem(ctx context.Context, m model.MenuItem) (int64, error)
	UpdateMenuItem(ctx context.Context, m model.MenuItem) error
	DeleteMenuItem(ctx context.Context, id int64) error
	ListDeliveryZones(ctx context.Context) ([]model.DeliveryZone, error)
	QuoteOrder(ctx context.Context, items []model.LineItem, orderType model.OrderType, zoneID string) (*service.Quote, error)
	SubmitOrder(ctx context.Context, sub service.OrderSubmission) (*model.Order, error)
	GetOrder(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, number string, status model.OrderStatus) error
	GetLoyaltyProgress(ctx context.Context, phone string) (*model.LoyaltyProgress, error)
	RedeemFreeItem(ctx context.Context, phone string) error
}

// Handler реализует HTTP-обработчики API сервиса приёма заказов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового сотрудника.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	staffID, err := h.service.RegisterStaff(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register staff error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, staffID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию сотрудника и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	staffID, err := h.service.AuthenticateStaff(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login staff error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, staffID)
	w.WriteHeader(http.StatusOK)
}

// GetMenu возвращает доступные для заказа позиции меню.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListMenu(r.Context(), true)
	if err != nil {
		h.logger.Error("get menu error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, items)
}

// AdminGetMenu возвращает все позиции меню, включая скрытые.
func (h *Handler) AdminGetMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListMenu(r.Context(), false)
	if err != nil {
		h.logger.Error("admin get menu error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, items)
}

type menuItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
	Active      *bool   `json:"active"`
}

func (req menuItemRequest) toModel() model.MenuItem {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.MenuItem{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  int64(math.Round(req.Price * 100)),
		ImageURL:    req.ImageURL,
		Active:      active,
	}
}

// CreateMenuItem добавляет позицию меню.
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateMenuItem(r.Context(), req.toModel())
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create menu item error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

// UpdateMenuItem обновляет позицию меню.
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	m := req.toModel()
	m.ID = id

	if err := h.service.UpdateMenuItem(r.Context(), m); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrMenuItemNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("update menu item error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteMenuItem удаляет позицию меню.
func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrMenuItemNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete menu item error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetZones возвращает зоны доставки.
func (h *Handler) GetZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.service.ListDeliveryZones(r.Context())
	if err != nil {
		h.logger.Error("get zones error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, zones)
}

type lineItemRequest struct {
	ProductID     int64                `json:"product_id"`
	Name          string               `json:"name"`
	Category      string               `json:"category"`
	Quantity      int                  `json:"quantity"`
	UnitPrice     *float64             `json:"unit_price,omitempty"`
	Customization *model.Customization `json:"customization,omitempty"`
}

func toLineItems(reqs []lineItemRequest) []model.LineItem {
	items := make([]model.LineItem, 0, len(reqs))
	for _, req := range reqs {
		item := model.LineItem{
			ProductID:     req.ProductID,
			Name:          req.Name,
			Category:      req.Category,
			Quantity:      req.Quantity,
			Customization: req.Customization,
		}
		if req.UnitPrice != nil {
			cents := int64(math.Round(*req.UnitPrice * 100))
			item.UnitPriceCents = &cents
		}
		items = append(items, item)
	}
	return items
}

type quoteRequest struct {
	OrderType string            `json:"order_type"`
	ZoneID    string            `json:"zone_id,omitempty"`
	Items     []lineItemRequest `json:"items"`
}

type quoteResponse struct {
	OriginalTotal    float64 `json:"original_total"`
	DiscountedTotal  float64 `json:"discounted_total"`
	SupplementsTotal float64 `json:"supplements_total"`
	PromoDescription string  `json:"promo_description,omitempty"`
	FreePizzas       int     `json:"free_pizzas"`
	Subtotal         float64 `json:"subtotal"`
	DeliveryFee      float64 `json:"delivery_fee"`
	Total            float64 `json:"total"`
	HT               float64 `json:"ht"`
	TVA              float64 `json:"tva"`
	StampsEarned     int     `json:"stamps_earned"`
	MenuMidiActive   bool    `json:"menu_midi_active"`
	MenuMidiEndsIn   int     `json:"menu_midi_ends_in_minutes,omitempty"`
}

func quoteToResponse(q *service.Quote, deliveryFee int64, total int64) quoteResponse {
	return quoteResponse{
		OriginalTotal:    float64(q.Promo.OriginalCents+q.OtherCents) / 100,
		DiscountedTotal:  float64(q.Promo.DiscountedCents+q.OtherCents) / 100,
		SupplementsTotal: float64(q.Promo.SupplementsCents) / 100,
		PromoDescription: q.Promo.Description,
		FreePizzas:       q.Promo.FreePizzas,
		Subtotal:         float64(q.SubtotalCents) / 100,
		DeliveryFee:      float64(deliveryFee) / 100,
		Total:            float64(total) / 100,
		HT:               float64(q.HTCents) / 100,
		TVA:              float64(q.TVACents) / 100,
		StampsEarned:     q.StampsEarned,
		MenuMidiActive:   q.MenuMidiActive,
		MenuMidiEndsIn:   int(q.MenuMidiEndsIn.Minutes()),
	}
}

// QuoteOrder рассчитывает суммы корзины без оформления заказа.
func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	quote, err := h.service.QuoteOrder(r.Context(), toLineItems(req.Items), model.OrderType(req.OrderType), req.ZoneID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrZoneNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("quote order error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, quoteToResponse(quote, quote.DeliveryFeeCents, quote.TotalCents))
}

type submitOrderRequest struct {
	Number          string            `json:"number,omitempty"`
	OrderType       string            `json:"order_type"`
	Items           []lineItemRequest `json:"items"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerAddress string            `json:"customer_address,omitempty"`
	CustomerNotes   string            `json:"customer_notes,omitempty"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	ZoneID          string            `json:"zone_id,omitempty"`
}

type orderResponse struct {
	Number           string  `json:"number"`
	OrderType        string  `json:"order_type"`
	Status           string  `json:"status"`
	CustomerName     string  `json:"customer_name"`
	CustomerPhone    string  `json:"customer_phone"`
	Subtotal         float64 `json:"subtotal"`
	TVA              float64 `json:"tva"`
	DeliveryFee      float64 `json:"delivery_fee"`
	Total            float64 `json:"total"`
	PromoDescription string  `json:"promo_description,omitempty"`
	FreePizzas       int     `json:"free_pizzas"`
	StampsEarned     int     `json:"stamps_earned"`
	CreatedAt        string  `json:"created_at"`
}

func orderToResponse(o *model.Order) orderResponse {
	return orderResponse{
		Number:           o.Number,
		OrderType:        string(o.Type),
		Status:           string(o.Status),
		CustomerName:     o.CustomerName,
		CustomerPhone:    o.CustomerPhone,
		Subtotal:         float64(o.SubtotalCents) / 100,
		TVA:              float64(o.TVACents) / 100,
		DeliveryFee:      float64(o.DeliveryFeeCents) / 100,
		Total:            float64(o.TotalCents) / 100,
		PromoDescription: o.PromoDescription,
		FreePizzas:       o.FreePizzas,
		StampsEarned:     o.StampsEarned,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339),
	}
}

// SubmitOrder принимает оформленный заказ покупателя.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.SubmitOrder(r.Context(), service.OrderSubmission{
		Number:          req.Number,
		Type:            model.OrderType(req.OrderType),
		Items:           toLineItems(req.Items),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		CustomerNotes:   req.CustomerNotes,
		PaymentMethod:   req.PaymentMethod,
		ZoneID:          req.ZoneID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrZoneNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("submit order error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(orderToResponse(order))
}

// GetOrders возвращает последние заказы для кухонной панели.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.service.ListOrders(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, orderToResponse(&orders[i]))
	}

	h.writeJSON(w, resp)
}

// GetOrder возвращает заказ по номеру.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	order, err := h.service.GetOrder(r.Context(), number)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("order", number))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, orderToResponse(order))
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus изменяет статус заказа на кухонной панели.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateOrderStatus(r.Context(), number, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("update order status error", zap.Error(err), zap.String("order", number))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetLoyalty возвращает состояние карты фидельности покупателя.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	progress, err := h.service.GetLoyaltyProgress(r.Context(), phone)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("get loyalty error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, progress)
}

// RedeemLoyalty списывает одну бесплатную позицию с карты покупателя.
func (h *Handler) RedeemLoyalty(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	err := h.service.RedeemFreeItem(r.Context(), phone)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrNoRewardAvailable):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("redeem loyalty error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
