// Package service реализует бизнес-логику сервиса приёма заказов.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Six9one/twinbite-order-sub002/internal/loyalty"
	"github.com/Six9one/twinbite-order-sub002/internal/model"
	"github.com/Six9one/twinbite-order-sub002/internal/notifier"
	"github.com/Six9one/twinbite-order-sub002/internal/pricing"
	"github.com/Six9one/twinbite-order-sub002/internal/repository"
	"github.com/Six9one/twinbite-order-sub002/internal/validation"
)

// ErrValidation возвращается при некорректных данных заказа.
var ErrValidation = errors.New("validation error")

// ErrInvalidCredentials возвращается при неверном логине или пароле.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateStaffUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetStaffUserByLogin(ctx context.Context, login string) (*model.StaffUser, error)
	ListMenuItems(ctx context.Context, activeOnly bool) ([]model.MenuItem, error)
	CreateMenuItem(ctx context.Context, m model.MenuItem) (int64, error)
	UpdateMenuItem(ctx context.Context, m model.MenuItem) error
	DeleteMenuItem(ctx context.Context, id int64) error
	ListDeliveryZones(ctx context.Context) ([]model.DeliveryZone, error)
	GetDeliveryZone(ctx context.Context, id string) (*model.DeliveryZone, error)
	CreateOrder(ctx context.Context, order *model.Order) (bool, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, number string, status model.OrderStatus) error
	GetLoyaltyAccount(ctx context.Context, phone string) (*model.LoyaltyAccount, error)
	RedeemFreeItem(ctx context.Context, phone string, stampsPerFreeItem int) error
	GetOrdersForNotification(ctx context.Context, limit int) ([]repository.OrderForNotification, error)
	MarkOrderNotified(ctx context.Context, number string) error
}

// Notifier описывает контракт отправки уведомлений о заказах.
type Notifier interface {
	SendOrderNotification(ctx context.Context, n notifier.OrderNotification) (int, time.Duration, error)
}

// Service содержит бизнес-логику сервиса приёма заказов.
type Service struct {
	repo        Repository
	notifier    Notifier
	prices      pricing.PriceTable
	loyaltyCfg  loyalty.Config
	orderPrefix string
	logger      *zap.Logger
	now         func() time.Time
}

// Options содержат настройки создания сервиса.
type Options struct {
	Prices      pricing.PriceTable
	Loyalty     loyalty.Config
	OrderPrefix string
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом рассылки.
func NewService(repo Repository, n Notifier, logger *zap.Logger, opts Options) *Service {
	if opts.Prices.Supplements == nil {
		opts.Prices = pricing.DefaultPriceTable()
	}
	if opts.Loyalty.StampsPerFreeItem <= 0 {
		opts.Loyalty.StampsPerFreeItem = loyalty.DefaultStampsPerFreeItem
	}
	if len(opts.Loyalty.QualifyingCategories) == 0 {
		opts.Loyalty.QualifyingCategories = loyalty.DefaultQualifyingCategories
	}
	if opts.OrderPrefix == "" {
		opts.OrderPrefix = "TW"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:        repo,
		notifier:    n,
		prices:      opts.Prices,
		loyaltyCfg:  opts.Loyalty,
		orderPrefix: opts.OrderPrefix,
		logger:      logger,
		now:         time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterStaff регистрирует нового сотрудника.
func (s *Service) RegisterStaff(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateStaffUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateStaff проверяет логин и пароль сотрудника и возвращает его идентификатор.
func (s *Service) AuthenticateStaff(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetStaffUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// ListMenu возвращает позиции меню.
func (s *Service) ListMenu(ctx context.Context, activeOnly bool) ([]model.MenuItem, error) {
	return s.repo.ListMenuItems(ctx, activeOnly)
}

// CreateMenuItem добавляет позицию меню.
func (s *Service) CreateMenuItem(ctx context.Context, m model.MenuItem) (int64, error) {
	if m.Name == "" || m.Category == "" {
		return 0, fmt.Errorf("%w: name and category are required", ErrValidation)
	}
	if m.PriceCents < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return s.repo.CreateMenuItem(ctx, m)
}

// UpdateMenuItem обновляет позицию меню.
func (s *Service) UpdateMenuItem(ctx context.Context, m model.MenuItem) error {
	if m.Name == "" || m.Category == "" {
		return fmt.Errorf("%w: name and category are required", ErrValidation)
	}
	if m.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return s.repo.UpdateMenuItem(ctx, m)
}

// DeleteMenuItem удаляет позицию меню.
func (s *Service) DeleteMenuItem(ctx context.Context, id int64) error {
	return s.repo.DeleteMenuItem(ctx, id)
}

// ListDeliveryZones возвращает зоны доставки.
func (s *Service) ListDeliveryZones(ctx context.Context) ([]model.DeliveryZone, error) {
	return s.repo.ListDeliveryZones(ctx)
}

// Quote содержит рассчитанные суммы заказа до его оформления.
type Quote struct {
	Promo            model.PromoResult
	OtherCents       int64
	SubtotalCents    int64
	DeliveryFeeCents int64
	TotalCents       int64
	Tax              model.TaxBreakdown
	HTCents          int64
	TVACents         int64
	StampsEarned     int
	MenuMidiActive   bool
	MenuMidiEndsIn   time.Duration
}

// QuoteOrder рассчитывает суммы корзины: акции на пиццы, остальные позиции,
// стоимость доставки и разложение НДС. Ничего не сохраняет.
func (s *Service) QuoteOrder(ctx context.Context, items []model.LineItem, orderType model.OrderType, zoneID string) (*Quote, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty cart", ErrValidation)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for product %d", ErrValidation, item.ProductID)
		}
	}

	if !orderType.Valid() {
		// Неизвестный способ получения не блокирует оформление, но скидка не
		// применяется. Сигнал о качестве данных — в лог.
		s.logger.Warn("unknown order type, promotions disabled", zap.String("order_type", string(orderType)))
	}

	// Тариф menu midi определяется часами сервера, а не флагом клиента:
	// вне окна действия флаг сбрасывается и применяется стандартная цена.
	if !pricing.IsMenuMidi(s.now()) {
		for i := range items {
			if c := items[i].Customization; c != nil && c.MenuMidi {
				s.logger.Warn("menu midi requested outside window, standard price applied",
					zap.Int64("product_id", items[i].ProductID))
				cc := *c
				cc.MenuMidi = false
				items[i].Customization = &cc
			}
		}
	}

	var pizzaItems, otherItems []model.LineItem
	for _, item := range items {
		if strings.EqualFold(item.Category, "pizzas") {
			pizzaItems = append(pizzaItems, item)
		} else {
			otherItems = append(otherItems, item)
		}
	}

	for _, item := range pizzaItems {
		if item.Customization == nil {
			continue
		}
		for _, id := range item.Customization.Supplements {
			if _, ok := s.prices.Supplements[id]; !ok {
				s.logger.Warn("unknown supplement ignored",
					zap.String("supplement", id), zap.Int64("product_id", item.ProductID))
			}
		}
	}

	promo, err := s.prices.ApplyPizzaPromotions(pizzaItems, orderType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	fallbacks, err := s.menuPriceFallbacks(ctx, otherItems)
	if err != nil {
		return nil, err
	}

	var otherCents int64
	for _, item := range otherItems {
		unit := s.prices.ResolveUnitPrice(item, fallbacks[item.ProductID])
		if unit < 0 {
			return nil, fmt.Errorf("%w: negative price for product %d", ErrValidation, item.ProductID)
		}
		otherCents += unit * int64(item.Quantity)
	}

	q := &Quote{
		Promo:         promo,
		OtherCents:    otherCents,
		SubtotalCents: promo.DiscountedCents + otherCents,
		StampsEarned:  loyalty.CountQualifyingUnits(items, s.loyaltyCfg),
	}
	q.MenuMidiEndsIn, q.MenuMidiActive = pricing.MenuMidiRemaining(s.now())

	if orderType == model.OrderTypeDelivery && zoneID != "" {
		zone, err := s.repo.GetDeliveryZone(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		if q.SubtotalCents < zone.MinOrderCents {
			return nil, fmt.Errorf("%w: order below zone minimum of %.2f", ErrValidation, zone.MinOrder)
		}
		q.DeliveryFeeCents = zone.DeliveryFeeCents
	}

	q.TotalCents = q.SubtotalCents + q.DeliveryFeeCents

	tax, err := pricing.SplitTVA(float64(q.SubtotalCents) / 100)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	q.Tax = tax

	q.HTCents, q.TVACents, err = pricing.SplitTVACents(q.SubtotalCents)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	return q, nil
}

func (s *Service) menuPriceFallbacks(ctx context.Context, items []model.LineItem) (map[int64]int64, error) {
	needed := false
	for _, item := range items {
		if item.UnitPriceCents == nil && (item.Customization == nil || item.Customization.Size == "") {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}

	menu, err := s.repo.ListMenuItems(ctx, true)
	if err != nil {
		return nil, err
	}

	fallbacks := make(map[int64]int64, len(menu))
	for _, m := range menu {
		fallbacks[m.ID] = m.PriceCents
	}
	return fallbacks, nil
}

// OrderSubmission содержит данные оформления заказа.
type OrderSubmission struct {
	Number          string
	Type            model.OrderType
	Items           []model.LineItem
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	CustomerNotes   string
	PaymentMethod   string
	ZoneID          string
}

// SubmitOrder проверяет заказ, рассчитывает суммы на стороне сервера,
// сохраняет заказ и начисляет штампы карты фидельности. Повторная отправка
// с тем же номером заказа не создаёт дубликат.
func (s *Service) SubmitOrder(ctx context.Context, sub OrderSubmission) (*model.Order, error) {
	if sub.CustomerName == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if !validation.IsValidPhoneNumber(sub.CustomerPhone) {
		return nil, fmt.Errorf("%w: invalid phone number", ErrValidation)
	}
	if sub.Type == model.OrderTypeUnset {
		return nil, fmt.Errorf("%w: order type is required", ErrValidation)
	}
	if sub.Type == model.OrderTypeDelivery {
		if sub.CustomerAddress == "" {
			return nil, fmt.Errorf("%w: delivery address is required", ErrValidation)
		}
		if sub.ZoneID == "" {
			return nil, fmt.Errorf("%w: delivery zone is required", ErrValidation)
		}
	}

	quote, err := s.QuoteOrder(ctx, sub.Items, sub.Type, sub.ZoneID)
	if err != nil {
		return nil, err
	}

	number := sub.Number
	if number == "" {
		number = s.generateOrderNumber()
	}

	paymentMethod := sub.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "cb"
	}

	order := &model.Order{
		Number:           number,
		Type:             sub.Type,
		Status:           model.OrderStatusPending,
		CustomerName:     sub.CustomerName,
		CustomerPhone:    validation.NormalizePhoneNumber(sub.CustomerPhone),
		CustomerAddress:  sub.CustomerAddress,
		CustomerNotes:    sub.CustomerNotes,
		PaymentMethod:    paymentMethod,
		ZoneID:           sub.ZoneID,
		Items:            sub.Items,
		SubtotalCents:    quote.SubtotalCents,
		TVACents:         quote.TVACents,
		DeliveryFeeCents: quote.DeliveryFeeCents,
		TotalCents:       quote.TotalCents,
		PromoDescription: quote.Promo.Description,
		FreePizzas:       quote.Promo.FreePizzas,
		StampsEarned:     quote.StampsEarned,
		CreatedAt:        s.now(),
	}

	inserted, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Повторная отправка: возвращаем сохранённый заказ, штампы не начислялись.
		return s.repo.GetOrderByNumber(ctx, number)
	}

	return order, nil
}

func (s *Service) generateOrderNumber() string {
	dateStr := s.now().Format("20060102")
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("%s%s-%s", s.orderPrefix, dateStr, suffix)
}

// GetOrder возвращает заказ по номеру.
func (s *Service) GetOrder(ctx context.Context, number string) (*model.Order, error) {
	return s.repo.GetOrderByNumber(ctx, number)
}

// ListOrders возвращает последние заказы для кухонной панели.
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListOrders(ctx, status, limit)
}

// UpdateOrderStatus изменяет статус заказа.
func (s *Service) UpdateOrderStatus(ctx context.Context, number string, status model.OrderStatus) error {
	if !status.Valid() || status == "" {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.UpdateOrderStatus(ctx, number, status)
}

// GetLoyaltyProgress возвращает состояние карты фидельности покупателя.
func (s *Service) GetLoyaltyProgress(ctx context.Context, phone string) (*model.LoyaltyProgress, error) {
	normalized := validation.NormalizePhoneNumber(phone)
	if normalized == "" {
		return nil, fmt.Errorf("%w: invalid phone number", ErrValidation)
	}

	acc, err := s.repo.GetLoyaltyAccount(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrLoyaltyNotFound) {
			// Карты ещё нет: пустой прогресс вместо ошибки.
			progress := loyalty.Progress(model.LoyaltyAccount{}, s.loyaltyCfg)
			return &progress, nil
		}
		return nil, err
	}

	progress := loyalty.Progress(*acc, s.loyaltyCfg)
	return &progress, nil
}

// RedeemFreeItem списывает одну доступную бесплатную позицию с карты покупателя.
func (s *Service) RedeemFreeItem(ctx context.Context, phone string) error {
	normalized := validation.NormalizePhoneNumber(phone)
	if normalized == "" {
		return fmt.Errorf("%w: invalid phone number", ErrValidation)
	}
	return s.repo.RedeemFreeItem(ctx, normalized, s.loyaltyCfg.StampsPerFreeItem)
}

// StartNotificationUpdates запускает фоновый процесс отправки уведомлений о заказах.
func (s *Service) StartNotificationUpdates(ctx context.Context) {
	if s.notifier == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processNotificationBatch(ctx)
			}
		}
	}()
}

func (s *Service) processNotificationBatch(ctx context.Context) {
	orders, err := s.repo.GetOrdersForNotification(ctx, 100)
	if err != nil {
		s.logger.Error("select orders for notification", zap.Error(err))
		return
	}

	for _, o := range orders {
		statusCode, retryAfter, err := s.notifier.SendOrderNotification(ctx, notifier.OrderNotification{
			Order:         o.Number,
			CustomerName:  o.CustomerName,
			CustomerPhone: o.CustomerPhone,
			OrderType:     string(o.Type),
			Total:         float64(o.TotalCents) / 100,
		})
		if err != nil {
			s.logger.Warn("send order notification", zap.Error(err), zap.String("order", o.Number))
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if err := s.repo.MarkOrderNotified(ctx, o.Number); err != nil {
			s.logger.Error("mark order notified", zap.Error(err), zap.String("order", o.Number))
		}
	}
}
