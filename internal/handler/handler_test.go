package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Six9one/twinbite-order-sub002/internal/middleware"
	"github.com/Six9one/twinbite-order-sub002/internal/model"
	"github.com/Six9one/twinbite-order-sub002/internal/repository"
	"github.com/Six9one/twinbite-order-sub002/internal/service"
)

type stubService struct {
	registerID  int64
	registerErr error

	authID  int64
	authErr error

	menu []model.MenuItem

	zones []model.DeliveryZone

	quote    *service.Quote
	quoteErr error

	order     *model.Order
	submitErr error

	orders   []model.Order
	getErr   error
	statusIn model.OrderStatus

	progress  *model.LoyaltyProgress
	redeemErr error
}

func (s *stubService) RegisterStaff(ctx context.Context, login, password string) (int64, error) {
	return s.registerID, s.registerErr
}

func (s *stubService) AuthenticateStaff(ctx context.Context, login, password string) (int64, error) {
	return s.authID, s.authErr
}

func (s *stubService) ListMenu(ctx context.Context, activeOnly bool) ([]model.MenuItem, error) {
	return s.menu, nil
}

func (s *stubService) CreateMenuItem(ctx context.Context, m model.MenuItem) (int64, error) {
	return 1, nil
}

func (s *stubService) UpdateMenuItem(ctx context.Context, m model.MenuItem) error { return nil }

func (s *stubService) DeleteMenuItem(ctx context.Context, id int64) error { return nil }

func (s *stubService) ListDeliveryZones(ctx context.Context) ([]model.DeliveryZone, error) {
	return s.zones, nil
}

func (s *stubService) QuoteOrder(ctx context.Context, items []model.LineItem, orderType model.OrderType, zoneID string) (*service.Quote, error) {
	return s.quote, s.quoteErr
}

func (s *stubService) SubmitOrder(ctx context.Context, sub service.OrderSubmission) (*model.Order, error) {
	return s.order, s.submitErr
}

func (s *stubService) GetOrder(ctx context.Context, number string) (*model.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.order, nil
}

func (s *stubService) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	s.statusIn = status
	return s.orders, nil
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, number string, status model.OrderStatus) error {
	s.statusIn = status
	return nil
}

func (s *stubService) GetLoyaltyProgress(ctx context.Context, phone string) (*model.LoyaltyProgress, error) {
	return s.progress, nil
}

func (s *stubService) RedeemFreeItem(ctx context.Context, phone string) error {
	return s.redeemErr
}

func newTestServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()

	auth := middleware.NewAuthMiddleware("test-secret")
	h := NewHandler(svc, zap.NewNop(), auth)

	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)

	return srv
}

func doJSON(t *testing.T, method, url string, body any, cookies []*http.Cookie) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		svc        *stubService
		wantStatus int
		wantCookie bool
	}{
		{
			name:       "success",
			body:       map[string]string{"login": "staff", "password": "pass"},
			svc:        &stubService{registerID: 1},
			wantStatus: http.StatusOK,
			wantCookie: true,
		},
		{
			name:       "duplicate login",
			body:       map[string]string{"login": "staff", "password": "pass"},
			svc:        &stubService{registerErr: repository.ErrUserExists},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "empty credentials",
			body:       map[string]string{"login": "", "password": ""},
			svc:        &stubService{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.svc)

			resp := doJSON(t, http.MethodPost, srv.URL+"/api/staff/register", tt.body, nil)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			hasCookie := false
			for _, c := range resp.Cookies() {
				if c.Name == "staff_token" {
					hasCookie = true
				}
			}
			if hasCookie != tt.wantCookie {
				t.Fatalf("auth cookie present = %v, want %v", hasCookie, tt.wantCookie)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := newTestServer(t, &stubService{authErr: service.ErrInvalidCredentials})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/staff/login",
		map[string]string{"login": "staff", "password": "wrong"}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetMenu(t *testing.T) {
	srv := newTestServer(t, &stubService{
		menu: []model.MenuItem{
			{ID: 1, Name: "Margherita", Category: "pizzas", Price: 18, Active: true},
		},
	})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/menu", nil, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var items []model.MenuItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Margherita" {
		t.Fatalf("unexpected menu: %+v", items)
	}
}

func TestQuoteOrder(t *testing.T) {
	srv := newTestServer(t, &stubService{
		quote: &service.Quote{
			Promo: model.PromoResult{
				OriginalCents:   5400,
				DiscountedCents: 3600,
				FreePizzas:      1,
				Description:     "2 achetées = 1 offerte (1 pizza offerte)",
			},
			SubtotalCents: 3600,
			TotalCents:    3600,
			HTCents:       3273,
			TVACents:      327,
			StampsEarned:  3,
		},
	})

	body := map[string]any{
		"order_type": "emporter",
		"items": []map[string]any{
			{"product_id": 1, "category": "pizzas", "quantity": 3, "customization": map[string]any{"size": "senior"}},
		},
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders/quote", body, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.DiscountedTotal != 36 {
		t.Fatalf("DiscountedTotal = %v, want 36", got.DiscountedTotal)
	}
	if got.FreePizzas != 1 {
		t.Fatalf("FreePizzas = %d, want 1", got.FreePizzas)
	}
	if got.HT != 32.73 || got.TVA != 3.27 {
		t.Fatalf("HT/TVA = %v/%v, want 32.73/3.27", got.HT, got.TVA)
	}
}

func TestQuoteOrder_ValidationError(t *testing.T) {
	srv := newTestServer(t, &stubService{quoteErr: service.ErrValidation})

	body := map[string]any{"order_type": "emporter", "items": []map[string]any{}}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders/quote", body, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitOrder(t *testing.T) {
	created := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, &stubService{
		order: &model.Order{
			Number:        "TW20250602-A1B2C3",
			Type:          model.OrderTypeTakeaway,
			Status:        model.OrderStatusPending,
			CustomerName:  "Alice",
			CustomerPhone: "0612345678",
			SubtotalCents: 3600,
			TotalCents:    3600,
			StampsEarned:  3,
			CreatedAt:     created,
		},
	})

	body := map[string]any{
		"order_type":     "emporter",
		"customer_name":  "Alice",
		"customer_phone": "0612345678",
		"items": []map[string]any{
			{"product_id": 1, "category": "pizzas", "quantity": 3, "customization": map[string]any{"size": "senior"}},
		},
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", body, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var got orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Number != "TW20250602-A1B2C3" {
		t.Fatalf("Number = %q", got.Number)
	}
	if got.Status != "pending" {
		t.Fatalf("Status = %q, want pending", got.Status)
	}
	if got.StampsEarned != 3 {
		t.Fatalf("StampsEarned = %d, want 3", got.StampsEarned)
	}
}

func TestStaffOrders_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/staff/orders", nil, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func authCookie(t *testing.T, srv *httptest.Server) *http.Cookie {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/staff/login",
		map[string]string{"login": "staff", "password": "pass"}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "staff_token" {
			return c
		}
	}
	t.Fatalf("auth cookie not set")
	return nil
}

func TestStaffOrders(t *testing.T) {
	svc := &stubService{
		authID: 1,
		orders: []model.Order{
			{Number: "TW1", Status: model.OrderStatusPending, CreatedAt: time.Now()},
		},
	}
	srv := newTestServer(t, svc)
	cookie := authCookie(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/staff/orders?status=pending", nil, []*http.Cookie{cookie})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if svc.statusIn != model.OrderStatusPending {
		t.Fatalf("status filter = %q, want pending", svc.statusIn)
	}

	var got []orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Number != "TW1" {
		t.Fatalf("unexpected orders: %+v", got)
	}
}

func TestStaffOrders_Empty(t *testing.T) {
	svc := &stubService{authID: 1}
	srv := newTestServer(t, svc)
	cookie := authCookie(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/staff/orders", nil, []*http.Cookie{cookie})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &stubService{authID: 1, getErr: repository.ErrOrderNotFound}
	srv := newTestServer(t, svc)
	cookie := authCookie(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/staff/orders/TW404", nil, []*http.Cookie{cookie})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	svc := &stubService{authID: 1}
	srv := newTestServer(t, svc)
	cookie := authCookie(t, srv)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/staff/orders/TW1/status",
		map[string]string{"status": "ready"}, []*http.Cookie{cookie})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if svc.statusIn != model.OrderStatusReady {
		t.Fatalf("status = %q, want ready", svc.statusIn)
	}
}

func TestGetLoyalty(t *testing.T) {
	srv := newTestServer(t, &stubService{
		progress: &model.LoyaltyProgress{Current: 7, Target: 10, FreeItemsEarned: 2, FreeItemsAvailable: 1},
	})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/loyalty/0612345678", nil, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got model.LoyaltyProgress
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Current != 7 || got.FreeItemsAvailable != 1 {
		t.Fatalf("unexpected progress: %+v", got)
	}
}

func TestRedeemLoyalty_NoReward(t *testing.T) {
	svc := &stubService{authID: 1, redeemErr: repository.ErrNoRewardAvailable}
	srv := newTestServer(t, svc)
	cookie := authCookie(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/staff/loyalty/0612345678/redeem", nil, []*http.Cookie{cookie})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestMenuItemRequest_PriceRounding(t *testing.T) {
	req := menuItemRequest{Name: "Tacos XL", Category: "tacos", Price: 19.99}

	if got := req.toModel().PriceCents; got != 1999 {
		t.Fatalf("PriceCents = %d, want 1999", got)
	}
}

func TestToLineItems_UnitPriceRounding(t *testing.T) {
	price := 5.55
	items := toLineItems([]lineItemRequest{{ProductID: 3, Category: "frites", Quantity: 1, UnitPrice: &price}})

	if len(items) != 1 || items[0].UnitPriceCents == nil {
		t.Fatalf("unit price not converted: %+v", items)
	}
	if *items[0].UnitPriceCents != 555 {
		t.Fatalf("UnitPriceCents = %d, want 555", *items[0].UnitPriceCents)
	}
}

func TestCreateMenuItem(t *testing.T) {
	svc := &stubService{authID: 1}
	srv := newTestServer(t, svc)
	cookie := authCookie(t, srv)

	body := map[string]any{"name": "Tacos XL", "category": "tacos", "price": 8.5}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/staff/menu", body, []*http.Cookie{cookie})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
}
