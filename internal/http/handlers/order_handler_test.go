package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/http/middleware"
	"github.com/tbourn/go-pickup-backend/internal/services"
)

func orderDetails(id string, status domain.OrderStatus) *services.OrderDetails {
	return &services.OrderDetails{
		Order:         &domain.Order{ID: id, Status: status, Currency: "USD"},
		Buyer:         services.Party{ID: "u1", DisplayName: "Ann"},
		Vendor:        services.Party{ID: "v1", DisplayName: "Tacos"},
		StatusMessage: "Order placed",
	}
}

func validOrderBody() map[string]any {
	return map[string]any{
		"vendor_id":   " v1 ",
		"items":       []map[string]any{{"dish_id": "d1", "quantity": 2, "special_instructions": " no onions "}},
		"pickup_time": time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC).Format(time.RFC3339),
		"tip_cents":   150,
	}
}

func TestCreateOrder_Created(t *testing.T) {
	var gotID domain.Identity
	var gotIn services.CreateOrderInput
	h := New(stubOrders{create: func(id domain.Identity, in services.CreateOrderInput) (*services.OrderDetails, error) {
		gotID, gotIn = id, in
		return orderDetails("o1", domain.StatusPending), nil
	}}, nil, nil, nil)
	r := newTestRouter(h)

	w := do(t, r, http.MethodPost, "/orders", validOrderBody(), asGuest("guest_1_abc"), withKey("k-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("fresh create must not be marked as replay")
	}
	if gotID != domain.GuestIdentity("guest_1_abc") {
		t.Fatalf("identity = %+v", gotID)
	}
	if gotIn.VendorID != "v1" || gotIn.IdempotencyKey != "k-1" || gotIn.TipCents != 150 ||
		len(gotIn.Items) != 1 || gotIn.Items[0].Quantity != 2 || gotIn.Items[0].SpecialInstructions != "no onions" {
		t.Fatalf("input = %+v", gotIn)
	}
	if !gotIn.PickupTime.Equal(time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("pickup time = %v", gotIn.PickupTime)
	}

	var out services.OrderDetails
	decodeData(t, w, &out)
	if out.Order == nil || out.Order.ID != "o1" || out.Vendor.DisplayName != "Tacos" {
		t.Fatalf("data = %+v", out)
	}
}

func TestCreateOrder_Replay_200(t *testing.T) {
	h := New(stubOrders{create: func(domain.Identity, services.CreateOrderInput) (*services.OrderDetails, error) {
		return orderDetails("o1", domain.StatusPending), nil
	}}, nil, nil, nil)
	r := newTestRouter(h)

	w := do(t, r, http.MethodPost, "/orders", validOrderBody(), asUser("u1"), withKey("replay-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("expected replay header")
	}
}

func TestCreateOrder_BadPayload(t *testing.T) {
	called := false
	h := New(stubOrders{create: func(domain.Identity, services.CreateOrderInput) (*services.OrderDetails, error) {
		called = true
		return nil, nil
	}}, nil, nil, nil)
	r := newTestRouter(h)

	bodies := map[string]any{
		"not json":       "{",
		"no items":       map[string]any{"vendor_id": "v1", "items": []any{}, "pickup_time": "2026-01-02T12:30:00Z"},
		"zero quantity":  map[string]any{"vendor_id": "v1", "items": []map[string]any{{"dish_id": "d1", "quantity": 0}}, "pickup_time": "2026-01-02T12:30:00Z"},
		"missing vendor": map[string]any{"items": []map[string]any{{"dish_id": "d1", "quantity": 1}}, "pickup_time": "2026-01-02T12:30:00Z"},
		"negative tip":   map[string]any{"vendor_id": "v1", "items": []map[string]any{{"dish_id": "d1", "quantity": 1}}, "pickup_time": "2026-01-02T12:30:00Z", "tip_cents": -1},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/orders", body, asUser("u1"), withKey("k"))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			if er := decodeError(t, w); er.Code != ErrCodeBadRequest || er.RequestID == "" {
				t.Fatalf("error = %+v", er)
			}
		})
	}
	if called {
		t.Fatalf("service must not be called for bad payloads")
	}
}

func TestCreateOrder_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"vendor missing", services.ErrVendorNotFound, http.StatusNotFound, apperr.CodeVendorNotFound},
		{"too soon", services.ErrPickupTimeTooSoon.WithDetail("min_lead_minutes", 15), http.StatusUnprocessableEntity, apperr.CodePickupTimeTooSoon},
		{"in progress", services.ErrRequestInProgress, http.StatusConflict, apperr.CodeRequestInProgress},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(stubOrders{create: func(domain.Identity, services.CreateOrderInput) (*services.OrderDetails, error) {
				return nil, tc.err
			}}, nil, nil, nil)
			w := do(t, newTestRouter(h), http.MethodPost, "/orders", validOrderBody(), asUser("u1"), withKey("k"))
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			er := decodeError(t, w)
			if er.Code != tc.code || er.Success {
				t.Fatalf("error = %+v", er)
			}
			if tc.code == apperr.CodeInternal && er.Message != apperr.Internal.Message {
				t.Fatalf("internal error text leaked: %q", er.Message)
			}
			if tc.code == apperr.CodeRequestInProgress && !er.Retryable {
				t.Fatalf("in-progress must be retryable")
			}
			if tc.code == apperr.CodePickupTimeTooSoon && er.Details["min_lead_minutes"] != float64(15) {
				t.Fatalf("details = %v", er.Details)
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	h := New(stubOrders{get: func(id domain.Identity, orderID string) (*services.OrderDetails, error) {
		if orderID == "missing" {
			return nil, services.ErrOrderNotFound
		}
		if id.UserID != "u1" {
			return nil, services.ErrForbidden
		}
		return orderDetails(orderID, domain.StatusReady), nil
	}}, nil, nil, nil)
	r := newTestRouter(h)

	w := do(t, r, http.MethodGet, "/orders/o7", nil, asUser("u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out services.OrderDetails
	decodeData(t, w, &out)
	if out.Order.ID != "o7" || out.Order.Status != domain.StatusReady {
		t.Fatalf("data = %+v", out.Order)
	}

	if w := do(t, r, http.MethodGet, "/orders/o7", nil, asUser("u2")); w.Code != http.StatusForbidden {
		t.Fatalf("stranger: status=%d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/orders/missing", nil, asUser("u1")); w.Code != http.StatusNotFound {
		t.Fatalf("missing: status=%d", w.Code)
	}
}

func TestChangeOrderStatus(t *testing.T) {
	var gotOrder string
	var gotIn services.ChangeStatusInput
	h := New(stubOrders{change: func(_ domain.Identity, orderID string, in services.ChangeStatusInput) (*services.OrderDetails, error) {
		gotOrder, gotIn = orderID, in
		if in.Status == domain.StatusPickedUp && in.PickupCode != "123456" {
			return nil, services.ErrInvalidPickupCode
		}
		if in.Status == domain.StatusCompleted {
			return nil, services.ErrInvalidTransition.WithDetail("allowed", []string{"preparing", "cancelled"})
		}
		return orderDetails(orderID, in.Status), nil
	}}, nil, nil, nil)
	r := newTestRouter(h)

	w := do(t, r, http.MethodPost, "/orders/o1/status", map[string]any{"status": " Confirmed "}, asUser("v-owner"), withKey("s-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotOrder != "o1" || gotIn.Status != domain.StatusConfirmed || gotIn.IdempotencyKey != "s-1" {
		t.Fatalf("args: %q %+v", gotOrder, gotIn)
	}

	w = do(t, r, http.MethodPost, "/orders/o1/status", map[string]any{"status": "picked_up", "pickup_code": "000000"}, asUser("u1"))
	if w.Code != http.StatusUnprocessableEntity || decodeError(t, w).Code != apperr.CodeInvalidPickupCode {
		t.Fatalf("wrong code: status=%d body=%s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/orders/o1/status", map[string]any{"status": "completed"}, asUser("v-owner"))
	er := decodeError(t, w)
	if w.Code != http.StatusUnprocessableEntity || er.Code != apperr.CodeInvalidTransition {
		t.Fatalf("invalid transition: status=%d body=%s", w.Code, w.Body.String())
	}
	if allowed, ok := er.Details["allowed"].([]any); !ok || len(allowed) != 2 {
		t.Fatalf("allowed details = %v", er.Details)
	}

	w = do(t, r, http.MethodPost, "/orders/o1/status", map[string]any{"reason": "x"}, asUser("u1"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing status: %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/orders/o1/status", map[string]any{"status": "cancelled", "reason": "  changed my mind "}, asUser("u1"))
	if w.Code != http.StatusOK || gotIn.Reason != "changed my mind" {
		t.Fatalf("cancel: status=%d reason=%q", w.Code, gotIn.Reason)
	}
}

func TestChangeOrderStatus_Conflict_Retryable(t *testing.T) {
	h := New(stubOrders{change: func(domain.Identity, string, services.ChangeStatusInput) (*services.OrderDetails, error) {
		return nil, services.ErrConcurrentModification
	}}, nil, nil, nil)
	w := do(t, newTestRouter(h), http.MethodPost, "/orders/o1/status", map[string]any{"status": "ready"}, asUser("v"))
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != apperr.CodeConcurrentModification || !er.Retryable {
		t.Fatalf("error = %+v", er)
	}
}

func TestGeneratePickupCode(t *testing.T) {
	exp := time.Date(2026, 1, 2, 13, 0, 0, 0, time.UTC)
	h := New(stubOrders{genPCode: func(id domain.Identity, orderID, key string) (*services.PickupCode, error) {
		if id.UserID != "vendor-user" {
			return nil, services.ErrForbidden
		}
		if key != "pc-1" {
			t.Fatalf("key = %q", key)
		}
		return &services.PickupCode{Code: "042917", ExpiresAt: exp}, nil
	}}, nil, nil, nil)
	r := newTestRouter(h)

	w := do(t, r, http.MethodPost, "/orders/o1/pickup-code", nil, asUser("vendor-user"), withKey("pc-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var pc services.PickupCode
	decodeData(t, w, &pc)
	if pc.Code != "042917" || !pc.ExpiresAt.Equal(exp) {
		t.Fatalf("code = %+v", pc)
	}

	if w := do(t, r, http.MethodPost, "/orders/o1/pickup-code", nil, asGuest("guest_1_x"), withKey("pc-1")); w.Code != http.StatusForbidden {
		t.Fatalf("buyer: status=%d", w.Code)
	}
}
