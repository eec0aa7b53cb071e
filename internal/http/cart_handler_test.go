package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
)

type mockCartService struct {
	snap    *domain.CartSnapshot
	qty     int
	outcome domain.SetOutcome
	removed bool
	err     error

	lastUserRef string
	lastSKU     string
	lastQty     int
}

func (m *mockCartService) Snapshot(_ context.Context, userRef string) (*domain.CartSnapshot, error) {
	m.lastUserRef = userRef
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

func (m *mockCartService) AddItem(_ context.Context, userRef, sku string, qty int) (int, error) {
	m.lastUserRef, m.lastSKU, m.lastQty = userRef, sku, qty
	if m.err != nil {
		return 0, m.err
	}
	return m.qty, nil
}

func (m *mockCartService) SetItem(_ context.Context, userRef, sku string, qty int) (domain.SetOutcome, error) {
	m.lastUserRef, m.lastSKU, m.lastQty = userRef, sku, qty
	if m.err != nil {
		return "", m.err
	}
	return m.outcome, nil
}

func (m *mockCartService) RemoveItem(_ context.Context, userRef, sku string) (bool, error) {
	m.lastUserRef, m.lastSKU = userRef, sku
	if m.err != nil {
		return false, m.err
	}
	return m.removed, nil
}

func newCartRouter(svc CartService) *chi.Mux {
	h := NewCartHandler(svc, 5*time.Second)
	r := chi.NewRouter()
	r.Use(IdentityMiddleware)
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{sku}", h.SetItem)
		r.Delete("/items/{sku}", h.RemoveItem)
	})
	return r
}

func emptySnapshot() *domain.CartSnapshot {
	return &domain.CartSnapshot{
		Items:         []domain.SnapshotItem{},
		Subtotal:      decimal.Zero,
		Currency:      "INR",
		Normalization: "",
		Signature:     "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}
}

func TestGetCart_DefaultsToGuest(t *testing.T) {
	svc := &mockCartService{snap: emptySnapshot()}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if svc.lastUserRef != "guest" {
		t.Errorf("Expected user ref 'guest', got %q", svc.lastUserRef)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["signature"] != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Unexpected signature: %v", body["signature"])
	}
}

func TestGetCart_UsesHeaderIdentity(t *testing.T) {
	svc := &mockCartService{snap: emptySnapshot()}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(HeaderUserID, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if svc.lastUserRef != "alice" {
		t.Errorf("Expected user ref 'alice', got %q", svc.lastUserRef)
	}
}

func TestAddItem_Success(t *testing.T) {
	svc := &mockCartService{qty: 5}
	router := newCartRouter(svc)

	body := bytes.NewBufferString(`{"sku":"care-1","qty":3}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	req.Header.Set(HeaderUserID, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var resp ItemMutationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Detail != "added" {
		t.Errorf("Expected detail 'added', got %q", resp.Detail)
	}
	if resp.SKU != "care-1" || resp.Qty != 5 {
		t.Errorf("Unexpected response payload: %+v", resp)
	}
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing sku", `{"qty":1}`},
		{"zero qty", `{"sku":"care-1","qty":0}`},
		{"negative qty", `{"sku":"care-1","qty":-2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCartService{}
			router := newCartRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc := &mockCartService{err: repository.ErrProductNotFound}
	router := newCartRouter(svc)

	body := bytes.NewBufferString(`{"sku":"missing","qty":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestAddItem_StoreContention(t *testing.T) {
	svc := &mockCartService{err: repository.ErrStoreContention}
	router := newCartRouter(svc)

	body := bytes.NewBufferString(`{"sku":"care-1","qty":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestSetItem_Applied(t *testing.T) {
	svc := &mockCartService{outcome: domain.SetApplied}
	router := newCartRouter(svc)

	body := bytes.NewBufferString(`{"qty":4}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/care-1", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp ItemMutationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Detail != "set" || resp.SKU != "care-1" || resp.Qty != 4 {
		t.Errorf("Unexpected response payload: %+v", resp)
	}
	if svc.lastQty != 4 {
		t.Errorf("Expected qty 4 passed to service, got %d", svc.lastQty)
	}
}

func TestSetItem_ZeroOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    domain.SetOutcome
		wantDetail string
	}{
		{"deletes existing line", domain.SetDeleted, "deleted"},
		{"no-op on absent line", domain.SetNoop, "no-op"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCartService{outcome: tt.outcome}
			router := newCartRouter(svc)

			body := bytes.NewBufferString(`{"qty":0}`)
			req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/care-1", body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			var resp ItemMutationResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if resp.Detail != tt.wantDetail {
				t.Errorf("Expected detail %q, got %q", tt.wantDetail, resp.Detail)
			}
			if resp.SKU != "" {
				t.Errorf("Expected sku omitted for %q, got %q", tt.wantDetail, resp.SKU)
			}
		})
	}
}

func TestSetItem_QtyRequired(t *testing.T) {
	svc := &mockCartService{}
	router := newCartRouter(svc)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/care-1", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSetItem_NegativeQty(t *testing.T) {
	svc := &mockCartService{}
	router := newCartRouter(svc)

	body := bytes.NewBufferString(`{"qty":-1}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/care-1", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestRemoveItem_Removed(t *testing.T) {
	svc := &mockCartService{removed: true}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/care-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
}

func TestRemoveItem_NotInCart(t *testing.T) {
	svc := &mockCartService{removed: false}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/care-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetCart_InternalError(t *testing.T) {
	svc := &mockCartService{err: errors.New("boom")}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}
