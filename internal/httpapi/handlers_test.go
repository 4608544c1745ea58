package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"balikin/backend/internal/domain"
	"balikin/backend/internal/service"
	"balikin/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, time.Minute, 1)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, api *API, username, password string) string {
	t.Helper()
	resp, err := api.auth.Login(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "cashier",
		"password": "cashier123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "cashier",
		"password": "wrongpassword",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute per client address.
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "cashier",
			"password": "badpass",
		})
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the sixth attempt, got %d", last.Code)
	}
}

func TestProductLookupRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/session/products/lookup", "", domain.ProductLookupRequest{Barcode: "8991002101234"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestProductLookupFound(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/session/products/lookup", token, domain.ProductLookupRequest{
		SessionID: 1,
		Barcode:   "8991002101234",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.ProductLookupResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].ID != 1 {
		t.Fatalf("unexpected lookup response: %+v", body)
	}
}

func TestProductLookupMissIsEmptyList(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/session/products/lookup", token, domain.ProductLookupRequest{Barcode: "does-not-exist"})
	if rec.Code != http.StatusOK {
		t.Fatalf("a miss should still be 200, got %d", rec.Code)
	}

	var body domain.ProductLookupResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 0 {
		t.Fatalf("expected an empty product list, got %+v", body.Products)
	}
}

func TestPartnerTicketsRequiresCustomerID(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/session/partner-tickets", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without customer_id, got %d", rec.Code)
	}
}

func TestPartnerTicketsReturnsRemaining(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/session/partner-tickets?customer_id=11", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.PartnerTicketsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(body.Tickets))
	}
	for _, ticket := range body.Tickets {
		for _, line := range ticket.Lines {
			if line.RemainingQty == nil {
				t.Fatalf("ticket %d line %d missing remaining_qty", ticket.ID, line.ProductID)
			}
		}
	}
}

func TestCreateReturnEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/session/returns", token, domain.CreateReturnRequest{
		SessionID:  1,
		TicketRef:  "T-1001",
		ReturnMode: domain.ReturnModeTicket,
		TicketID:   101,
		CustomerID: 11,
		Lines:      []domain.ReturnLine{{ProductID: 1, Quantity: 1, PriceUnit: 3500}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result domain.CreateReturnResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !result.Success || result.PickingName == "" {
		t.Fatalf("unexpected result: %+v", result)
	}

	listRec := doJSON(t, handler, http.MethodGet, "/api/v1/session/returns?session_id=1", token, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list returns failed: %d", listRec.Code)
	}
	var listing struct {
		Returns []domain.ReturnRecord `json:"returns"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Returns) != 1 || listing.Returns[0].ProcessedBy != "cashier" {
		t.Fatalf("unexpected listing: %+v", listing.Returns)
	}
}

func TestCreateReturnBusinessFailureIs200(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/session/returns", token, domain.CreateReturnRequest{
		TicketRef:  "T-1001",
		ReturnMode: domain.ReturnModeTicket,
		TicketID:   101,
		Lines:      []domain.ReturnLine{{ProductID: 1, Quantity: 99, PriceUnit: 3500}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("business failures ride in the body, got status %d", rec.Code)
	}

	var result domain.CreateReturnResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Fatalf("expected a structured failure, got %+v", result)
	}
}

func TestCreateReturnRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/session/returns", token, map[string]any{
		"ticket_ref": "T-1",
		"surprise":   true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown fields, got %d", rec.Code)
	}
}

func TestCashierManagementIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cashierToken := loginToken(t, api, "cashier", "cashier123")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users/cashiers", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier role, got %d", rec.Code)
	}

	adminToken := loginToken(t, api, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", adminToken, domain.CashierCreateRequest{
		Username: "kasir2",
		Password: "rahasia1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/cashiers", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listing struct {
		Cashiers []domain.CashierUser `json:"cashiers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Cashiers) != 2 {
		t.Fatalf("expected seeded cashier plus the new one, got %+v", listing.Cashiers)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api.Handler(), http.MethodDelete, "/api/v1/session/partner-tickets?customer_id=11", token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
