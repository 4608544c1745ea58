package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"balikin/backend/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestFindProductByBarcodeSendsSessionScope(t *testing.T) {
	var gotReq domain.ProductLookupRequest
	var gotAuth string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(domain.ProductLookupResponse{
			Products: []domain.Product{{ID: 7, DisplayName: "Teh Celup", ListPrice: 9800, Barcode: "8991002107890"}},
		})
	})

	c := New(server.URL, "tok", 3, 5)
	product, err := c.FindProductByBarcode(context.Background(), "8991002107890")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if product == nil || product.ID != 7 {
		t.Fatalf("unexpected product: %+v", product)
	}
	if gotReq.SessionID != 3 || gotReq.ConfigID != 5 || gotReq.Barcode != "8991002107890" {
		t.Fatalf("request missing session scope: %+v", gotReq)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestFindProductByBarcodeMissIsNil(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.ProductLookupResponse{Products: []domain.Product{}})
	})

	c := New(server.URL, "", 1, 1)
	product, err := c.FindProductByBarcode(context.Background(), "nope")
	if err != nil {
		t.Fatalf("a miss must not be an error: %v", err)
	}
	if product != nil {
		t.Fatalf("expected nil product, got %+v", product)
	}
}

func TestGetPartnerTicketsQueriesCustomerID(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("customer_id"); got != "11" {
			t.Errorf("customer_id = %q", got)
		}
		_ = json.NewEncoder(w).Encode(domain.PartnerTicketsResponse{
			Tickets: []domain.Ticket{{ID: 101, TicketRef: "T-1001", CustomerID: 11}},
		})
	})

	c := New(server.URL, "", 1, 1)
	tickets, err := c.GetPartnerTickets(context.Background(), 11)
	if err != nil {
		t.Fatalf("ticket retrieval failed: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != 101 {
		t.Fatalf("unexpected tickets: %+v", tickets)
	}
}

func TestCreateReturnPassesStructuredFailureThrough(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.CreateReturnResult{Success: false, Error: "stock mismatch"})
	})

	c := New(server.URL, "", 1, 1)
	result, err := c.CreateReturn(context.Background(), domain.CreateReturnRequest{TicketRef: "T-1"})
	if err != nil {
		t.Fatalf("structured failure must not be a transport error: %v", err)
	}
	if result.Success || result.Error != "stock mismatch" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreateReturnFillsDefaultSession(t *testing.T) {
	var gotReq domain.CreateReturnRequest
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(domain.CreateReturnResult{Success: true, PickingName: "RET/IN/1"})
	})

	c := New(server.URL, "", 9, 1)
	if _, err := c.CreateReturn(context.Background(), domain.CreateReturnRequest{TicketRef: "T-1"}); err != nil {
		t.Fatalf("create return failed: %v", err)
	}
	if gotReq.SessionID != 9 {
		t.Fatalf("session id not defaulted: %+v", gotReq)
	}
}

func TestServerErrorSurfacesMessage(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing bearer token"})
	})

	c := New(server.URL, "", 1, 1)
	_, err := c.GetPartnerTickets(context.Background(), 11)
	if err == nil {
		t.Fatalf("expected an error for a 401 response")
	}
	if got := err.Error(); got != "server: missing bearer token" {
		t.Fatalf("error = %q", got)
	}
}

func TestLoginStoresToken(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			_ = json.NewEncoder(w).Encode(domain.LoginResponse{AccessToken: "fresh", Role: "cashier"})
		default:
			if r.Header.Get("Authorization") != "Bearer fresh" {
				t.Errorf("token not carried forward: %q", r.Header.Get("Authorization"))
			}
			_ = json.NewEncoder(w).Encode(domain.PartnerTicketsResponse{})
		}
	})

	c := New(server.URL, "", 1, 1)
	if _, err := c.Login(context.Background(), "cashier", "cashier123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := c.GetPartnerTickets(context.Background(), 11); err != nil {
		t.Fatalf("follow-up call failed: %v", err)
	}
}
