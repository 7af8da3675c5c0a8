package resale

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupHandlerTestRouter() (*gin.Engine, *fixture) {
	gin.SetMode(gin.TestMode)

	fx := newFixture()
	handler := NewHandler(fx.svc)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	return r, fx
}

func postJSON(router *gin.Engine, path, tenant string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_ExecuteResale_201(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := postJSON(router, "/v1/resales", "ten_1", Request{
		TicketID:       "tkt_1",
		EventID:        "evt_1",
		SellerID:       "usr_s",
		BuyerID:        "usr_b",
		RequestedPrice: 110,
		FaceValue:      100,
		EventStartTime: time.Now().Add(96 * time.Hour),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Validation struct {
			Allowed       bool `json:"allowed"`
			TransferCount int  `json:"transferCount"`
		} `json:"validation"`
		Record struct {
			ID             string `json:"id"`
			TransferNumber int    `json:"transferNumber"`
		} `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.Validation.Allowed {
		t.Error("Expected allowed=true")
	}
	if resp.Record.TransferNumber != 1 {
		t.Errorf("Expected transfer number 1, got %d", resp.Record.TransferNumber)
	}
}

func TestHandler_ExecuteResale_MissingTenant_400(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := postJSON(router, "/v1/resales", "", Request{
		TicketID: "tkt_1", EventID: "evt_1", SellerID: "usr_s", BuyerID: "usr_b",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestHandler_ExecuteResale_Rejected_422(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := postJSON(router, "/v1/resales", "ten_1", Request{
		TicketID:         "tkt_1",
		EventID:          "evt_1",
		SellerID:         "usr_s",
		BuyerID:          "usr_b",
		RequestedPrice:   150,
		FaceValue:        100,
		EventStartTime:   time.Now().Add(96 * time.Hour),
		JurisdictionCode: "US-CT",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Error != "resale_rejected" {
		t.Errorf("Expected error=resale_rejected, got %q", resp.Error)
	}
	if resp.Reason == "" {
		t.Error("Expected a rejection reason")
	}
}

func TestHandler_ValidateResale_200(t *testing.T) {
	router, fx := setupHandlerTestRouter()

	w := postJSON(router, "/v1/resales/validate", "ten_1", Request{
		TicketID:       "tkt_1",
		EventID:        "evt_1",
		SellerID:       "usr_s",
		RequestedPrice: 110,
		FaceValue:      100,
		EventStartTime: time.Now().Add(96 * time.Hour),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Validation never writes to the history.
	count, err := fx.transfers.CountForTicket(context.Background(), "ten_1", "tkt_1")
	if err != nil {
		t.Fatalf("CountForTicket: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no recorded transfers, got %d", count)
	}
}

func TestHandler_ListTransfers_200(t *testing.T) {
	router, fx := setupHandlerTestRouter()

	for i := 0; i < 3; i++ {
		req := testRequest()
		req.TicketID = "tkt_hist"
		if _, err := fx.svc.Execute(context.Background(), "ten_1", req); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tickets/tkt_hist/transfers", nil)
	req.Header.Set(TenantHeader, "ten_1")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count     int `json:"count"`
		Transfers []struct {
			TransferNumber int `json:"transferNumber"`
		} `json:"transfers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Count != 3 {
		t.Fatalf("Expected 3 transfers, got %d", resp.Count)
	}
	for i, tr := range resp.Transfers {
		if tr.TransferNumber != i+1 {
			t.Errorf("Transfer %d has number %d", i, tr.TransferNumber)
		}
	}
}

func TestHandler_ListTransfers_Paginated(t *testing.T) {
	router, fx := setupHandlerTestRouter()

	for i := 0; i < 3; i++ {
		req := testRequest()
		req.TicketID = "tkt_page"
		if _, err := fx.svc.Execute(context.Background(), "ten_1", req); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	get := func(path string) (int, struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
		Transfers  []struct {
			TransferNumber int `json:"transferNumber"`
		} `json:"transfers"`
	}) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set(TenantHeader, "ten_1")
		router.ServeHTTP(w, req)
		var resp struct {
			Count      int    `json:"count"`
			NextCursor string `json:"next_cursor"`
			HasMore    bool   `json:"has_more"`
			Transfers  []struct {
				TransferNumber int `json:"transferNumber"`
			} `json:"transfers"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		return w.Code, resp
	}

	code, page1 := get("/v1/tickets/tkt_page/transfers?limit=2")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if page1.Count != 2 || !page1.HasMore || page1.NextCursor == "" {
		t.Fatalf("Expected a full first page with a cursor, got %+v", page1)
	}

	code, page2 := get("/v1/tickets/tkt_page/transfers?limit=2&cursor=" + page1.NextCursor)
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if page2.Count != 1 || page2.HasMore {
		t.Fatalf("Expected a final page of 1, got %+v", page2)
	}
	if page2.Transfers[0].TransferNumber != 3 {
		t.Errorf("Expected transfer number 3, got %d", page2.Transfers[0].TransferNumber)
	}
}

func TestHandler_GetScalpingScore_200(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/users/usr_1/scalping-score?eventId=evt_1", nil)
	req.Header.Set(TenantHeader, "ten_1")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RiskLevel      string `json:"riskLevel"`
		RequiresReview bool   `json:"requiresReview"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.RiskLevel != "low" {
		t.Errorf("Expected low risk for clean user, got %q", resp.RiskLevel)
	}
}

func TestHandler_GetScalpingScore_MissingEvent_400(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/users/usr_1/scalping-score", nil)
	req.Header.Set(TenantHeader, "ten_1")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestHandler_RunFraudCheck_200(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := postJSON(router, "/v1/fraud-checks", "ten_1", map[string]any{
		"ticketId":  "tkt_1",
		"sellerId":  "usr_s",
		"buyerId":   "usr_b",
		"price":     100.0,
		"faceValue": 100.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Action  string `json:"action"`
		Blocked bool   `json:"blocked"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Action != "allow" || resp.Blocked {
		t.Errorf("Expected allow/unblocked for clean sale, got %s/%v", resp.Action, resp.Blocked)
	}
}
