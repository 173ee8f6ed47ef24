package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"

	"pricingflow/pkg/logger"
	"pricingflow/pkg/markdown/memory"
	"pricingflow/pkg/pricing"
)

func newTestRouter() *mux.Router {
	logger.Init("dev")
	tracer = otel.Tracer("pricingflow-test")
	svc = pricing.New(memory.New())
	return newRouter()
}

func do(t *testing.T, r *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMarkdownCRUD(t *testing.T) {
	r := newTestRouter()

	rec := do(t, r, http.MethodPost, "/v1/pricing/markdowns", `{"type":"PERCENTAGE","percentage":50.0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/v1/pricing/markdowns/") {
		t.Fatalf("unexpected Location header %q", location)
	}

	rec = do(t, r, http.MethodGet, location, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var dto markdownDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Type != "PERCENTAGE" || dto.Percentage == nil || *dto.Percentage != 50.0 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/v1/pricing/markdowns", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Fatalf("list: expected JSON array, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodDelete, location, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodDelete, location, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestCreateMarkdownMissingConfiguration(t *testing.T) {
	r := newTestRouter()
	rec := do(t, r, http.MethodPost, "/v1/pricing/markdowns", `{"type":"COUNT"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateMarkdownTypeLock(t *testing.T) {
	r := newTestRouter()
	rec := do(t, r, http.MethodPost, "/v1/pricing/markdowns", `{"type":"DEFAULT"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")

	rec = do(t, r, http.MethodPatch, location, `{"type":"PERCENTAGE","percentage":10.0}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("type switch: expected 404, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, location, "")
	var dto markdownDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Type != "DEFAULT" {
		t.Fatalf("stored policy changed despite refused update: %s", dto.Type)
	}
}

func TestAssociationsUnknownMarkdown(t *testing.T) {
	r := newTestRouter()
	body := fmt.Sprintf(`["%s"]`, uuid.NewString())
	rec := do(t, r, http.MethodPost, "/v1/pricing/markdowns/"+uuid.NewString()+"/associations", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("associate: expected 404, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodDelete, "/v1/pricing/markdowns/"+uuid.NewString()+"/associations", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("dissociate: expected 404, got %d", rec.Code)
	}
}

func TestFinalPriceFlow(t *testing.T) {
	r := newTestRouter()
	productID := uuid.NewString()

	rec := do(t, r, http.MethodGet, "/v1/pricing/finalprice?productId="+productID+"&productPrice=1.0&quantity=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "10" {
		t.Fatalf("unassociated product: expected full price 10, got %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, "/v1/pricing/markdowns", `{"type":"PERCENTAGE","percentage":50.0}`)
	location := rec.Header().Get("Location")
	id := strings.TrimPrefix(location, "/v1/pricing/markdowns/")

	rec = do(t, r, http.MethodPost, "/v1/pricing/markdowns/"+id+"/associations", fmt.Sprintf(`["%s"]`, productID))
	if rec.Code != http.StatusOK {
		t.Fatalf("associate: expected 200, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/v1/pricing/finalprice?productId="+productID+"&productPrice=1.0&quantity=10", "")
	if strings.TrimSpace(rec.Body.String()) != "5" {
		t.Fatalf("associated product: expected 5, got %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodDelete, "/v1/pricing/markdowns/"+id+"/associations", fmt.Sprintf(`["%s"]`, productID))
	if rec.Code != http.StatusOK {
		t.Fatalf("dissociate: expected 200, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, "/v1/pricing/finalprice?productId="+productID+"&productPrice=1.0&quantity=10", "")
	if strings.TrimSpace(rec.Body.String()) != "10" {
		t.Fatalf("after dissociate: expected full price 10, got %s", rec.Body.String())
	}
}

func TestFinalPriceValidation(t *testing.T) {
	r := newTestRouter()
	cases := []string{
		"/v1/pricing/finalprice?productId=not-a-uuid&productPrice=1.0&quantity=10",
		"/v1/pricing/finalprice?productId=" + uuid.NewString() + "&productPrice=-1.0&quantity=10",
		"/v1/pricing/finalprice?productId=" + uuid.NewString() + "&productPrice=1.0&quantity=0",
		"/v1/pricing/finalprice?productId=" + uuid.NewString() + "&productPrice=abc&quantity=10",
	}
	for _, path := range cases {
		rec := do(t, r, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}
