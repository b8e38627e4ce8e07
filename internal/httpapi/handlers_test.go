package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/importer"
	"tokosync/backend/internal/service"
	"tokosync/backend/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()
	for _, u := range []domain.UserAccount{
		{Username: "admin", Password: "admin-password", Role: "admin", Active: true, CreatedAt: time.Now().UTC()},
		{Username: "operator", Password: "operator-password", Role: "operator", Active: true, CreatedAt: time.Now().UTC()},
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	engine := importer.New(repo, nil)
	svc := service.New(repo, engine, nil, time.Minute, 50)
	auth := NewAuthManager(testSecret, time.Hour, repo)
	api := New(svc, auth, "http://localhost:5173")

	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)
	return server, repo
}

func loginAs(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}
	var decoded domain.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return decoded.AccessToken
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz returned %d", resp.StatusCode)
	}
}

func TestImportEndpointsRequireToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/validate", "", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestImportValidateReportsFieldErrors(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginAs(t, server, "operator", "operator-password")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/validate", token, map[string]any{
		"customers": []map[string]any{{"phone": "0812"}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate returned %d", resp.StatusCode)
	}

	var result importer.ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.IsValid || len(result.Errors) == 0 {
		t.Fatalf("expected validation errors, got %+v", result)
	}
}

func TestImportCommitForbiddenForOperator(t *testing.T) {
	server, repo := newTestServer(t)
	token := loginAs(t, server, "operator", "operator-password")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/commit", token, map[string]any{
		"file": map[string]any{
			"customers": []map[string]any{{"name": "Mya"}},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", resp.StatusCode)
	}

	customers, _ := repo.ListCustomers(context.Background())
	if len(customers) != 0 {
		t.Fatalf("forbidden commit must not write")
	}
}

func TestImportCommitAsAdmin(t *testing.T) {
	server, repo := newTestServer(t)
	token := loginAs(t, server, "admin", "admin-password")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/commit", token, map[string]any{
		"file": map[string]any{
			"customers": []map[string]any{{"name": "Mya"}},
			"items":     []map[string]any{{"name": "Gula 1kg", "price_cents": 15000}},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("commit returned %d", resp.StatusCode)
	}

	var result importer.ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.Totals.Imported != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	items, _ := repo.ListItems(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected item written, got %+v", items)
	}
}

func TestImportCommitRejectsBadSchema(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginAs(t, server, "admin", "admin-password")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/commit", token, map[string]any{
		"file": map[string]any{"customers": "not-an-array"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad schema, got %d", resp.StatusCode)
	}
}

func TestImportPreviewReturnsSummary(t *testing.T) {
	server, repo := newTestServer(t)
	if err := repo.InsertCustomer(context.Background(), domain.Customer{
		ID:   "cust-1700000000000000001-aaaaaaaaaaaaaaaa",
		Name: "Budi",
	}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	token := loginAs(t, server, "operator", "operator-password")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/preview", token, map[string]any{
		"customers": []map[string]any{{"name": "Budi"}, {"name": "Mya"}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview returned %d", resp.StatusCode)
	}

	var preview importer.PreviewResult
	if err := json.NewDecoder(resp.Body).Decode(&preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Summary.TotalConflicts != 1 {
		t.Fatalf("expected one duplicate conflict, got %+v", preview.Summary)
	}
}

func TestImportAvailabilityEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginAs(t, server, "operator", "operator-password")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/import/availability", token, map[string]any{
		"file":  map[string]any{"customers": []map[string]any{{"name": "Mya"}}},
		"scope": "items",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability returned %d", resp.StatusCode)
	}

	var result importer.AvailabilityResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.IsValid {
		t.Fatalf("requesting an absent collection must not be importable")
	}
	if len(result.AvailableTypes) != 1 || result.AvailableTypes[0] != importer.EntityCustomer {
		t.Fatalf("expected the file's actual types, got %+v", result.AvailableTypes)
	}
}

func TestEntityListingEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	if err := repo.InsertItem(context.Background(), domain.CatalogItem{
		ID: "item-1", Name: "Gula 1kg", Category: "grocery", Active: true,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	token := loginAs(t, server, "operator", "operator-password")

	resp := doJSON(t, server, http.MethodGet, "/api/v1/items", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("items returned %d", resp.StatusCode)
	}

	var decoded struct {
		Items []domain.CatalogItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(decoded.Items) != 1 || decoded.Items[0].Name != "Gula 1kg" {
		t.Fatalf("unexpected items: %+v", decoded.Items)
	}
}

func TestLoginRateLimit(t *testing.T) {
	server, _ := newTestServer(t)

	status := 0
	for i := 0; i < 7; i++ {
		resp := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "admin",
			"password": "wrong-password",
		})
		status = resp.StatusCode
		resp.Body.Close()
	}
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", status)
	}
}
