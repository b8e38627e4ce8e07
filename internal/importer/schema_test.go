package importer

import (
	"strings"
	"testing"
)

func TestValidateSchemaAcceptsWellFormedPayload(t *testing.T) {
	result := ValidateSchema(rawPayload(t, `{
		"customers": [{"name": "Mya", "phone": "0812-1111-2222"}],
		"items": [{"name": "Kopi Sachet", "price_cents": 2600, "stock": 10}],
		"price_tiers": [{"item_name": "Kopi Sachet", "min_qty": 12, "price_cents": 2400}],
		"transactions": [{"total_cents": 5200, "lines": [{"item_name": "Kopi Sachet", "qty": 2}]}]
	}`))

	if !result.IsValid {
		t.Fatalf("expected valid payload, got errors: %+v", result.Errors)
	}
}

func TestValidateSchemaIgnoresUnknownCollections(t *testing.T) {
	result := ValidateSchema(rawPayload(t, `{
		"customers": [{"name": "Mya"}],
		"loyalty_points": [{"whatever": true}]
	}`))

	if !result.IsValid {
		t.Fatalf("unknown collections must pass through, got errors: %+v", result.Errors)
	}
}

func TestValidateSchemaReportsAllViolationsAtOnce(t *testing.T) {
	result := ValidateSchema(rawPayload(t, `{
		"customers": [{"name": ""}, {"phone": "0812"}],
		"items": [{"name": "Gula", "price_cents": "cheap"}],
		"movements": {"item_name": "Gula"}
	}`))

	if result.IsValid {
		t.Fatalf("expected schema failure")
	}
	if len(result.Errors) < 4 {
		t.Fatalf("expected every violation reported, got %+v", result.Errors)
	}
	for _, fieldErr := range result.Errors {
		if !strings.HasPrefix(fieldErr.Path, "/") {
			t.Fatalf("error paths must be JSON pointers, got %q", fieldErr.Path)
		}
		if fieldErr.Message == "" {
			t.Fatalf("error %q has no message", fieldErr.Path)
		}
	}
}

func TestValidateSchemaRejectsNilPayload(t *testing.T) {
	result := ValidateSchema(nil)
	if result.IsValid || len(result.Errors) != 1 {
		t.Fatalf("nil payload must fail with one error, got %+v", result)
	}
}

func TestValidateSchemaLocatesBadRecord(t *testing.T) {
	result := ValidateSchema(rawPayload(t, `{
		"customers": [{"name": "Mya"}, {"name": 42}]
	}`))

	if result.IsValid {
		t.Fatalf("expected schema failure")
	}
	found := false
	for _, fieldErr := range result.Errors {
		if strings.HasPrefix(fieldErr.Path, "/customers/1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error located at /customers/1, got %+v", result.Errors)
	}
}
