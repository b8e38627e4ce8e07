package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/store"
)

func TestInsertAndListCustomersKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, name := range []string{"Citra", "Aman", "Bima"} {
		err := s.InsertCustomer(ctx, domain.Customer{
			ID:        "cust-" + name,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	customers, err := s.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(customers) != 3 {
		t.Fatalf("expected 3 customers, got %d", len(customers))
	}
	for i, want := range []string{"Citra", "Aman", "Bima"} {
		if customers[i].Name != want {
			t.Fatalf("expected insertion order, got %+v", customers)
		}
	}
}

func TestInsertDuplicateIDReturnsConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := domain.CatalogItem{ID: "item-1", Name: "Gula", Active: true}

	if err := s.InsertItem(ctx, item); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertItem(ctx, item); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInsertWithoutIDReturnsInvalidRecord(t *testing.T) {
	s := New()
	err := s.InsertSupplier(context.Background(), domain.Supplier{Name: "PT Maju"})
	if !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestUpdateMissingRecordReturnsNotFound(t *testing.T) {
	s := New()
	err := s.UpdateCustomer(context.Background(), domain.Customer{ID: "cust-x", Name: "Ghost"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetItemByNameIsCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.InsertItem(ctx, domain.CatalogItem{ID: "item-1", Name: "Kopi Sachet", Active: true}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	item, err := s.GetItemByName(ctx, "kopi sachet")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if item.ID != "item-1" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestInTransactionRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.InsertCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Budi"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	failed := errors.New("boom")
	err := s.InTransaction(ctx, func(repo store.Repository) error {
		if err := repo.InsertCustomer(ctx, domain.Customer{ID: "cust-2", Name: "Siti"}); err != nil {
			return err
		}
		if err := repo.UpdateCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Budi Santoso"}); err != nil {
			return err
		}
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("expected fn error returned, got %v", err)
	}

	customers, _ := s.ListCustomers(ctx)
	if len(customers) != 1 {
		t.Fatalf("rolled-back insert must not be visible: %+v", customers)
	}
	if customers[0].Name != "Budi" {
		t.Fatalf("rolled-back update must not be visible: %+v", customers)
	}
}

func TestInTransactionCommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.InTransaction(ctx, func(repo store.Repository) error {
		return repo.InsertSupplier(ctx, domain.Supplier{ID: "sup-1", Name: "PT Maju"})
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	suppliers, _ := s.ListSuppliers(ctx)
	if len(suppliers) != 1 {
		t.Fatalf("committed insert must be visible")
	}
}

func TestFailHookForcesWriteErrors(t *testing.T) {
	s := New()
	ctx := context.Background()
	hookErr := errors.New("injected")
	s.SetFailHook(func(op, entityType, key string) error {
		if entityType == "items" {
			return hookErr
		}
		return nil
	})

	if err := s.InsertItem(ctx, domain.CatalogItem{ID: "item-1", Name: "Gula"}); !errors.Is(err, hookErr) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := s.InsertCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Budi"}); err != nil {
		t.Fatalf("other entities must not be affected: %v", err)
	}

	s.SetFailHook(nil)
	if err := s.InsertItem(ctx, domain.CatalogItem{ID: "item-1", Name: "Gula"}); err != nil {
		t.Fatalf("cleared hook must stop failing: %v", err)
	}
}

func TestShopProfileLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetShopProfile(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	profile := domain.ShopProfile{ID: "shop-1", Name: "Toko Berkah", Currency: "IDR", TaxRatePercent: 11}
	if err := s.InsertShopProfile(ctx, profile); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertShopProfile(ctx, profile); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on second profile, got %v", err)
	}

	profile.Name = "Toko Berkah Jaya"
	if err := s.UpdateShopProfile(ctx, profile); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetShopProfile(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Toko Berkah Jaya" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestAuditLogsReturnNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		err := s.CreateAuditLog(ctx, domain.AuditLog{
			ID:        "audit-" + string(rune('a'+i)),
			Action:    "import_commit",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	logs, err := s.ListAuditLogs(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("limit not honored: %d", len(logs))
	}
	if !logs[0].CreatedAt.After(logs[1].CreatedAt) {
		t.Fatalf("expected newest first, got %+v", logs)
	}
}

func TestSeededStoreHasUsersAndCatalog(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	roles := map[string]bool{}
	for _, u := range users {
		roles[u.Role] = true
	}
	if !roles["admin"] || !roles["operator"] {
		t.Fatalf("expected seeded admin and operator accounts, got %+v", users)
	}

	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected seeded catalog items")
	}
	if _, err := s.GetShopProfile(ctx); err != nil {
		t.Fatalf("expected seeded shop profile: %v", err)
	}
}
