package store

import (
	"context"
	"errors"

	"tokosync/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidRecord = errors.New("invalid record")
)

// Repository is the narrow persistence contract the import engine and the API
// layer depend on. Per entity type it offers list-all (index building),
// insert and update; InTransaction scopes a group of writes so they commit or
// roll back together.
type Repository interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	InsertCustomer(ctx context.Context, customer domain.Customer) error
	UpdateCustomer(ctx context.Context, customer domain.Customer) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	InsertSupplier(ctx context.Context, supplier domain.Supplier) error
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) error

	ListItems(ctx context.Context) ([]domain.CatalogItem, error)
	GetItemByID(ctx context.Context, id string) (*domain.CatalogItem, error)
	GetItemByName(ctx context.Context, name string) (*domain.CatalogItem, error)
	InsertItem(ctx context.Context, item domain.CatalogItem) error
	UpdateItem(ctx context.Context, item domain.CatalogItem) error

	ListPriceTiers(ctx context.Context) ([]domain.PriceTier, error)
	InsertPriceTier(ctx context.Context, tier domain.PriceTier) error
	UpdatePriceTier(ctx context.Context, tier domain.PriceTier) error

	ListMovements(ctx context.Context) ([]domain.InventoryMovement, error)
	InsertMovement(ctx context.Context, movement domain.InventoryMovement) error
	UpdateMovement(ctx context.Context, movement domain.InventoryMovement) error

	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx domain.Transaction) error

	GetShopProfile(ctx context.Context) (*domain.ShopProfile, error)
	InsertShopProfile(ctx context.Context, profile domain.ShopProfile) error
	UpdateShopProfile(ctx context.Context, profile domain.ShopProfile) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	// InTransaction runs fn against a transactional view of the repository.
	// If fn returns an error every write made through the view is rolled back.
	InTransaction(ctx context.Context, fn func(Repository) error) error
}
