package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/store"
)

type Store struct {
	mu               sync.RWMutex
	customersByID    map[string]domain.Customer
	suppliersByID    map[string]domain.Supplier
	itemsByID        map[string]domain.CatalogItem
	priceTiersByID   map[string]domain.PriceTier
	movementsByID    map[string]domain.InventoryMovement
	transactionsByID map[string]domain.Transaction
	shopProfile      *domain.ShopProfile
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount

	insertOrder map[string]int
	nextSeq     int

	// failHook, when set, is consulted before every write. Tests use it to
	// force chunk-level failures without a real database.
	failHook func(op string, entityType string, key string) error
}

func New() *Store {
	return &Store{
		customersByID:    make(map[string]domain.Customer),
		suppliersByID:    make(map[string]domain.Supplier),
		itemsByID:        make(map[string]domain.CatalogItem),
		priceTiersByID:   make(map[string]domain.PriceTier),
		movementsByID:    make(map[string]domain.InventoryMovement),
		transactionsByID: make(map[string]domain.Transaction),
		auditLogs:        make([]domain.AuditLog, 0, 64),
		usersByUsername:  make(map[string]domain.UserAccount),
		insertOrder:      make(map[string]int),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD
// environment variables, with hardcoded dev defaults and a warning when
// unset. The in-memory store is never used when DATABASE_URL is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"operator", operatorPwd, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	s.shopProfile = &domain.ShopProfile{
		ID:             "shop-1",
		Name:           "Toko Sumber Rejeki",
		Address:        "Jl. Melati No. 3",
		Phone:          "0812-0000-0001",
		Currency:       "IDR",
		TaxRatePercent: 11,
	}
	items := []domain.CatalogItem{
		{ID: "item-1700000000000000001-aaaaaaaaaaaaaaaa", Name: "Mie Goreng Instan", Category: "grocery", Unit: "pcs", PriceCents: 3500, CostCents: 2700, Stock: 120, Active: true},
		{ID: "item-1700000000000000002-bbbbbbbbbbbbbbbb", Name: "Telur 10 Butir", Category: "grocery", Unit: "pak", PriceCents: 26500, CostCents: 23000, Stock: 40, Active: true},
		{ID: "item-1700000000000000003-cccccccccccccccc", Name: "Kopi Sachet", Category: "beverage", Unit: "pcs", PriceCents: 2600, CostCents: 1700, Stock: 200, Active: true},
	}
	for _, item := range items {
		s.itemsByID[item.ID] = item
		s.noteInsert(item.ID)
	}
	return s
}

// SetFailHook installs a write-failure hook for tests. Pass nil to clear.
func (s *Store) SetFailHook(hook func(op string, entityType string, key string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHook = hook
}

func (s *Store) checkHook(op, entityType, key string) error {
	if s.failHook == nil {
		return nil
	}
	return s.failHook(op, entityType, key)
}

func (s *Store) noteInsert(id string) {
	s.nextSeq++
	s.insertOrder[id] = s.nextSeq
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	sortByInsert(s.insertOrder, customers, func(c domain.Customer) string { return c.ID })
	return customers, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := customer
	return &copied, nil
}

func (s *Store) InsertCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "customers", customer.Name); err != nil {
		return err
	}
	if customer.ID == "" || customer.Name == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return store.ErrConflict
	}
	s.customersByID[customer.ID] = customer
	s.noteInsert(customer.ID)
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "customers", customer.Name); err != nil {
		return err
	}
	if _, exists := s.customersByID[customer.ID]; !exists {
		return store.ErrNotFound
	}
	s.customersByID[customer.ID] = customer
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sp := range s.suppliersByID {
		suppliers = append(suppliers, sp)
	}
	sortByInsert(s.insertOrder, suppliers, func(sp domain.Supplier) string { return sp.ID })
	return suppliers, nil
}

func (s *Store) InsertSupplier(_ context.Context, supplier domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "suppliers", supplier.Name); err != nil {
		return err
	}
	if supplier.ID == "" || supplier.Name == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.suppliersByID[supplier.ID]; exists {
		return store.ErrConflict
	}
	s.suppliersByID[supplier.ID] = supplier
	s.noteInsert(supplier.ID)
	return nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "suppliers", supplier.Name); err != nil {
		return err
	}
	if _, exists := s.suppliersByID[supplier.ID]; !exists {
		return store.ErrNotFound
	}
	s.suppliersByID[supplier.ID] = supplier
	return nil
}

func (s *Store) ListItems(_ context.Context) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.CatalogItem, 0, len(s.itemsByID))
	for _, item := range s.itemsByID {
		items = append(items, item)
	}
	sortByInsert(s.insertOrder, items, func(item domain.CatalogItem) string { return item.ID })
	return items, nil
}

func (s *Store) GetItemByID(_ context.Context, id string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.itemsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := item
	return &copied, nil
}

func (s *Store) GetItemByName(_ context.Context, name string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, item := range s.itemsByID {
		if strings.ToLower(item.Name) == needle {
			copied := item
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) InsertItem(_ context.Context, item domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "items", item.Name); err != nil {
		return err
	}
	if item.ID == "" || item.Name == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.itemsByID[item.ID]; exists {
		return store.ErrConflict
	}
	s.itemsByID[item.ID] = item
	s.noteInsert(item.ID)
	return nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "items", item.Name); err != nil {
		return err
	}
	if _, exists := s.itemsByID[item.ID]; !exists {
		return store.ErrNotFound
	}
	s.itemsByID[item.ID] = item
	return nil
}

func (s *Store) ListPriceTiers(_ context.Context) ([]domain.PriceTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tiers := make([]domain.PriceTier, 0, len(s.priceTiersByID))
	for _, tier := range s.priceTiersByID {
		tiers = append(tiers, tier)
	}
	sortByInsert(s.insertOrder, tiers, func(tier domain.PriceTier) string { return tier.ID })
	return tiers, nil
}

func (s *Store) InsertPriceTier(_ context.Context, tier domain.PriceTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "price_tiers", tier.ItemName); err != nil {
		return err
	}
	if tier.ID == "" || tier.ItemName == "" || tier.MinQty < 1 {
		return store.ErrInvalidRecord
	}
	if _, exists := s.priceTiersByID[tier.ID]; exists {
		return store.ErrConflict
	}
	s.priceTiersByID[tier.ID] = tier
	s.noteInsert(tier.ID)
	return nil
}

func (s *Store) UpdatePriceTier(_ context.Context, tier domain.PriceTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "price_tiers", tier.ItemName); err != nil {
		return err
	}
	if _, exists := s.priceTiersByID[tier.ID]; !exists {
		return store.ErrNotFound
	}
	s.priceTiersByID[tier.ID] = tier
	return nil
}

func (s *Store) ListMovements(_ context.Context) ([]domain.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := make([]domain.InventoryMovement, 0, len(s.movementsByID))
	for _, m := range s.movementsByID {
		movements = append(movements, m)
	}
	sortByInsert(s.insertOrder, movements, func(m domain.InventoryMovement) string { return m.ID })
	return movements, nil
}

func (s *Store) InsertMovement(_ context.Context, movement domain.InventoryMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "movements", movement.ItemName); err != nil {
		return err
	}
	if movement.ID == "" || movement.ItemName == "" || movement.Qty < 0 {
		return store.ErrInvalidRecord
	}
	if _, exists := s.movementsByID[movement.ID]; exists {
		return store.ErrConflict
	}
	s.movementsByID[movement.ID] = movement
	s.noteInsert(movement.ID)
	return nil
}

func (s *Store) UpdateMovement(_ context.Context, movement domain.InventoryMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "movements", movement.ItemName); err != nil {
		return err
	}
	if _, exists := s.movementsByID[movement.ID]; !exists {
		return store.ErrNotFound
	}
	s.movementsByID[movement.ID] = movement
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transactions := make([]domain.Transaction, 0, len(s.transactionsByID))
	for _, tx := range s.transactionsByID {
		tx.Lines = slices.Clone(tx.Lines)
		transactions = append(transactions, tx)
	}
	sortByInsert(s.insertOrder, transactions, func(tx domain.Transaction) string { return tx.ID })
	return transactions, nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx.Lines = slices.Clone(tx.Lines)
	return &tx, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "transactions", tx.ID); err != nil {
		return err
	}
	if tx.ID == "" || tx.TotalCents < 0 {
		return store.ErrInvalidRecord
	}
	if _, exists := s.transactionsByID[tx.ID]; exists {
		return store.ErrConflict
	}
	tx.Lines = slices.Clone(tx.Lines)
	s.transactionsByID[tx.ID] = tx
	s.noteInsert(tx.ID)
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "transactions", tx.ID); err != nil {
		return err
	}
	if _, exists := s.transactionsByID[tx.ID]; !exists {
		return store.ErrNotFound
	}
	tx.Lines = slices.Clone(tx.Lines)
	s.transactionsByID[tx.ID] = tx
	return nil
}

func (s *Store) GetShopProfile(_ context.Context) (*domain.ShopProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shopProfile == nil {
		return nil, store.ErrNotFound
	}
	copied := *s.shopProfile
	return &copied, nil
}

func (s *Store) InsertShopProfile(_ context.Context, profile domain.ShopProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("insert", "settings", profile.Name); err != nil {
		return err
	}
	if profile.ID == "" || profile.Name == "" {
		return store.ErrInvalidRecord
	}
	if s.shopProfile != nil {
		return store.ErrConflict
	}
	copied := profile
	s.shopProfile = &copied
	return nil
}

func (s *Store) UpdateShopProfile(_ context.Context, profile domain.ShopProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHook("update", "settings", profile.Name); err != nil {
		return err
	}
	if s.shopProfile == nil {
		return store.ErrNotFound
	}
	copied := profile
	s.shopProfile = &copied
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.auditLogs) {
		limit = len(s.auditLogs)
	}
	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, s.auditLogs[i])
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// InTransaction snapshots the store, runs fn against it and restores the
// snapshot when fn fails. Import runs are serialized by the caller, so a
// whole-store snapshot is an adequate stand-in for a database transaction.
func (s *Store) InTransaction(_ context.Context, fn func(store.Repository) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	customers    map[string]domain.Customer
	suppliers    map[string]domain.Supplier
	items        map[string]domain.CatalogItem
	priceTiers   map[string]domain.PriceTier
	movements    map[string]domain.InventoryMovement
	transactions map[string]domain.Transaction
	shopProfile  *domain.ShopProfile
	insertOrder  map[string]int
	nextSeq      int
}

func (s *Store) snapshot() snapshotState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshotState{
		customers:    make(map[string]domain.Customer, len(s.customersByID)),
		suppliers:    make(map[string]domain.Supplier, len(s.suppliersByID)),
		items:        make(map[string]domain.CatalogItem, len(s.itemsByID)),
		priceTiers:   make(map[string]domain.PriceTier, len(s.priceTiersByID)),
		movements:    make(map[string]domain.InventoryMovement, len(s.movementsByID)),
		transactions: make(map[string]domain.Transaction, len(s.transactionsByID)),
		insertOrder:  make(map[string]int, len(s.insertOrder)),
		nextSeq:      s.nextSeq,
	}
	for k, v := range s.customersByID {
		snap.customers[k] = v
	}
	for k, v := range s.suppliersByID {
		snap.suppliers[k] = v
	}
	for k, v := range s.itemsByID {
		snap.items[k] = v
	}
	for k, v := range s.priceTiersByID {
		snap.priceTiers[k] = v
	}
	for k, v := range s.movementsByID {
		snap.movements[k] = v
	}
	for k, v := range s.transactionsByID {
		v.Lines = slices.Clone(v.Lines)
		snap.transactions[k] = v
	}
	for k, v := range s.insertOrder {
		snap.insertOrder[k] = v
	}
	if s.shopProfile != nil {
		copied := *s.shopProfile
		snap.shopProfile = &copied
	}
	return snap
}

func (s *Store) restore(snap snapshotState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customersByID = snap.customers
	s.suppliersByID = snap.suppliers
	s.itemsByID = snap.items
	s.priceTiersByID = snap.priceTiers
	s.movementsByID = snap.movements
	s.transactionsByID = snap.transactions
	s.shopProfile = snap.shopProfile
	s.insertOrder = snap.insertOrder
	s.nextSeq = snap.nextSeq
}

// sortByInsert orders a listing by original insertion sequence so repeated
// runs see a stable order.
func sortByInsert[T any](order map[string]int, entries []T, id func(T) string) {
	slices.SortFunc(entries, func(a, b T) int {
		return order[id(a)] - order[id(b)]
	})
}
