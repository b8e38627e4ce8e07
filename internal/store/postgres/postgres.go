package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/store"
)

// dbtx is the common surface of *sql.DB and *sql.Tx, so the same query code
// serves both the plain store and its transactional view.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db   *sql.DB
	conn dbtx
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, conn: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS suppliers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS catalog_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL DEFAULT 0,
			cost_cents BIGINT NOT NULL DEFAULT 0,
			stock INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT true
		);
		CREATE UNIQUE INDEX IF NOT EXISTS catalog_items_name_key ON catalog_items (lower(name));
		CREATE TABLE IF NOT EXISTS price_tiers (
			id TEXT PRIMARY KEY,
			item_name TEXT NOT NULL,
			min_qty INT NOT NULL,
			price_cents BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS inventory_movements (
			id TEXT PRIMARY KEY,
			item_name TEXT NOT NULL,
			kind TEXT NOT NULL,
			qty INT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'paid',
			total_cents BIGINT NOT NULL,
			paid_cents BIGINT NOT NULL DEFAULT 0,
			change_cents BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			lines JSONB NOT NULL DEFAULT '[]'
		);
		CREATE TABLE IF NOT EXISTS shop_profile (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT '',
			tax_rate_percent DOUBLE PRECISION NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_username TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

// InTransaction runs fn against a transactional view sharing this store's
// query code. Nested calls reuse the outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(store.Repository) error) error {
	if _, nested := s.conn.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	view := &Store{db: s.db, conn: tx}
	if err := fn(view); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM customers
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 128)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) InsertCustomer(ctx context.Context, customer domain.Customer) error {
	if customer.ID == "" || customer.Name == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address, customer.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, phone, created_at
		FROM suppliers
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sp domain.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Phone, &sp.CreatedAt); err != nil {
			return nil, err
		}
		sp.CreatedAt = sp.CreatedAt.UTC()
		suppliers = append(suppliers, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) InsertSupplier(ctx context.Context, supplier domain.Supplier) error {
	if supplier.ID == "" || supplier.Name == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES ($1,$2,$3,$4)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $2, phone = $3
		WHERE id = $1
	`, supplier.ID, supplier.Name, supplier.Phone)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, category, unit, price_cents, cost_cents, stock, active
		FROM catalog_items
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, 128)
	for rows.Next() {
		var item domain.CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.PriceCents, &item.CostCents, &item.Stock, &item.Active); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetItemByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	return s.scanItem(s.conn.QueryRowContext(ctx, `
		SELECT id, name, category, unit, price_cents, cost_cents, stock, active
		FROM catalog_items
		WHERE id = $1
	`, id))
}

func (s *Store) GetItemByName(ctx context.Context, name string) (*domain.CatalogItem, error) {
	return s.scanItem(s.conn.QueryRowContext(ctx, `
		SELECT id, name, category, unit, price_cents, cost_cents, stock, active
		FROM catalog_items
		WHERE lower(name) = lower($1)
	`, name))
}

func (s *Store) scanItem(row *sql.Row) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.PriceCents, &item.CostCents, &item.Stock, &item.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertItem(ctx context.Context, item domain.CatalogItem) error {
	if item.ID == "" || item.Name == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO catalog_items (id, name, category, unit, price_cents, cost_cents, stock, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, item.ID, item.Name, item.Category, item.Unit, item.PriceCents, item.CostCents, item.Stock, item.Active)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdateItem(ctx context.Context, item domain.CatalogItem) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE catalog_items
		SET name = $2, category = $3, unit = $4, price_cents = $5, cost_cents = $6, stock = $7, active = $8
		WHERE id = $1
	`, item.ID, item.Name, item.Category, item.Unit, item.PriceCents, item.CostCents, item.Stock, item.Active)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListPriceTiers(ctx context.Context) ([]domain.PriceTier, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, item_name, min_qty, price_cents
		FROM price_tiers
		ORDER BY item_name, min_qty
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]domain.PriceTier, 0, 64)
	for rows.Next() {
		var tier domain.PriceTier
		if err := rows.Scan(&tier.ID, &tier.ItemName, &tier.MinQty, &tier.PriceCents); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (s *Store) InsertPriceTier(ctx context.Context, tier domain.PriceTier) error {
	if tier.ID == "" || tier.ItemName == "" || tier.MinQty < 1 {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO price_tiers (id, item_name, min_qty, price_cents)
		VALUES ($1,$2,$3,$4)
	`, tier.ID, tier.ItemName, tier.MinQty, tier.PriceCents)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdatePriceTier(ctx context.Context, tier domain.PriceTier) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE price_tiers
		SET item_name = $2, min_qty = $3, price_cents = $4
		WHERE id = $1
	`, tier.ID, tier.ItemName, tier.MinQty, tier.PriceCents)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListMovements(ctx context.Context) ([]domain.InventoryMovement, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, item_name, kind, qty, note, occurred_at
		FROM inventory_movements
		ORDER BY occurred_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.InventoryMovement, 0, 256)
	for rows.Next() {
		var m domain.InventoryMovement
		if err := rows.Scan(&m.ID, &m.ItemName, &m.Kind, &m.Qty, &m.Note, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.OccurredAt = m.OccurredAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) InsertMovement(ctx context.Context, movement domain.InventoryMovement) error {
	if movement.ID == "" || movement.ItemName == "" || movement.Qty < 0 {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO inventory_movements (id, item_name, kind, qty, note, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, movement.ID, movement.ItemName, movement.Kind, movement.Qty, movement.Note, movement.OccurredAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdateMovement(ctx context.Context, movement domain.InventoryMovement) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE inventory_movements
		SET item_name = $2, kind = $3, qty = $4, note = $5, occurred_at = $6
		WHERE id = $1
	`, movement.ID, movement.ItemName, movement.Kind, movement.Qty, movement.Note, movement.OccurredAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, customer_name, status, total_cents, paid_cents, change_cents, created_at, lines
		FROM transactions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 256)
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, customer_name, status, total_cents, paid_cents, change_cents, created_at, lines
		FROM transactions
		WHERE id = $1
	`, id)
	tx, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func scanTransaction(scan func(dest ...any) error) (*domain.Transaction, error) {
	var tx domain.Transaction
	var linesRaw []byte
	if err := scan(&tx.ID, &tx.CustomerName, &tx.Status, &tx.TotalCents, &tx.PaidCents, &tx.ChangeCents, &tx.CreatedAt, &linesRaw); err != nil {
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	if len(linesRaw) > 0 {
		if err := json.Unmarshal(linesRaw, &tx.Lines); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" || tx.TotalCents < 0 {
		return store.ErrInvalidRecord
	}
	linesJSON, err := json.Marshal(tx.Lines)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO transactions (id, customer_name, status, total_cents, paid_cents, change_cents, created_at, lines)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tx.ID, tx.CustomerName, tx.Status, tx.TotalCents, tx.PaidCents, tx.ChangeCents, tx.CreatedAt, linesJSON)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	linesJSON, err := json.Marshal(tx.Lines)
	if err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx, `
		UPDATE transactions
		SET customer_name = $2, status = $3, total_cents = $4, paid_cents = $5, change_cents = $6, created_at = $7, lines = $8
		WHERE id = $1
	`, tx.ID, tx.CustomerName, tx.Status, tx.TotalCents, tx.PaidCents, tx.ChangeCents, tx.CreatedAt, linesJSON)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) GetShopProfile(ctx context.Context) (*domain.ShopProfile, error) {
	var profile domain.ShopProfile
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, name, address, phone, currency, tax_rate_percent
		FROM shop_profile
		LIMIT 1
	`).Scan(&profile.ID, &profile.Name, &profile.Address, &profile.Phone, &profile.Currency, &profile.TaxRatePercent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *Store) InsertShopProfile(ctx context.Context, profile domain.ShopProfile) error {
	if profile.ID == "" || profile.Name == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO shop_profile (id, name, address, phone, currency, tax_rate_percent)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, profile.ID, profile.Name, profile.Address, profile.Phone, profile.Currency, profile.TaxRatePercent)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) UpdateShopProfile(ctx context.Context, profile domain.ShopProfile) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE shop_profile
		SET name = $2, address = $3, phone = $4, currency = $5, tax_rate_percent = $6
		WHERE id = $1
	`, profile.ID, profile.Name, profile.Address, profile.Phone, profile.Currency, profile.TaxRatePercent)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
