package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/store"
	"tokosync/backend/internal/xid"
)

// reference names a related entity a record points at by display name.
type reference struct {
	entity EntityType
	name   string
}

// codec binds one entity type to its natural key, validation rules, foreign
// references and store operations. Records cross the store boundary here;
// everything above works on the generic Record shape.
type codec struct {
	entity   EntityType
	label    string
	idPrefix string

	// naturalKey derives the heuristic match key for records lacking strong
	// identity. ok=false means the entity type matches on strong id only.
	naturalKey func(r Record) (key string, ok bool)

	// validate applies entity rules beyond the Schema Gate's minimum.
	validate func(r Record) error

	// references lists related entities the record names. Nil when the
	// entity type references nothing.
	references func(r Record) []reference

	list   func(ctx context.Context, repo store.Repository) ([]Record, error)
	insert func(ctx context.Context, repo store.Repository, r Record, id string) error
	update func(ctx context.Context, repo store.Repository, r Record, id string) error
}

var codecs = map[EntityType]*codec{
	EntitySupplier:    supplierCodec,
	EntityCustomer:    customerCodec,
	EntityItem:        itemCodec,
	EntityPriceTier:   priceTierCodec,
	EntityMovement:    movementCodec,
	EntityTransaction: transactionCodec,
	EntitySettings:    settingsCodec,
}

func codecFor(entity EntityType) *codec {
	return codecs[entity]
}

func normKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

var customerCodec = &codec{
	entity:   EntityCustomer,
	label:    "Customers",
	idPrefix: "cust",
	naturalKey: func(r Record) (string, bool) {
		name := r.Str("name")
		if name == "" {
			return "", false
		}
		if phone := r.Str("phone"); phone != "" {
			return normKey(name, phone), true
		}
		return normKey(name), true
	},
	validate: func(r Record) error { return nil },
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		customers, err := repo.ListCustomers(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(customers))
		for i, c := range customers {
			records[i] = customerRecord(c)
		}
		return records, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertCustomer(ctx, recordCustomer(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdateCustomer(ctx, recordCustomer(r, id))
	},
}

func customerRecord(c domain.Customer) Record {
	return Record{
		"id":         c.ID,
		"name":       c.Name,
		"phone":      c.Phone,
		"email":      c.Email,
		"address":    c.Address,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func recordCustomer(r Record, id string) domain.Customer {
	createdAt, present, err := r.Time("created_at")
	if !present || err != nil {
		createdAt = time.Now().UTC()
	}
	return domain.Customer{
		ID:        id,
		Name:      r.Str("name"),
		Phone:     r.Str("phone"),
		Email:     r.Str("email"),
		Address:   r.Str("address"),
		CreatedAt: createdAt,
	}
}

var supplierCodec = &codec{
	entity:   EntitySupplier,
	label:    "Suppliers",
	idPrefix: "sup",
	naturalKey: func(r Record) (string, bool) {
		name := r.Str("name")
		if name == "" {
			return "", false
		}
		return normKey(name), true
	},
	validate: func(r Record) error { return nil },
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		suppliers, err := repo.ListSuppliers(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(suppliers))
		for i, s := range suppliers {
			records[i] = Record{
				"id":         s.ID,
				"name":       s.Name,
				"phone":      s.Phone,
				"created_at": s.CreatedAt.UTC().Format(time.RFC3339),
			}
		}
		return records, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertSupplier(ctx, recordSupplier(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdateSupplier(ctx, recordSupplier(r, id))
	},
}

func recordSupplier(r Record, id string) domain.Supplier {
	createdAt, present, err := r.Time("created_at")
	if !present || err != nil {
		createdAt = time.Now().UTC()
	}
	return domain.Supplier{
		ID:        id,
		Name:      r.Str("name"),
		Phone:     r.Str("phone"),
		CreatedAt: createdAt,
	}
}

var itemCodec = &codec{
	entity:   EntityItem,
	label:    "Catalog items",
	idPrefix: "item",
	naturalKey: func(r Record) (string, bool) {
		name := r.Str("name")
		if name == "" {
			return "", false
		}
		return normKey(name), true
	},
	validate: func(r Record) error {
		if price, ok := r.Int64("price_cents"); r.Has("price_cents") && (!ok || price < 0) {
			return fmt.Errorf("price_cents must be a non-negative integer")
		}
		if cost, ok := r.Int64("cost_cents"); r.Has("cost_cents") && (!ok || cost < 0) {
			return fmt.Errorf("cost_cents must be a non-negative integer")
		}
		if stock, ok := r.Int("stock"); r.Has("stock") && (!ok || stock < 0) {
			return fmt.Errorf("stock must be a non-negative integer")
		}
		return nil
	},
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		items, err := repo.ListItems(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(items))
		for i, item := range items {
			records[i] = itemRecord(item)
		}
		return records, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertItem(ctx, recordItem(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdateItem(ctx, recordItem(r, id))
	},
}

func itemRecord(item domain.CatalogItem) Record {
	return Record{
		"id":          item.ID,
		"name":        item.Name,
		"category":    item.Category,
		"unit":        item.Unit,
		"price_cents": item.PriceCents,
		"cost_cents":  item.CostCents,
		"stock":       item.Stock,
	}
}

func recordItem(r Record, id string) domain.CatalogItem {
	price, _ := r.Int64("price_cents")
	cost, _ := r.Int64("cost_cents")
	stock, _ := r.Int("stock")
	category := r.Str("category")
	if category == "" {
		category = "uncategorized"
	}
	return domain.CatalogItem{
		ID:         id,
		Name:       r.Str("name"),
		Category:   category,
		Unit:       r.Str("unit"),
		PriceCents: price,
		CostCents:  cost,
		Stock:      stock,
		Active:     true,
	}
}

var priceTierCodec = &codec{
	entity:   EntityPriceTier,
	label:    "Price tiers",
	idPrefix: "tier",
	naturalKey: func(r Record) (string, bool) {
		name := r.Str("item_name")
		minQty, ok := r.Int("min_qty")
		if name == "" || !ok {
			return "", false
		}
		return normKey(name, fmt.Sprintf("%d", minQty)), true
	},
	validate: func(r Record) error {
		minQty, ok := r.Int("min_qty")
		if !ok || minQty <= 0 {
			return fmt.Errorf("min_qty must be a positive integer")
		}
		if price, ok := r.Int64("price_cents"); !ok || price < 0 {
			return fmt.Errorf("price_cents must be a non-negative integer")
		}
		return nil
	},
	references: func(r Record) []reference {
		return []reference{{entity: EntityItem, name: r.Str("item_name")}}
	},
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		tiers, err := repo.ListPriceTiers(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(tiers))
		for i, tier := range tiers {
			records[i] = Record{
				"id":          tier.ID,
				"item_name":   tier.ItemName,
				"min_qty":     tier.MinQty,
				"price_cents": tier.PriceCents,
			}
		}
		return records, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertPriceTier(ctx, recordPriceTier(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdatePriceTier(ctx, recordPriceTier(r, id))
	},
}

func recordPriceTier(r Record, id string) domain.PriceTier {
	minQty, _ := r.Int("min_qty")
	price, _ := r.Int64("price_cents")
	return domain.PriceTier{
		ID:         id,
		ItemName:   r.Str("item_name"),
		MinQty:     minQty,
		PriceCents: price,
	}
}

var movementCodec = &codec{
	entity:   EntityMovement,
	label:    "Inventory movements",
	idPrefix: "mov",
	// Movements are point-in-time events with no reliable natural key; only
	// strong identity can establish a duplicate.
	naturalKey: func(r Record) (string, bool) { return "", false },
	validate: func(r Record) error {
		switch r.Str("kind") {
		case domain.MovementIn, domain.MovementOut, domain.MovementAdjust:
		default:
			return fmt.Errorf("kind must be one of in, out, adjust")
		}
		if qty, ok := r.Int("qty"); !ok || qty < 0 {
			return fmt.Errorf("qty must be a non-negative integer")
		}
		if _, present, err := r.Time("occurred_at"); present && err != nil {
			return fmt.Errorf("occurred_at is not a valid timestamp")
		}
		return nil
	},
	references: func(r Record) []reference {
		return []reference{{entity: EntityItem, name: r.Str("item_name")}}
	},
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		movements, err := repo.ListMovements(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(movements))
		for i, m := range movements {
			records[i] = Record{
				"id":          m.ID,
				"item_name":   m.ItemName,
				"kind":        m.Kind,
				"qty":         m.Qty,
				"note":        m.Note,
				"occurred_at": m.OccurredAt.UTC().Format(time.RFC3339),
			}
		}
		return records, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertMovement(ctx, recordMovement(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdateMovement(ctx, recordMovement(r, id))
	},
}

func recordMovement(r Record, id string) domain.InventoryMovement {
	qty, _ := r.Int("qty")
	occurredAt, present, err := r.Time("occurred_at")
	if !present || err != nil {
		occurredAt = time.Now().UTC()
	}
	return domain.InventoryMovement{
		ID:         id,
		ItemName:   r.Str("item_name"),
		Kind:       r.Str("kind"),
		Qty:        qty,
		Note:       r.Str("note"),
		OccurredAt: occurredAt,
	}
}

var transactionCodec = &codec{
	entity:   EntityTransaction,
	label:    "Transactions",
	idPrefix: "tx",
	// Same as movements: historical events, strong id only.
	naturalKey: func(r Record) (string, bool) { return "", false },
	validate: func(r Record) error {
		if total, ok := r.Int64("total_cents"); !ok || total < 0 {
			return fmt.Errorf("total_cents must be a non-negative integer")
		}
		if paid, ok := r.Int64("paid_cents"); r.Has("paid_cents") && (!ok || paid < 0) {
			return fmt.Errorf("paid_cents must be a non-negative integer")
		}
		if status := r.Str("status"); status != "" {
			switch status {
			case domain.TxStatusPaid, domain.TxStatusVoided, domain.TxStatusRefunded:
			default:
				return fmt.Errorf("status %q is not recognized", status)
			}
		}
		if _, present, err := r.Time("created_at"); present && err != nil {
			return fmt.Errorf("created_at is not a valid timestamp")
		}
		for i, line := range recordLines(r) {
			if line.ItemName == "" {
				return fmt.Errorf("line %d is missing item_name", i)
			}
			if line.Qty <= 0 {
				return fmt.Errorf("line %d qty must be positive", i)
			}
		}
		return nil
	},
	references: func(r Record) []reference {
		lines := recordLines(r)
		refs := make([]reference, 0, len(lines))
		for _, line := range lines {
			refs = append(refs, reference{entity: EntityItem, name: line.ItemName})
		}
		return refs
	},
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		transactions, err := repo.ListTransactions(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(transactions))
		for i, tx := range transactions {
			lines := make([]any, len(tx.Lines))
			for j, line := range tx.Lines {
				lines[j] = map[string]any{
					"item_name":        line.ItemName,
					"qty":              line.Qty,
					"unit_price_cents": line.UnitPriceCents,
				}
			}
			records[i] = Record{
				"id":            tx.ID,
				"customer_name": tx.CustomerName,
				"status":        tx.Status,
				"total_cents":   tx.TotalCents,
				"paid_cents":    tx.PaidCents,
				"change_cents":  tx.ChangeCents,
				"created_at":    tx.CreatedAt.UTC().Format(time.RFC3339),
				"lines":         lines,
			}
		}
		return records, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertTransaction(ctx, recordTransaction(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdateTransaction(ctx, recordTransaction(r, id))
	},
}

func recordLines(r Record) []domain.TransactionLine {
	raw, ok := r["lines"].([]any)
	if !ok {
		return nil
	}
	lines := make([]domain.TransactionLine, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		line := Record(m)
		qty, _ := line.Int("qty")
		unitPrice, _ := line.Int64("unit_price_cents")
		lines = append(lines, domain.TransactionLine{
			ItemName:       line.Str("item_name"),
			Qty:            qty,
			UnitPriceCents: unitPrice,
		})
	}
	return lines
}

func recordTransaction(r Record, id string) domain.Transaction {
	total, _ := r.Int64("total_cents")
	paid, _ := r.Int64("paid_cents")
	change, _ := r.Int64("change_cents")
	status := r.Str("status")
	if status == "" {
		status = domain.TxStatusPaid
	}
	createdAt, present, err := r.Time("created_at")
	if !present || err != nil {
		createdAt = time.Now().UTC()
	}
	return domain.Transaction{
		ID:           id,
		CustomerName: r.Str("customer_name"),
		Status:       status,
		TotalCents:   total,
		PaidCents:    paid,
		ChangeCents:  change,
		CreatedAt:    createdAt,
		Lines:        recordLines(r),
	}
}

var settingsCodec = &codec{
	entity:   EntitySettings,
	label:    "Shop configuration",
	idPrefix: "shop",
	// The shop profile is a singleton: any incoming record matches the one
	// resident profile.
	naturalKey: func(r Record) (string, bool) { return "shop", true },
	validate: func(r Record) error {
		if rate, ok := r.Float("tax_rate_percent"); r.Has("tax_rate_percent") && (!ok || rate < 0 || rate > 100) {
			return fmt.Errorf("tax_rate_percent must be between 0 and 100")
		}
		return nil
	},
	list: func(ctx context.Context, repo store.Repository) ([]Record, error) {
		profile, err := repo.GetShopProfile(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []Record{{
			"id":               profile.ID,
			"name":             profile.Name,
			"address":          profile.Address,
			"phone":            profile.Phone,
			"currency":         profile.Currency,
			"tax_rate_percent": profile.TaxRatePercent,
		}}, nil
	},
	insert: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.InsertShopProfile(ctx, recordShopProfile(r, id))
	},
	update: func(ctx context.Context, repo store.Repository, r Record, id string) error {
		return repo.UpdateShopProfile(ctx, recordShopProfile(r, id))
	},
}

func recordShopProfile(r Record, id string) domain.ShopProfile {
	rate, _ := r.Float("tax_rate_percent")
	return domain.ShopProfile{
		ID:             id,
		Name:           r.Str("name"),
		Address:        r.Str("address"),
		Phone:          r.Str("phone"),
		Currency:       r.Str("currency"),
		TaxRatePercent: rate,
	}
}

// newStrongID keeps a valid incoming identifier and mints a fresh one
// otherwise, so records imported from another installation keep their
// identity across repeated syncs.
func newStrongID(c *codec, r Record) string {
	if id := r.Str("id"); xid.Valid(id) {
		return id
	}
	return xid.New(c.idPrefix)
}
