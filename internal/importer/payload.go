package importer

import (
	"strings"
	"time"
)

// EntityType names a known top-level collection in an import payload.
type EntityType string

const (
	EntitySupplier    EntityType = "suppliers"
	EntityCustomer    EntityType = "customers"
	EntityItem        EntityType = "items"
	EntityPriceTier   EntityType = "price_tiers"
	EntityMovement    EntityType = "movements"
	EntityTransaction EntityType = "transactions"
	EntitySettings    EntityType = "settings"
)

// importOrder fixes the cross-entity write order: reference targets before
// the records that reference them, so same-run forward references resolve
// without a second pass.
var importOrder = []EntityType{
	EntitySupplier,
	EntityCustomer,
	EntityItem,
	EntityPriceTier,
	EntityMovement,
	EntityTransaction,
	EntitySettings,
}

func knownEntityTypes() []EntityType {
	return importOrder
}

// Record is one incoming record: a field-name to value mapping as decoded
// from the export. Records stay in this shape through classification so
// field-level diffs can be computed generically; entity codecs convert them
// to domain structs at write time.
type Record map[string]any

// Payload is a parsed import payload. Unknown top-level keys in the raw
// export are ignored, not rejected.
type Payload map[EntityType][]Record

// ParsePayload extracts the known collections from a schema-validated raw
// payload. The Schema Gate guarantees every known collection is an array of
// objects, so the assertions here cannot fail on gated input.
func ParsePayload(raw map[string]any) Payload {
	payload := make(Payload, len(importOrder))
	for _, entity := range knownEntityTypes() {
		value, ok := raw[string(entity)]
		if !ok {
			continue
		}
		entries, ok := value.([]any)
		if !ok {
			continue
		}
		records := make([]Record, 0, len(entries))
		for _, entry := range entries {
			if m, ok := entry.(map[string]any); ok {
				records = append(records, Record(m))
			}
		}
		payload[entity] = records
	}
	return payload
}

func (p Payload) Count(entity EntityType) int {
	return len(p[entity])
}

func (p Payload) TotalRecords() int {
	total := 0
	for _, records := range p {
		total += len(records)
	}
	return total
}

// Str returns the trimmed string value of a field, or "" when the field is
// absent or not a string.
func (r Record) Str(field string) string {
	v, ok := r[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Int64 returns the integer value of a numeric field. JSON numbers decode as
// float64; values with a fractional part are rejected.
func (r Record) Int64(field string) (int64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func (r Record) Int(field string) (int, bool) {
	n, ok := r.Int64(field)
	return int(n), ok
}

func (r Record) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Time parses an RFC 3339 timestamp field. The second return reports field
// presence; a present but malformed value yields (zero, true, error).
func (r Record) Time(field string) (time.Time, bool, error) {
	v, ok := r[field]
	if !ok {
		return time.Time{}, false, nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, true, err
	}
	return ts.UTC(), true, nil
}

func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}
