package importer

import (
	"fmt"
	"sort"

	"tokosync/backend/internal/xid"
)

type Classification string

const (
	ClassDuplicate        Classification = "duplicate"
	ClassReferenceMissing Classification = "reference_missing"
	ClassValidationFailed Classification = "validation_failed"
)

type MatchKind string

const (
	MatchStrongID   MatchKind = "strong_id"
	MatchNaturalKey MatchKind = "natural_key"
	MatchNone       MatchKind = "none"
)

type FieldDiff struct {
	Field    string `json:"field"`
	Incoming any    `json:"incoming"`
	Existing any    `json:"existing"`
}

// DataConflict is one incoming record that cannot be inserted as pure new
// data without a decision. Existing is set if and only if the classification
// is duplicate.
type DataConflict struct {
	Key            string         `json:"key"`
	EntityType     EntityType     `json:"entity_type"`
	Classification Classification `json:"classification"`
	Incoming       Record         `json:"incoming"`
	Existing       Record         `json:"existing,omitempty"`
	MatchedBy      MatchKind      `json:"matched_by"`
	FieldDiffs     []FieldDiff    `json:"field_diffs,omitempty"`
	Message        string         `json:"message"`
}

// classifiedRecord pairs an incoming record with its conflict, nil meaning
// the record is new and queued for direct insertion.
type classifiedRecord struct {
	record   Record
	conflict *DataConflict
}

type classifiedSet struct {
	perType   map[EntityType][]classifiedRecord
	conflicts []DataConflict
}

// classify walks the payload in import order and decides, per record:
// validation_failed, reference_missing, duplicate, or new. Precedence is
// fixed; in particular a strong-id match always wins over a natural-key
// match because the strong identifier is authoritative.
func classify(payload Payload, ix *IdentityIndex, opts ImportOptions) *classifiedSet {
	set := &classifiedSet{perType: make(map[EntityType][]classifiedRecord, len(payload))}

	for _, entity := range knownEntityTypes() {
		records := payload[entity]
		if len(records) == 0 {
			continue
		}
		c := codecFor(entity)

		for i, r := range records {
			key := fmt.Sprintf("%s/%d", entity, i)
			cls := classifyRecord(c, r, ix, opts, key)
			set.perType[entity] = append(set.perType[entity], classifiedRecord{record: r, conflict: cls})
			if cls != nil {
				set.conflicts = append(set.conflicts, *cls)
			}

			// Accepted records become reference targets for later
			// collections in the same run. Invalid records never do.
			if cls == nil || cls.Classification == ClassDuplicate {
				if nk, ok := c.naturalKey(r); ok {
					ix.AddPending(entity, nk)
				}
			}
		}
	}
	return set
}

func classifyRecord(c *codec, r Record, ix *IdentityIndex, opts ImportOptions, key string) *DataConflict {
	if err := c.validate(r); err != nil {
		return &DataConflict{
			Key:            key,
			EntityType:     c.entity,
			Classification: ClassValidationFailed,
			Incoming:       r,
			MatchedBy:      MatchNone,
			Message:        err.Error(),
		}
	}

	if !opts.SkipReferenceChecks && c.references != nil {
		for _, ref := range c.references(r) {
			if ix.Resolves(ref) {
				continue
			}
			return &DataConflict{
				Key:            key,
				EntityType:     c.entity,
				Classification: ClassReferenceMissing,
				Incoming:       r,
				MatchedBy:      MatchNone,
				Message:        fmt.Sprintf("references %s %q which does not exist", ref.entity, ref.name),
			}
		}
	}

	if id := r.Str("id"); xid.Valid(id) {
		if existing, ok := ix.ByStrongID(c.entity, id); ok {
			return duplicateConflict(c, r, existing, MatchStrongID, key)
		}
	}
	if nk, ok := c.naturalKey(r); ok {
		if existing, found := ix.ByNaturalKey(c.entity, nk); found {
			return duplicateConflict(c, r, existing, MatchNaturalKey, key)
		}
	}
	return nil
}

func duplicateConflict(c *codec, incoming, existing Record, matchedBy MatchKind, key string) *DataConflict {
	return &DataConflict{
		Key:            key,
		EntityType:     c.entity,
		Classification: ClassDuplicate,
		Incoming:       incoming,
		Existing:       existing,
		MatchedBy:      matchedBy,
		FieldDiffs:     diffRecords(incoming, existing),
		Message:        fmt.Sprintf("matches existing record %s by %s", existing.Str("id"), matchedBy),
	}
}

// diffRecords lists the incoming fields whose values differ from the
// existing record, in field-name order. The diff exists for operator
// display; the resolution decision does not depend on it.
func diffRecords(incoming, existing Record) []FieldDiff {
	fields := make([]string, 0, len(incoming))
	for field := range incoming {
		if field == "id" {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	diffs := make([]FieldDiff, 0, len(fields))
	for _, field := range fields {
		if valuesEqual(incoming[field], existing[field]) {
			continue
		}
		diffs = append(diffs, FieldDiff{Field: field, Incoming: incoming[field], Existing: existing[field]})
	}
	return diffs
}

// valuesEqual compares payload values against store-derived values, which
// carry different Go types for the same logical value (JSON float64 vs
// int64, nested []any shapes). Numeric values compare numerically; anything
// else falls back to fmt's canonical rendering, which prints maps in sorted
// key order.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	if as, ok := a.(string); ok {
		bs, bok := b.(string)
		return bok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, bok := b.(bool)
		return bok && ab == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
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
