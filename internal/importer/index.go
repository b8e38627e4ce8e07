package importer

import (
	"context"
	"fmt"

	"tokosync/backend/internal/store"
)

// IdentityIndex holds O(1) lookup structures over the store's resident
// records, keyed both by strong identifier and by per-entity natural key. It
// is built once per run; re-scanning the store per incoming record is
// exactly the degenerate behavior this exists to prevent.
type IdentityIndex struct {
	byStrongID   map[EntityType]map[string]Record
	byNaturalKey map[EntityType]map[string]Record

	// pending tracks natural keys of records accepted earlier in the same
	// run, so forward references (a tier naming an item that arrives in this
	// payload) resolve during classification.
	pending map[EntityType]map[string]struct{}
}

// BuildIndex loads the resident records of every entity type the payload
// touches, plus catalog items whenever any referencing type is present.
func BuildIndex(ctx context.Context, repo store.Repository, payload Payload) (*IdentityIndex, error) {
	ix := &IdentityIndex{
		byStrongID:   make(map[EntityType]map[string]Record),
		byNaturalKey: make(map[EntityType]map[string]Record),
		pending:      make(map[EntityType]map[string]struct{}),
	}

	for _, entity := range typesToIndex(payload) {
		c := codecFor(entity)
		records, err := c.list(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", entity, err)
		}

		ix.byStrongID[entity] = make(map[string]Record, len(records))
		ix.byNaturalKey[entity] = make(map[string]Record, len(records))
		for _, r := range records {
			if id := r.Str("id"); id != "" {
				ix.byStrongID[entity][id] = r
			}
			key, ok := c.naturalKey(r)
			if !ok {
				continue
			}
			// First record wins on a resident natural-key collision, keeping
			// lookups deterministic.
			if _, exists := ix.byNaturalKey[entity][key]; !exists {
				ix.byNaturalKey[entity][key] = r
			}
		}
	}
	return ix, nil
}

func typesToIndex(payload Payload) []EntityType {
	needed := make(map[EntityType]bool, len(importOrder))
	for _, entity := range knownEntityTypes() {
		if payload.Count(entity) == 0 {
			continue
		}
		needed[entity] = true
		if codecFor(entity).references != nil {
			needed[EntityItem] = true
		}
	}
	types := make([]EntityType, 0, len(needed))
	for _, entity := range knownEntityTypes() {
		if needed[entity] {
			types = append(types, entity)
		}
	}
	return types
}

func (ix *IdentityIndex) ByStrongID(entity EntityType, id string) (Record, bool) {
	r, ok := ix.byStrongID[entity][id]
	return r, ok
}

func (ix *IdentityIndex) ByNaturalKey(entity EntityType, key string) (Record, bool) {
	r, ok := ix.byNaturalKey[entity][key]
	return r, ok
}

// AddPending registers the natural key of a record accepted earlier in this
// run, making it resolvable as a reference target for later collections.
func (ix *IdentityIndex) AddPending(entity EntityType, key string) {
	if ix.pending[entity] == nil {
		ix.pending[entity] = make(map[string]struct{})
	}
	ix.pending[entity][key] = struct{}{}
}

// Resolves reports whether a named reference target exists, either resident
// in the store or accepted earlier in this run.
func (ix *IdentityIndex) Resolves(ref reference) bool {
	if ref.name == "" {
		return false
	}
	key := normKey(ref.name)
	if _, ok := ix.byNaturalKey[ref.entity][key]; ok {
		return true
	}
	_, ok := ix.pending[ref.entity][key]
	return ok
}
