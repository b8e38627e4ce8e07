package importer

type ResolutionAction string

const (
	ResolutionApplyIncoming ResolutionAction = "apply_incoming"
	ResolutionKeepExisting  ResolutionAction = "keep_existing"
	ResolutionSkip          ResolutionAction = "skip"
)

// ResolutionDecision is the operator's choice for a previewed conflict. With
// ApplyToAll set the action becomes the run-wide default; per-conflict
// overrides are keyed by conflict key.
type ResolutionDecision struct {
	Action     ResolutionAction `json:"action"`
	ApplyToAll bool             `json:"apply_to_all"`
}

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opSkip
)

type operation struct {
	entity     EntityType
	kind       opKind
	record     Record
	existingID string
	reason     string
}

type plan struct {
	ops map[EntityType][]operation
}

func (p *plan) totalOps() int {
	total := 0
	for _, ops := range p.ops {
		total += len(ops)
	}
	return total
}

// buildPlan maps every classified record to exactly one terminal operation.
// validation_failed records skip under every policy; reference_missing
// records skip unless CreateMissingReferences promotes them to inserts with
// a synthesized stand-in target; duplicates follow the operator decision.
func buildPlan(set *classifiedSet, ix *IdentityIndex, opts ImportOptions, overrides map[string]ResolutionAction) *plan {
	p := &plan{ops: make(map[EntityType][]operation, len(set.perType))}

	for _, entity := range knownEntityTypes() {
		records := set.perType[entity]
		if len(records) == 0 {
			continue
		}
		c := codecFor(entity)

		for _, cr := range records {
			switch {
			case cr.conflict == nil:
				p.add(operation{entity: entity, kind: opInsert, record: cr.record})

			case cr.conflict.Classification == ClassValidationFailed:
				p.add(operation{entity: entity, kind: opSkip, record: cr.record, reason: cr.conflict.Message})

			case cr.conflict.Classification == ClassReferenceMissing:
				if !opts.CreateMissingReferences {
					p.add(operation{entity: entity, kind: opSkip, record: cr.record, reason: cr.conflict.Message})
					continue
				}
				p.synthesizeTargets(c, cr.record, ix)
				p.add(operation{entity: entity, kind: opInsert, record: cr.record})

			default: // duplicate
				action := opts.DefaultResolution
				if override, ok := overrides[cr.conflict.Key]; ok {
					action = override
				}
				if action != ResolutionApplyIncoming {
					p.add(operation{entity: entity, kind: opSkip, record: cr.record, reason: "kept existing record"})
					continue
				}
				merged := mergeRecords(cr.conflict.Existing, cr.record)
				p.add(operation{entity: entity, kind: opUpdate, record: merged, existingID: cr.conflict.Existing.Str("id")})
			}
		}
	}
	return p
}

func (p *plan) add(op operation) {
	p.ops[op.entity] = append(p.ops[op.entity], op)
}

// synthesizeTargets queues a minimal stand-in insert for every unresolved
// reference target of the record, at most once per target per run. Catalog
// items are written before the collections that reference them, so appending
// to the items phase is enough.
func (p *plan) synthesizeTargets(c *codec, r Record, ix *IdentityIndex) {
	if c.references == nil {
		return
	}
	for _, ref := range c.references(r) {
		if ix.Resolves(ref) {
			continue
		}
		stand := Record{"name": ref.name, "category": "uncategorized"}
		p.add(operation{entity: ref.entity, kind: opInsert, record: stand})
		ix.AddPending(ref.entity, normKey(ref.name))
	}
}

// mergeRecords overlays incoming field values onto the existing record. The
// existing strong identifier always survives.
func mergeRecords(existing, incoming Record) Record {
	merged := make(Record, len(existing)+len(incoming))
	for field, value := range existing {
		merged[field] = value
	}
	for field, value := range incoming {
		if field == "id" {
			continue
		}
		merged[field] = value
	}
	return merged
}
