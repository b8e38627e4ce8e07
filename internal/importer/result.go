package importer

type TypeCounts struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

type ImportError struct {
	EntityType EntityType `json:"entity_type"`
	Record     string     `json:"record"`
	Message    string     `json:"message"`
}

type ImportResult struct {
	RunID   string                    `json:"run_id"`
	Success bool                      `json:"success"`
	Totals  TypeCounts                `json:"totals"`
	PerType map[EntityType]TypeCounts `json:"per_entity_type_counts"`
	Errors  []ImportError             `json:"errors,omitempty"`
}

// resultAggregator accumulates per-entity outcomes as the batch executor
// reports them. Individual skipped records do not fail a run; a chunk-level
// abort that discarded otherwise-valid records does.
type resultAggregator struct {
	perType     map[EntityType]TypeCounts
	errors      []ImportError
	chunkAborts int
	canceled    bool
}

func newResultAggregator() *resultAggregator {
	return &resultAggregator{perType: make(map[EntityType]TypeCounts)}
}

func (a *resultAggregator) addImported(entity EntityType) {
	counts := a.perType[entity]
	counts.Imported++
	a.perType[entity] = counts
}

func (a *resultAggregator) addUpdated(entity EntityType) {
	counts := a.perType[entity]
	counts.Updated++
	a.perType[entity] = counts
}

func (a *resultAggregator) addSkipped(entity EntityType) {
	counts := a.perType[entity]
	counts.Skipped++
	a.perType[entity] = counts
}

func (a *resultAggregator) addError(entity EntityType, record Record, message string) {
	a.errors = append(a.errors, ImportError{
		EntityType: entity,
		Record:     recordRef(record),
		Message:    message,
	})
}

func (a *resultAggregator) noteChunkAbort() {
	a.chunkAborts++
}

func (a *resultAggregator) noteCanceled() {
	a.canceled = true
}

func (a *resultAggregator) finalize(runID string) *ImportResult {
	result := &ImportResult{
		RunID:   runID,
		Success: a.chunkAborts == 0 && !a.canceled,
		PerType: a.perType,
		Errors:  a.errors,
	}
	for _, counts := range a.perType {
		result.Totals.Imported += counts.Imported
		result.Totals.Updated += counts.Updated
		result.Totals.Skipped += counts.Skipped
	}
	return result
}

// recordRef picks a human-meaningful reference for an incoming record in
// the error log: strong id when present, else the naming field.
func recordRef(r Record) string {
	if id := r.Str("id"); id != "" {
		return id
	}
	if name := r.Str("name"); name != "" {
		return name
	}
	if name := r.Str("item_name"); name != "" {
		return name
	}
	return "(unidentified record)"
}
