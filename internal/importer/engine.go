package importer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"tokosync/backend/internal/store"
)

// ImportOptions control one commit run. Reference checking is on unless
// explicitly skipped, so the zero value behaves like DefaultOptions.
type ImportOptions struct {
	BatchSize               int              `json:"batch_size"`
	DefaultResolution       ResolutionAction `json:"default_resolution"`
	SkipReferenceChecks     bool             `json:"skip_reference_checks"`
	CreateMissingReferences bool             `json:"create_missing_references"`
}

// DefaultOptions are also what Preview classifies under, so the preview an
// operator sees matches what a default commit would act on.
var DefaultOptions = ImportOptions{
	BatchSize:         50,
	DefaultResolution: ResolutionKeepExisting,
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.BatchSize < 1 {
		o.BatchSize = DefaultOptions.BatchSize
	}
	if o.DefaultResolution == "" {
		o.DefaultResolution = DefaultOptions.DefaultResolution
	}
	return o
}

// AvailabilityError reports that the requested scope has nothing to import.
type AvailabilityError struct {
	Result AvailabilityResult
}

func (e *AvailabilityError) Error() string {
	return e.Result.Message
}

type PreviewResult struct {
	RecordCounts map[EntityType]int `json:"record_counts"`
	NewRecords   map[EntityType]int `json:"new_records"`
	Conflicts    []DataConflict     `json:"conflicts"`
	Summary      ConflictSummary    `json:"conflict_summary"`
}

// Engine is the import/reconciliation engine. It owns no durable state; the
// repository and the progress observer are injected so the engine can be
// exercised without any HTTP or platform context.
type Engine struct {
	repo     store.Repository
	observer ProgressFunc
}

func New(repo store.Repository, observer ProgressFunc) *Engine {
	return &Engine{repo: repo, observer: observer}
}

// Validate runs only the Schema Gate. It never touches the store.
func (e *Engine) Validate(raw map[string]any) ValidationResult {
	return ValidateSchema(raw)
}

// CheckAvailability validates the payload and reports what the requested
// scope would actually import. A *SchemaError return means the payload never
// passed the gate.
func (e *Engine) CheckAvailability(raw map[string]any, scope Scope) (AvailabilityResult, error) {
	if gate := ValidateSchema(raw); !gate.IsValid {
		return AvailabilityResult{}, &SchemaError{Result: gate}
	}
	return CheckAvailability(ParsePayload(raw), scope), nil
}

// Preview classifies the payload against the store's current state without
// writing anything. Preview and Commit share the same classification code,
// so what the operator is shown is exactly what a commit acts on.
func (e *Engine) Preview(ctx context.Context, raw map[string]any) (*PreviewResult, error) {
	if gate := ValidateSchema(raw); !gate.IsValid {
		return nil, &SchemaError{Result: gate}
	}
	payload := ParsePayload(raw)

	ix, err := BuildIndex(ctx, e.repo, payload)
	if err != nil {
		return nil, err
	}
	set := classify(payload, ix, DefaultOptions)

	preview := &PreviewResult{
		RecordCounts: make(map[EntityType]int, len(payload)),
		NewRecords:   make(map[EntityType]int, len(payload)),
		Conflicts:    set.conflicts,
		Summary:      BuildSummary(set.conflicts),
	}
	for entity, records := range payload {
		preview.RecordCounts[entity] = len(records)
	}
	for entity, records := range set.perType {
		for _, cr := range records {
			if cr.conflict == nil {
				preview.NewRecords[entity]++
			}
		}
	}
	return preview, nil
}

// Commit merges the payload into the store under the given options and
// resolution decisions. Structural and availability failures return an error
// before any store access; everything past that point is reported through
// the ImportResult, including per-chunk write failures.
func (e *Engine) Commit(ctx context.Context, raw map[string]any, opts ImportOptions, overrides map[string]ResolutionAction) (*ImportResult, error) {
	if gate := ValidateSchema(raw); !gate.IsValid {
		return nil, &SchemaError{Result: gate}
	}
	payload := ParsePayload(raw)

	if avail := CheckAvailability(payload, ScopeAll); !avail.IsValid {
		return nil, &AvailabilityError{Result: avail}
	}

	opts = opts.withDefaults()
	runID := uuid.NewString()
	started := time.Now()
	log.Printf("[importer] run %s: %d incoming records, batch size %d", runID, payload.TotalRecords(), opts.BatchSize)

	ix, err := BuildIndex(ctx, e.repo, payload)
	if err != nil {
		return nil, err
	}
	set := classify(payload, ix, opts)
	p := buildPlan(set, ix, opts, overrides)

	agg := newResultAggregator()
	exec := &executor{repo: e.repo, batchSize: opts.BatchSize, observer: e.observer}
	exec.run(ctx, p, agg)

	result := agg.finalize(runID)
	log.Printf("[importer] run %s finished in %s: imported=%d updated=%d skipped=%d errors=%d",
		runID, time.Since(started).Round(time.Millisecond),
		result.Totals.Imported, result.Totals.Updated, result.Totals.Skipped, len(result.Errors))
	return result, nil
}
