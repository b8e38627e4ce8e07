package importer

import (
	"context"
	"fmt"
	"log"

	"tokosync/backend/internal/store"
)

type ImportProgress struct {
	Stage      string  `json:"stage"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ProgressFunc receives progress events synchronously, in the order batches
// complete. Buffering or debouncing for UI purposes is the caller's job.
type ProgressFunc func(ImportProgress)

type executor struct {
	repo      store.Repository
	batchSize int
	observer  ProgressFunc
}

// run applies the plan in fixed entity order, in chunks of batchSize, each
// chunk inside one transactional scope. A failed chunk rolls back alone and
// the run continues: one bad record must not block the rest of the file.
// Cancellation is cooperative; chunks already committed stay committed.
func (e *executor) run(ctx context.Context, p *plan, agg *resultAggregator) {
	total := p.totalOps()
	current := 0

	for _, entity := range knownEntityTypes() {
		ops := p.ops[entity]
		if len(ops) == 0 {
			continue
		}
		c := codecFor(entity)

		for start := 0; start < len(ops); start += e.batchSize {
			if err := ctx.Err(); err != nil {
				agg.noteCanceled()
				agg.addError(entity, nil, fmt.Sprintf("import canceled, remaining records not applied: %v", err))
				return
			}

			chunk := ops[start:min(start+e.batchSize, len(ops))]
			err := e.repo.InTransaction(ctx, func(txRepo store.Repository) error {
				for _, op := range chunk {
					if err := applyOp(ctx, txRepo, c, op); err != nil {
						return err
					}
				}
				return nil
			})

			if err != nil {
				agg.noteChunkAbort()
				log.Printf("[importer] WARN: %s chunk rolled back: %v", entity, err)
				for _, op := range chunk {
					agg.addSkipped(entity)
					if op.kind != opSkip {
						agg.addError(entity, op.record, fmt.Sprintf("chunk rolled back: %v", err))
					}
				}
			} else {
				for _, op := range chunk {
					switch op.kind {
					case opInsert:
						agg.addImported(entity)
					case opUpdate:
						agg.addUpdated(entity)
					default:
						agg.addSkipped(entity)
					}
				}
			}

			current += len(chunk)
			e.emit(c.label, current, total)
		}
	}
}

func applyOp(ctx context.Context, repo store.Repository, c *codec, op operation) error {
	switch op.kind {
	case opInsert:
		return c.insert(ctx, repo, op.record, newStrongID(c, op.record))
	case opUpdate:
		return c.update(ctx, repo, op.record, op.existingID)
	default:
		return nil
	}
}

func (e *executor) emit(stage string, current, total int) {
	if e.observer == nil {
		return
	}
	percentage := 0.0
	if total > 0 {
		percentage = float64(current) / float64(total) * 100
	}
	e.observer(ImportProgress{
		Stage:      stage,
		Current:    current,
		Total:      total,
		Percentage: percentage,
	})
}
