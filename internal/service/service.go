package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tokosync/backend/internal/cache"
	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/importer"
	"tokosync/backend/internal/store"
	"tokosync/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	engine     *importer.Engine
	previews   cache.PreviewCache
	previewTTL time.Duration
	batchSize  int
}

func New(repo store.Repository, engine *importer.Engine, previews cache.PreviewCache, previewTTL time.Duration, batchSize int) *Service {
	if previews == nil {
		previews = cache.NoopPreviewCache{}
	}
	if previewTTL <= 0 {
		previewTTL = 5 * time.Minute
	}
	if batchSize < 1 {
		batchSize = importer.DefaultOptions.BatchSize
	}

	return &Service{
		repo:       repo,
		engine:     engine,
		previews:   previews,
		previewTTL: previewTTL,
		batchSize:  batchSize,
	}
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.repo.ListItems(ctx)
}

func (s *Service) ListPriceTiers(ctx context.Context) ([]domain.PriceTier, error) {
	return s.repo.ListPriceTiers(ctx)
}

func (s *Service) ListMovements(ctx context.Context) ([]domain.InventoryMovement, error) {
	return s.repo.ListMovements(ctx)
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) GetShopProfile(ctx context.Context) (*domain.ShopProfile, error) {
	return s.repo.GetShopProfile(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

// ValidateImport runs the schema gate only; nothing is read from or
// written to the store.
func (s *Service) ValidateImport(raw map[string]any) importer.ValidationResult {
	return s.engine.Validate(raw)
}

func (s *Service) CheckImportAvailability(raw map[string]any, scope importer.Scope) (importer.AvailabilityResult, error) {
	return s.engine.CheckAvailability(raw, scope)
}

// PreviewImport classifies the payload against current store state. Results
// are cached by payload checksum so an operator reviewing conflicts does not
// pay for reclassification on every page load.
func (s *Service) PreviewImport(ctx context.Context, raw map[string]any) (*importer.PreviewResult, error) {
	key, err := payloadChecksum(raw)
	if err == nil {
		if cached, ok, cacheErr := s.previews.Get(ctx, key); cacheErr == nil && ok {
			return cached, nil
		}
	}

	result, err := s.engine.Preview(ctx, raw)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.previews.Set(ctx, key, result, s.previewTTL); err != nil {
			log.Printf("[service] WARN: failed to cache preview: %v", err)
		}
	}
	return result, nil
}

func (s *Service) CommitImport(ctx context.Context, raw map[string]any, opts importer.ImportOptions, overrides map[string]importer.ResolutionAction) (*importer.ImportResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = s.batchSize
	}

	result, err := s.engine.Commit(ctx, raw, opts, overrides)
	if err != nil {
		return nil, err
	}

	// The commit changed store state, so a cached preview of this payload no
	// longer reflects what a rerun would classify.
	if key, ckErr := payloadChecksum(raw); ckErr == nil {
		if err := s.previews.Delete(ctx, key); err != nil {
			log.Printf("[service] WARN: failed to drop cached preview: %v", err)
		}
	}

	s.logAudit(ctx, "import_commit", "import_run", result.RunID,
		fmt.Sprintf("success=%t,imported=%d,updated=%d,skipped=%d,errors=%d",
			result.Success, result.Totals.Imported, result.Totals.Updated, result.Totals.Skipped, len(result.Errors)))
	return result, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func payloadChecksum(raw map[string]any) (string, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
