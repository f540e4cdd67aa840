package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/signhub/signhub/internal/content"
	"github.com/signhub/signhub/internal/observability"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
)

// Service applies permission edits and cascades them through owned children.
// Edits are applied row by row: a failure part way through leaves earlier rows
// committed and the caller should re-read the permissions to see the outcome.
type Service struct {
	registry  *Registry
	store     Store
	hierarchy Hierarchy
	fonts     FontInvalidator
	audit     AuditRecorder
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService constructs a Service. fonts, audit and metrics may be nil.
func NewService(registry *Registry, store Store, hierarchy Hierarchy, fonts FontInvalidator, audit AuditRecorder, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  registry,
		store:     store,
		hierarchy: hierarchy,
		fonts:     fonts,
		audit:     audit,
		logger:    logger,
		metrics:   metrics,
	}
}

// ResolveEntity loads the object of the named kind.
func (s *Service) ResolveEntity(ctx context.Context, kind string, objectID int64) (content.Entity, error) {
	return s.registry.Resolve(ctx, kind, objectID)
}

// AuthorizeModify allows super admins, the owner, and members of a group that
// holds edit on the object.
func (s *Service) AuthorizeModify(ctx context.Context, actor rbac.Actor, entity content.Entity) error {
	if actor.IsSuperAdmin() || (actor.UserID != 0 && entity.OwnerID() == actor.UserID) {
		return nil
	}
	records, err := s.store.GetAllByObjectID(ctx, entity.Class(), entity.ID(), ListOptions{SetOnly: true})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Edit && actor.InGroup(rec.GroupID) {
			return nil
		}
	}
	return fmt.Errorf("permissions: user %d on %s %d: %w", actor.UserID, entity.Class(), entity.ID(), shared.ErrAccessDenied)
}

// ApplyGrants overwrites the flags of every record whose group appears in
// updates and saves it. Records of other groups are left as they are.
func (s *Service) ApplyGrants(ctx context.Context, records []*Record, updates GroupUpdates) error {
	for _, rec := range records {
		grant, ok := updates[rec.GroupID]
		if !ok {
			continue
		}
		rec.View = grant.View
		rec.Edit = grant.Edit
		rec.Delete = grant.Delete
		if err := s.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("permissions: save group %d on %s %d: %w", rec.GroupID, rec.Class, rec.ObjectID, err)
		}
		s.metrics.PermissionSaved(rec.Class.String())
	}
	return nil
}

// TransferOwnership moves the object to a new owner. Campaign owners are copied
// onto the campaign layouts, one level only.
func (s *Service) TransferOwnership(ctx context.Context, entity content.Entity, ownerID int64) error {
	if !entity.CanChangeOwner() {
		return shared.Misconfigured("Cannot change owner on this Object")
	}
	s.logger.Debug("change owner", slog.String("entity", entity.Class().String()), slog.Int64("id", entity.ID()), slog.Int64("owner", ownerID))
	if err := s.hierarchy.SetOwner(ctx, entity.Class(), entity.ID(), ownerID); err != nil {
		return fmt.Errorf("permissions: set owner: %w", err)
	}
	if entity.Class() != content.ClassCampaign {
		return nil
	}
	layouts, err := s.hierarchy.LayoutsByCampaign(ctx, entity.ID())
	if err != nil {
		return fmt.Errorf("permissions: campaign layouts: %w", err)
	}
	for _, layout := range layouts {
		if err := s.hierarchy.SetOwner(ctx, content.ClassLayout, layout.LayoutID, ownerID); err != nil {
			return fmt.Errorf("permissions: set layout %d owner: %w", layout.LayoutID, err)
		}
	}
	return nil
}

// ListPermissions returns the per-group grants on an object.
func (s *Service) ListPermissions(ctx context.Context, actor rbac.Actor, kind string, objectID int64, opts ListOptions) ([]*Record, error) {
	entity, err := s.ResolveEntity(ctx, kind, objectID)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeModify(ctx, actor, entity); err != nil {
		return nil, err
	}
	return s.store.GetAllByObjectID(ctx, entity.Class(), entity.ID(), opts)
}

// UpdatePermissions applies an edit: grants first, then an optional owner
// change, then the cascade.
func (s *Service) UpdatePermissions(ctx context.Context, actor rbac.Actor, req UpdateRequest) error {
	entity, err := s.ResolveEntity(ctx, req.Kind, req.ObjectID)
	if err != nil {
		return err
	}
	if err := s.AuthorizeModify(ctx, actor, entity); err != nil {
		return err
	}

	if err := s.applyTo(ctx, entity.Class(), entity.ID(), req.Groups); err != nil {
		return err
	}

	if req.OwnerID != 0 {
		if err := s.TransferOwnership(ctx, entity, req.OwnerID); err != nil {
			return err
		}
	}

	if err := s.Cascade(ctx, entity, req.Groups, req.Cascade); err != nil {
		return err
	}

	s.recordAudit(ctx, actor, entity, req)
	return nil
}

func (s *Service) applyTo(ctx context.Context, class content.Class, objectID int64, updates GroupUpdates) error {
	records, err := s.store.GetAllByObjectID(ctx, class, objectID, ListOptions{})
	if err != nil {
		return err
	}
	return s.ApplyGrants(ctx, records, updates)
}

func (s *Service) recordAudit(ctx context.Context, actor rbac.Actor, entity content.Entity, req UpdateRequest) {
	if s.audit == nil {
		return
	}
	groups := make(map[string]any, len(req.Groups))
	for id, g := range req.Groups {
		groups[strconv.FormatInt(id, 10)] = map[string]bool{"view": g.View, "edit": g.Edit, "delete": g.Delete}
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "permissions.update",
		Entity:   entity.Class().String(),
		EntityID: strconv.FormatInt(entity.ID(), 10),
		Meta: map[string]any{
			"groups":  groups,
			"ownerId": req.OwnerID,
			"cascade": req.Cascade,
		},
	})
	if err != nil {
		s.logger.Warn("audit permissions update", slog.Any("error", err))
	}
}
