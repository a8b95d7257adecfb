package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netbrain/simphple-orm/internal/orm/schema"
	"github.com/netbrain/simphple-orm/internal/orm/tracking"
)

// attachTarget stores target under the owner with primary key ownerID.
// Transient targets are inserted; persisted ones are re-parented, or linked
// through the join table.
func (r *Repository) attachTarget(ctx context.Context, rel *schema.Relationship, ownerID, target any) error {
	repo, err := r.factory.repositoryFor(reflect.TypeOf(target))
	if err != nil {
		return err
	}
	tv, tm, err := repo.entityValue(target)
	if err != nil {
		return err
	}

	if rel.ViaJoinTable() {
		if tm.IsTransient() {
			if _, err := repo.persist(ctx, tv, tm, nil, nil); err != nil {
				return err
			}
		}
		_, err := r.factory.exec(ctx, rel.JoinInsertSQL(ownerID, repo.table.ID(tv)))
		return err
	}

	if tm.IsTransient() {
		_, err := repo.persist(ctx, tv, tm, ownerID, rel.ForeignKey)
		return err
	}
	targetID := repo.table.ID(tv)
	n, err := r.factory.execAffecting(ctx, rel.ReparentSQL(ownerID, targetID))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v is gone, cannot move it under %s %v",
			ErrOptimisticLock, repo.table.Name(), targetID, r.table.Name(), ownerID)
	}
	return nil
}

// syncRelation reconciles a loaded relationship with the snapshot. Targets
// only in the snapshot are deleted (join rows follow by cascade), targets
// only in the slot are attached. Unresolved slots are left alone.
func (r *Repository) syncRelation(ctx context.Context, v reflect.Value, m *Model, rel *schema.Relationship, ownerID any) error {
	s := slotOf(v, rel)
	if s.pending() {
		return nil
	}

	cached := cachedIdentities(m.snapshot[rel.Property])
	if s.unsettled() {
		// The slot was replaced before its target was ever fetched.
		current, err := r.loadRelated(ctx, rel, ownerID)
		if err != nil {
			return err
		}
		cached = cached[:0:0]
		for _, e := range current {
			cached = append(cached, r.identity(e))
		}
	}

	live := make(map[string]any)
	var order []string
	for _, target := range s.entities() {
		id := r.identity(target)
		key := id.String()
		if id.IsTransient() {
			key = "transient:" + uuid.NewString()
		}
		if _, seen := live[key]; seen {
			continue
		}
		live[key] = target
		order = append(order, key)
	}

	var stale []tracking.Identity
	known := make(map[string]bool, len(cached))
	for _, id := range cached {
		if id.IsTransient() {
			continue
		}
		known[id.String()] = true
		if _, ok := live[id.String()]; !ok {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		repo, err := r.factory.repositoryFor(rel.Target.EntityType())
		if err != nil {
			return err
		}
		for _, id := range stale {
			if err := repo.DeleteByID(ctx, id.ID); err != nil {
				return err
			}
			r.logger.Debug("deleted orphan", zap.String("property", rel.Property), zap.Any("id", id.ID))
		}
	}

	for _, key := range order {
		if known[key] {
			continue
		}
		if err := r.attachTarget(ctx, rel, ownerID, live[key]); err != nil {
			return err
		}
	}

	s.settle()
	return nil
}
