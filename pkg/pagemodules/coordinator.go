package pagemodules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultWriteTimeout bounds each persistence write issued by a Coordinator.
const DefaultWriteTimeout = 10 * time.Second

// SnapshotKey is the snapshot store key of a content entity's published tree.
func SnapshotKey(contentID uuid.UUID) string {
	return fmt.Sprintf("pages/%s/tree.json", contentID)
}

// Coordinator owns the editing session of one content entity. It is the only
// component that commits structural changes: each mutation is applied to the
// in-memory tree first, then persisted, and on failure the tree is discarded
// and reloaded from storage.
//
// While a mutation is in flight the tree is locked; a second structural
// mutation fails with ErrTreeBusy instead of being computed against an
// unconfirmed tree. Reads are never blocked and observe the optimistic tree.
type Coordinator struct {
	contentID    uuid.UUID
	loader       *treeLoader
	modules      ModuleStore
	registry     *TypeRegistry
	events       EventSink
	snapshots    SnapshotStore
	logger       *slog.Logger
	writeTimeout time.Duration

	inflight sync.Mutex

	mu    sync.RWMutex
	tree  *Tree
	stale bool
}

// Tree returns the session tree, loading it when absent or stale.
func (c *Coordinator) Tree(ctx context.Context) (*Tree, error) {
	c.mu.RLock()
	tree, stale := c.tree, c.stale
	c.mu.RUnlock()
	if tree != nil && !stale {
		return tree, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tree != nil && !c.stale {
		return c.tree, nil
	}
	tree, err := c.loader.Load(ctx, c.contentID)
	if err != nil {
		return nil, err
	}
	c.tree, c.stale = tree, false
	return tree, nil
}

// loaded reports whether a tree was ever loaded into the session.
func (c *Coordinator) loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree != nil
}

// Reload discards the session tree and reloads it from storage.
func (c *Coordinator) Reload(ctx context.Context) (*Tree, error) {
	if !c.inflight.TryLock() {
		return nil, ErrTreeBusy
	}
	defer c.inflight.Unlock()
	return c.reload(ctx)
}

// Insert places a new module of the given type.
func (c *Coordinator) Insert(ctx context.Context, req InsertModuleRequest) (*Node, *Tree, error) {
	if !c.inflight.TryLock() {
		return nil, nil, ErrTreeBusy
	}
	defer c.inflight.Unlock()

	base, err := c.Tree(ctx)
	if err != nil {
		return nil, nil, err
	}
	typ, err := c.registry.ResolveForPlacement(ctx, req.ModuleTypeID)
	if err != nil {
		return nil, nil, err
	}
	schema, err := schemaFor(typ)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.ValidateAttributes(req.CustomAttributes); err != nil {
		return nil, nil, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	mut, err := base.Insert(PageModule{
		ID:               req.ID,
		ContentID:        c.contentID,
		ModuleTypeID:     typ.ID,
		ParentID:         cloneParentID(req.ParentID),
		CSSClasses:       req.CSSClasses,
		CustomAttributes: req.CustomAttributes,
		IsActive:         active,
	}, typ, req.Position)
	if err != nil {
		return nil, nil, err
	}

	created := mut.Created
	tree, err := c.apply(ctx, "create module", mut, func(ctx context.Context) error {
		return c.modules.CreateModule(ctx, created)
	})
	if err != nil {
		return nil, tree, err
	}
	c.emit("module inserted", c.events.ModuleInserted(ctx, created))
	node, _ := tree.Node(created.ID)
	return node, tree, nil
}

// Remove deletes a module and its subtree.
func (c *Coordinator) Remove(ctx context.Context, moduleID uuid.UUID) (*Tree, error) {
	if !c.inflight.TryLock() {
		return nil, ErrTreeBusy
	}
	defer c.inflight.Unlock()

	base, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	mut, err := base.Remove(moduleID)
	if err != nil {
		return nil, err
	}
	tree, err := c.apply(ctx, "delete module", mut, func(ctx context.Context) error {
		deleted, err := c.modules.DeleteModuleTree(ctx, moduleID)
		if err != nil {
			return err
		}
		if deleted != int64(len(mut.Removed)) {
			c.logger.Warn("storage subtree differs from session tree",
				"content_id", c.contentID, "module_id", moduleID, "deleted", deleted, "expected", len(mut.Removed))
		}
		return nil
	})
	if err != nil {
		return tree, err
	}
	c.emit("module removed", c.events.ModuleRemoved(ctx, c.contentID, mut.Removed))
	return tree, nil
}

// Move relocates a module under newParent at position. A move that changes
// nothing performs no writes.
func (c *Coordinator) Move(ctx context.Context, moduleID uuid.UUID, newParent *uuid.UUID, position int) (*Tree, error) {
	if !c.inflight.TryLock() {
		return nil, ErrTreeBusy
	}
	defer c.inflight.Unlock()

	base, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	mut, err := base.Move(moduleID, newParent, position)
	if err != nil {
		return nil, err
	}
	if len(mut.Placements) == 0 {
		return base, nil
	}
	return c.apply(ctx, "move module", mut, nil)
}

// SetAttributes applies a partial attribute edit to one module.
func (c *Coordinator) SetAttributes(ctx context.Context, moduleID uuid.UUID, edit AttributeEdit) (*Tree, error) {
	if !c.inflight.TryLock() {
		return nil, ErrTreeBusy
	}
	defer c.inflight.Unlock()

	base, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := base.nodes[moduleID]
	if !ok {
		return nil, notFound("module", moduleID)
	}
	if edit.CustomAttributes != nil {
		schema, err := schemaFor(n.Type)
		if err != nil {
			return nil, err
		}
		if err := schema.ValidateAttributes(edit.CustomAttributes); err != nil {
			return nil, &ModuleError{ModuleID: moduleID, Op: "edit attributes", Err: err}
		}
	}
	mut, err := base.SetAttributes(moduleID, edit)
	if err != nil {
		return nil, err
	}
	updated := mut.Updated
	tree, err := c.apply(ctx, "update module", mut, func(ctx context.Context) error {
		return c.modules.UpdateModule(ctx, updated)
	})
	if err != nil {
		return tree, err
	}
	c.emit("module updated", c.events.ModuleUpdated(ctx, updated))
	return tree, nil
}

// Publish writes the current tree to the snapshot store.
func (c *Coordinator) Publish(ctx context.Context) error {
	if c.snapshots == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	tree, err := c.Tree(ctx)
	if err != nil {
		return err
	}
	return c.publish(ctx, tree)
}

// apply runs the optimistic apply, persist, reconcile sequence for one
// mutation. primary is the single write of the mutation (nil for a pure
// reorder); the placements of the mutation are then written as a parallel
// batch.
func (c *Coordinator) apply(ctx context.Context, op string, mut *Mutation, primary func(context.Context) error) (*Tree, error) {
	c.setTree(mut.Tree)

	// Writes run to completion even if the caller goes away.
	wctx := context.WithoutCancel(ctx)

	if primary != nil {
		if err := c.write(wctx, primary); err != nil {
			c.logger.Error("single write failed, reloading tree", "content_id", c.contentID, "op", op, "error", err)
			if _, rerr := c.reload(wctx); rerr != nil {
				c.logger.Error("reload after failed write failed", "content_id", c.contentID, "error", rerr)
			}
			return nil, &PersistenceError{Op: op, Err: err}
		}
	}

	if len(mut.Placements) > 0 {
		failed, err := c.persistBatch(wctx, mut.Tree, mut.Placements)
		if failed > 0 {
			c.logger.Error("reorder batch failed, reloading tree",
				"content_id", c.contentID, "op", op, "failed", failed, "total", len(mut.Placements), "error", err)
			reloaded, rerr := c.reload(wctx)
			if rerr != nil {
				c.logger.Error("reload after failed reorder failed", "content_id", c.contentID, "error", rerr)
			}
			c.emit("reorder failed", c.events.ReorderFailed(wctx, c.contentID, err))
			return reloaded, &ReorderError{
				ContentID: c.contentID,
				Tree:      reloaded,
				Failed:    failed,
				Total:     len(mut.Placements),
				Err:       err,
			}
		}
		c.emit("modules reordered", c.events.ModulesReordered(wctx, c.contentID, mut.Placements))
	}

	c.publishQuietly(wctx)
	return mut.Tree, nil
}

// persistBatch writes every placement in parallel with no ordering between
// writes. It returns the number of failed writes and the first failure.
func (c *Coordinator) persistBatch(ctx context.Context, tree *Tree, placements []Placement) (int, error) {
	var g errgroup.Group
	var failed atomic.Int32
	for _, p := range placements {
		module := cloneModule(tree.nodes[p.ModuleID].Module)
		g.Go(func() error {
			err := c.write(ctx, func(ctx context.Context) error {
				return c.modules.UpdateModule(ctx, &module)
			})
			if err != nil {
				failed.Add(1)
				return fmt.Errorf("update module %s: %w", module.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(failed.Load()), err
}

// write runs one persistence call under the write deadline. A call that
// returns after the deadline counts as failed even when it reports success.
func (c *Coordinator) write(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		return fmt.Errorf("write exceeded %s deadline: %w", c.writeTimeout, ctx.Err())
	}
	return err
}

// reload replaces the session tree with the storage state. When loading
// fails the session is marked stale so the next read retries.
func (c *Coordinator) reload(ctx context.Context) (*Tree, error) {
	tree, err := c.loader.Load(ctx, c.contentID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tree, c.stale = nil, true
		return nil, err
	}
	c.tree, c.stale = tree, false
	return tree, nil
}

func (c *Coordinator) setTree(tree *Tree) {
	c.mu.Lock()
	c.tree, c.stale = tree, false
	c.mu.Unlock()
}

// patchData records a confirmed data write in the session tree. It waits for
// an in-flight mutation so the write is not lost when that mutation commits.
func (c *Coordinator) patchData(ctx context.Context, data *ModuleData) {
	c.inflight.Lock()
	defer c.inflight.Unlock()
	c.mu.Lock()
	if c.tree != nil {
		c.tree = c.tree.withData(data.PageModuleID, data.DataKey, data.DataValue)
	}
	c.mu.Unlock()
	c.publishQuietly(ctx)
}

func (c *Coordinator) publishQuietly(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	c.mu.RLock()
	tree := c.tree
	c.mu.RUnlock()
	if tree == nil {
		return
	}
	if err := c.publish(ctx, tree); err != nil {
		c.logger.Warn("failed to publish tree snapshot", "content_id", c.contentID, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, tree *Tree) error {
	b, err := json.Marshal(tree.Snapshot())
	if err != nil {
		return fmt.Errorf("encode tree snapshot: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := c.snapshots.Put(ctx, SnapshotKey(c.contentID), bytes.NewReader(b)); err != nil {
		return fmt.Errorf("put tree snapshot: %w", err)
	}
	return nil
}

func (c *Coordinator) emit(event string, err error) {
	if err != nil {
		c.logger.Warn("event sink failed", "event", event, "content_id", c.contentID, "error", err)
	}
}
