package pagemodules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository   Repository
	eventSink    EventSink
	snapshots    SnapshotStore
	logger       *slog.Logger
	writeTimeout time.Duration

	registry *TypeRegistry
	data     *DataStore
	loader   *treeLoader

	mu       sync.Mutex
	sessions map[uuid.UUID]*Coordinator
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the persistence API. The repository also serves as
// type catalog and content existence check.
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithSnapshotStore enables publishing of confirmed trees
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *service) {
		s.snapshots = store
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithWriteTimeout sets the deadline applied to each persistence write
func WithWriteTimeout(d time.Duration) Option {
	return func(s *service) {
		s.writeTimeout = d
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		sessions:     make(map[uuid.UUID]*Coordinator),
		writeTimeout: DefaultWriteTimeout,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.writeTimeout <= 0 {
		return nil, fmt.Errorf("write timeout must be positive")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.registry = NewTypeRegistry(s.repository)
	s.data = NewDataStore(s.repository, s.repository, s.registry)
	s.loader = &treeLoader{
		content:  s.repository,
		modules:  s.repository,
		data:     s.repository,
		registry: s.registry,
		logger:   s.logger,
	}
	return s, nil
}

// Module type catalog

func (s *service) ListActiveModuleTypes(ctx context.Context) ([]*ModuleType, error) {
	return s.registry.ListActive(ctx)
}

func (s *service) ListModuleTypes(ctx context.Context, req ListModuleTypesRequest) ([]*ModuleType, error) {
	return s.registry.List(ctx, ModuleTypeFilter{IsActive: req.IsActive, Offset: req.Skip, Limit: req.Limit})
}

func (s *service) GetModuleType(ctx context.Context, id uuid.UUID) (*ModuleType, error) {
	return s.registry.Get(ctx, id)
}

// Editing sessions

func (s *service) GetTree(ctx context.Context, contentID uuid.UUID) (*Tree, error) {
	c := s.session(contentID)
	tree, err := c.Tree(ctx)
	s.release(contentID, c, err)
	return tree, err
}

func (s *service) ReloadTree(ctx context.Context, contentID uuid.UUID) (*Tree, error) {
	c := s.session(contentID)
	tree, err := c.Reload(ctx)
	s.release(contentID, c, err)
	return tree, err
}

func (s *service) CloseSession(contentID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, contentID)
	s.mu.Unlock()
}

func (s *service) GetModule(ctx context.Context, contentID, moduleID uuid.UUID) (*Node, error) {
	tree, err := s.GetTree(ctx, contentID)
	if err != nil {
		return nil, err
	}
	n, ok := tree.Node(moduleID)
	if !ok {
		return nil, notFound("module", moduleID)
	}
	return n, nil
}

// Structural mutations

func (s *service) ApplyInsert(ctx context.Context, req InsertModuleRequest) (*Node, *Tree, error) {
	c := s.session(req.ContentID)
	node, tree, err := c.Insert(ctx, req)
	s.release(req.ContentID, c, err)
	return node, tree, err
}

func (s *service) ApplyRemove(ctx context.Context, req RemoveModuleRequest) (*Tree, error) {
	c := s.session(req.ContentID)
	tree, err := c.Remove(ctx, req.ModuleID)
	s.release(req.ContentID, c, err)
	return tree, err
}

func (s *service) ApplyMove(ctx context.Context, req MoveModuleRequest) (*Tree, error) {
	c := s.session(req.ContentID)
	tree, err := c.Move(ctx, req.ModuleID, req.NewParentID, req.Position)
	s.release(req.ContentID, c, err)
	return tree, err
}

func (s *service) ApplyAttributeEdit(ctx context.Context, req EditAttributesRequest) (*Tree, error) {
	c := s.session(req.ContentID)
	tree, err := c.SetAttributes(ctx, req.ModuleID, req.Edit)
	s.release(req.ContentID, c, err)
	return tree, err
}

// Module data

func (s *service) UpsertModuleData(ctx context.Context, req UpsertModuleDataRequest) (*ModuleData, error) {
	stored, module, err := s.data.upsert(ctx, req.ModuleID, req.Key, req.Value)
	if err != nil {
		return nil, err
	}
	if c := s.existingSession(module.ContentID); c != nil {
		c.patchData(ctx, stored)
	}
	if err := s.eventSink.ModuleDataUpserted(ctx, stored); err != nil {
		s.logger.Warn("event sink failed", "event", "module data upserted", "module_id", stored.PageModuleID, "error", err)
	}
	return stored, nil
}

func (s *service) ListModuleData(ctx context.Context, moduleID uuid.UUID) (map[string]interface{}, error) {
	return s.data.ListFor(ctx, moduleID)
}

// Renderer hand-off

func (s *service) PublishTree(ctx context.Context, contentID uuid.UUID) error {
	c := s.session(contentID)
	err := c.Publish(ctx)
	s.release(contentID, c, err)
	return err
}

// session returns the coordinator of a content entity, creating it on first
// use. The tree itself is loaded lazily.
func (s *service) session(contentID uuid.UUID) *Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[contentID]
	if !ok {
		c = &Coordinator{
			contentID:    contentID,
			loader:       s.loader,
			modules:      s.repository,
			registry:     s.registry,
			events:       s.eventSink,
			snapshots:    s.snapshots,
			logger:       s.logger,
			writeTimeout: s.writeTimeout,
		}
		s.sessions[contentID] = c
	}
	return c
}

// release drops a session whose content turned out not to exist, so lookups
// of unknown content ids do not accumulate coordinators.
func (s *service) release(contentID uuid.UUID, c *Coordinator, err error) {
	if err == nil || !errors.Is(err, ErrNotFound) || c.loaded() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[contentID] == c {
		delete(s.sessions, contentID)
	}
}

func (s *service) existingSession(contentID uuid.UUID) *Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[contentID]
}
