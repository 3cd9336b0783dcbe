package service

import (
	"context"
	"log/slog"
	"strings"

	"asset-console/internal/hierarchy"
	"asset-console/internal/metrics"
	"asset-console/internal/model"
	"asset-console/internal/util"
)

type MutationBackend interface {
	AddRootAsset(ctx context.Context, name string) error
	CreateNode(ctx context.Context, node model.CreateNodeRequest) error
	RenameNode(ctx context.Context, id string, name string) error
	DeleteNode(ctx context.Context, id string) error
	ReorderNode(ctx context.Context, assetID string, newParentID string) error
	RequestStats(ctx context.Context, assetID string) error
}

type HierarchyReader interface {
	Refresh(ctx context.Context) Snapshot
	Current() Snapshot
}

// MutationService validates structural edits locally, sends them to the
// backend and re-reads the hierarchy on success. The local tree is never
// patched.
type MutationService struct {
	backend   MutationBackend
	hierarchy HierarchyReader
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewMutationService(backend MutationBackend, reader HierarchyReader, collector *metrics.Collector, logger *slog.Logger) *MutationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MutationService{
		backend:   backend,
		hierarchy: reader,
		metrics:   collector,
		logger:    logger.With("component", "mutations"),
	}
}

// AddNode creates a root-level asset.
func (s *MutationService) AddNode(ctx context.Context, name string) (Snapshot, error) {
	req := model.AddAssetRequest{Name: strings.TrimSpace(name)}
	if err := util.ValidateStruct(req); err != nil {
		return Snapshot{}, err
	}

	return s.commit(ctx, "add_node", func() error {
		return s.backend.AddRootAsset(ctx, req.Name)
	})
}

func (s *MutationService) AddChild(ctx context.Context, parentID string, id string, name string) (Snapshot, error) {
	req := model.CreateNodeRequest{
		ID:       strings.TrimSpace(id),
		Name:     strings.TrimSpace(name),
		ParentID: strings.TrimSpace(parentID),
	}
	if err := util.ValidateStruct(req); err != nil {
		return Snapshot{}, err
	}
	if err := s.requireNode(req.ParentID); err != nil {
		return Snapshot{}, err
	}

	return s.commit(ctx, "add_child", func() error {
		return s.backend.CreateNode(ctx, req)
	})
}

func (s *MutationService) RenameNode(ctx context.Context, id string, name string) (Snapshot, error) {
	req := model.RenameNodeRequest{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)}
	if err := util.ValidateStruct(req); err != nil {
		return Snapshot{}, err
	}
	if err := s.requireNode(req.ID); err != nil {
		return Snapshot{}, err
	}

	return s.commit(ctx, "rename", func() error {
		return s.backend.RenameNode(ctx, req.ID, req.Name)
	})
}

// DeleteNode removes a node and its subtree. Unconfirmed calls return
// model.ErrConfirmationRequired.
func (s *MutationService) DeleteNode(ctx context.Context, id string, confirmed bool) (Snapshot, error) {
	id = strings.TrimSpace(id)
	if err := s.requireNode(id); err != nil {
		return Snapshot{}, err
	}
	if !confirmed {
		return Snapshot{}, model.ErrConfirmationRequired
	}

	return s.commit(ctx, "delete", func() error {
		return s.backend.DeleteNode(ctx, id)
	})
}

// ReorderNode moves draggedID under targetID. The move is checked against the
// current snapshot first; rejected moves never reach the backend.
func (s *MutationService) ReorderNode(ctx context.Context, draggedID string, targetID string, confirmed bool) (Snapshot, error) {
	draggedID = strings.TrimSpace(draggedID)
	targetID = strings.TrimSpace(targetID)

	if err := hierarchy.ValidateReorder(s.hierarchy.Current().Tree, draggedID, targetID); err != nil {
		return Snapshot{}, err
	}
	if !confirmed {
		return Snapshot{}, model.ErrConfirmationRequired
	}

	return s.commit(ctx, "reorder", func() error {
		return s.backend.ReorderNode(ctx, draggedID, targetID)
	})
}

// RequestStats asks the backend for signal averages of an asset. The answer
// arrives later as a push event, so nothing is refreshed here.
func (s *MutationService) RequestStats(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.requireNode(id); err != nil {
		return err
	}

	err := s.backend.RequestStats(ctx, id)
	s.metrics.Mutation("request_stats", err)
	return err
}

func (s *MutationService) requireNode(id string) error {
	tree := s.hierarchy.Current().Tree
	if tree == nil {
		return model.ErrHierarchyAbsent
	}
	if _, err := tree.FindByID(id); err != nil {
		return err
	}
	return nil
}

func (s *MutationService) commit(ctx context.Context, op string, call func() error) (Snapshot, error) {
	err := call()
	s.metrics.Mutation(op, err)
	if err != nil {
		s.logger.Warn("mutation failed", "op", op, "error", err)
		return Snapshot{}, err
	}

	s.logger.Info("mutation applied", "op", op)
	return s.hierarchy.Refresh(ctx), nil
}
