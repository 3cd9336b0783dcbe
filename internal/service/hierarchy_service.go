package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"asset-console/internal/event"
	"asset-console/internal/hierarchy"
	"asset-console/internal/metrics"
	"asset-console/internal/model"
)

type HierarchyBackend interface {
	FetchHierarchy(ctx context.Context) ([]byte, error)
	TotalAssets(ctx context.Context) (int, error)
}

// Snapshot is one immutable result of a refresh. Tree is nil unless Status
// is ready.
type Snapshot struct {
	Status      model.HierarchyStatus
	Tree        *hierarchy.Tree
	Total       int
	Err         error
	Version     uint64
	RefreshedAt time.Time
}

// HierarchyService owns the local projection of the backend hierarchy. The
// projection is replaced wholesale on every refresh and never patched.
type HierarchyService struct {
	backend HierarchyBackend
	bus     event.Bus
	metrics *metrics.Collector
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	group   singleflight.Group
	pending atomic.Int64

	mu      sync.RWMutex
	current Snapshot
	version uint64
}

func NewHierarchyService(backend HierarchyBackend, bus event.Bus, collector *metrics.Collector, logger *slog.Logger, timeout time.Duration) *HierarchyService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HierarchyService{
		backend: backend,
		bus:     bus,
		metrics: collector,
		logger:  logger.With("component", "hierarchy"),
		timeout: timeout,
		now:     time.Now,
		current: Snapshot{Status: model.HierarchyStatusEmpty},
	}
}

// Refresh re-reads the hierarchy and the asset count. Concurrent callers
// share one round trip and receive the same snapshot. Failures never escape:
// they produce an errored snapshot with no tree and a zero total.
//
// The round trip runs detached from ctx, so a caller that gives up early
// gets the current snapshot while the refresh still completes for others.
func (s *HierarchyService) Refresh(ctx context.Context) Snapshot {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	detached := context.WithoutCancel(ctx)
	result := s.group.DoChan("refresh", func() (any, error) {
		return s.fetch(detached), nil
	})

	select {
	case res := <-result:
		if res.Shared {
			s.metrics.RefreshJoined()
		}
		return res.Val.(Snapshot)
	case <-ctx.Done():
		return s.Current()
	}
}

// Pending reports how many callers are currently waiting in Refresh.
func (s *HierarchyService) Pending() int {
	return int(s.pending.Load())
}

func (s *HierarchyService) fetch(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()

	var (
		payload []byte
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.backend.FetchHierarchy(gctx)
		payload = p
		return err
	})
	g.Go(func() error {
		n, err := s.backend.TotalAssets(gctx)
		total = n
		return err
	})

	err := g.Wait()
	var tree *hierarchy.Tree
	if err == nil {
		tree, err = hierarchy.Load(payload)
	}

	next := Snapshot{RefreshedAt: s.now()}
	switch {
	case err == nil:
		next.Status = model.HierarchyStatusReady
		next.Tree = tree
		next.Total = total
	case errors.Is(err, model.ErrHierarchyAbsent):
		next.Status = model.HierarchyStatusAbsent
	default:
		next.Status = model.HierarchyStatusErrored
		next.Err = err
	}

	s.mu.Lock()
	s.version++
	next.Version = s.version
	s.current = next
	s.mu.Unlock()

	s.metrics.ObserveRefresh(string(next.Status), s.now().Sub(started))
	s.announce(next)
	return next
}

func (s *HierarchyService) announce(snap Snapshot) {
	payload := event.HierarchyPayload{Status: snap.Status, Version: snap.Version, Total: snap.Total}
	eventType := event.TypeHierarchyRefreshed
	if snap.Err != nil {
		payload.Error = snap.Err.Error()
		eventType = event.TypeHierarchyErrored
		s.logger.Error("hierarchy refresh failed", "version", snap.Version, "error", snap.Err)
	} else {
		s.logger.Debug("hierarchy refreshed", "version", snap.Version, "status", snap.Status, "total", snap.Total)
	}

	if s.bus != nil {
		s.bus.Publish(event.New(eventType, payload))
	}
}

func (s *HierarchyService) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Clear drops the projection, as on logout. In-flight refreshes still land
// afterwards with a newer version.
func (s *HierarchyService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Snapshot{Status: model.HierarchyStatusEmpty, Version: s.version}
}

// View renders the current tree filtered by term.
func (s *HierarchyService) View(term string) model.HierarchyViewData {
	return s.Current().View(term)
}

// View renders the snapshot filtered by term.
func (snap Snapshot) View(term string) model.HierarchyViewData {
	data := model.HierarchyViewData{
		Status:  snap.Status,
		Term:    term,
		Total:   snap.Total,
		Version: snap.Version,
	}
	if !snap.RefreshedAt.IsZero() {
		at := snap.RefreshedAt
		data.RefreshedAt = &at
	}
	if snap.Err != nil {
		data.Error = snap.Err.Error()
	}
	if snap.Tree == nil {
		return data
	}

	filtered := hierarchy.Filter(snap.Tree.Root(), term)
	if filtered == nil {
		data.NoMatches = true
		return data
	}

	root := hierarchy.View(*filtered, term)
	data.Root = &root
	return data
}

// Node returns the subtree rooted at id from the current projection.
func (s *HierarchyService) Node(id string) (model.NodeView, error) {
	snap := s.Current()
	if snap.Tree == nil {
		return model.NodeView{}, model.ErrHierarchyAbsent
	}

	node, err := snap.Tree.FindByID(id)
	if err != nil {
		return model.NodeView{}, err
	}
	return hierarchy.View(node, ""), nil
}

// ValidateMove checks a reorder against the current projection without
// touching the network.
func (s *HierarchyService) ValidateMove(draggedID string, targetID string) error {
	return hierarchy.ValidateReorder(s.Current().Tree, draggedID, targetID)
}
