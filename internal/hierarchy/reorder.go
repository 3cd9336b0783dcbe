package hierarchy

import (
	"fmt"

	"asset-console/internal/model"
)

// ValidateReorder checks a proposed reparent of draggedID under targetID.
// It returns nil when the move is allowed, a *model.ReorderRejectedError when
// it must not be sent, or model.ErrNotFound when either id is unknown.
func ValidateReorder(tree *Tree, draggedID string, targetID string) error {
	if draggedID == targetID {
		return &model.ReorderRejectedError{Reason: model.RejectSameNode}
	}

	if tree == nil {
		return fmt.Errorf("no hierarchy loaded: %w", model.ErrNotFound)
	}

	dragged, ok := tree.index[draggedID]
	if !ok {
		return fmt.Errorf("asset %q: %w", draggedID, model.ErrNotFound)
	}
	if !tree.Contains(targetID) {
		return fmt.Errorf("asset %q: %w", targetID, model.ErrNotFound)
	}

	if dragged.ParentID == targetID {
		return &model.ReorderRejectedError{Reason: model.RejectNoOp}
	}

	if tree.IsDescendant(draggedID, targetID) {
		return &model.ReorderRejectedError{Reason: model.RejectCyclicMove}
	}

	return nil
}
