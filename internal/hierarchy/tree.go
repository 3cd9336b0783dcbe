// Package hierarchy holds the client-side projection of the asset tree and
// the pure functions that read it: lookup, search filtering and reorder
// validation. A Tree is immutable once loaded.
package hierarchy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"asset-console/internal/model"
)

type Tree struct {
	root  model.AssetNode
	index map[string]*model.AssetNode
}

// rawNode mirrors the backend payload. Ids may be sent as strings or numbers.
type rawNode struct {
	ID       rawID     `json:"id"`
	Name     string    `json:"name"`
	ParentID *rawID    `json:"parentId"`
	Children []rawNode `json:"children"`
}

type rawID struct {
	value string
	set   bool
}

func (r *rawID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*r = rawID{}
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = rawID{value: s, set: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*r = rawID{value: n.String(), set: true}
	return nil
}

func (r *rawID) present() bool {
	return r != nil && r.set && strings.TrimSpace(r.value) != ""
}

// Load parses a backend hierarchy payload. An empty payload yields
// model.ErrHierarchyAbsent; a payload that is not a single rooted tree with
// unique ids yields a *model.MalformedHierarchyError.
func Load(payload []byte) (*Tree, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, model.ErrHierarchyAbsent
	}

	var root rawNode
	if trimmed[0] == '[' {
		var roots []rawNode
		if err := json.Unmarshal(trimmed, &roots); err != nil {
			return nil, &model.MalformedHierarchyError{Reason: "invalid json: " + err.Error()}
		}
		switch len(roots) {
		case 0:
			return nil, model.ErrHierarchyAbsent
		case 1:
			root = roots[0]
		default:
			return nil, &model.MalformedHierarchyError{Reason: fmt.Sprintf("expected a single root, got %d", len(roots))}
		}
	} else {
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return nil, &model.MalformedHierarchyError{Reason: "invalid json: " + err.Error()}
		}
		if !root.ID.set && root.Name == "" && len(root.Children) == 0 {
			return nil, model.ErrHierarchyAbsent
		}
	}

	if root.ParentID.present() {
		return nil, &model.MalformedHierarchyError{Reason: "root node has a parent", NodeID: root.ID.value}
	}

	seen := make(map[string]struct{})
	node, err := convert(root, "", seen)
	if err != nil {
		return nil, err
	}

	return newTree(node), nil
}

func convert(raw rawNode, parentID string, seen map[string]struct{}) (model.AssetNode, error) {
	id := strings.TrimSpace(raw.ID.value)
	if !raw.ID.set || id == "" {
		return model.AssetNode{}, &model.MalformedHierarchyError{Reason: "node without id", NodeID: raw.Name}
	}

	if _, dup := seen[id]; dup {
		return model.AssetNode{}, &model.MalformedHierarchyError{Reason: "duplicate id", NodeID: id}
	}
	seen[id] = struct{}{}

	if parentID != "" {
		if !raw.ParentID.present() {
			return model.AssetNode{}, &model.MalformedHierarchyError{Reason: "more than one node without a parent", NodeID: id}
		}
		if strings.TrimSpace(raw.ParentID.value) != parentID {
			return model.AssetNode{}, &model.MalformedHierarchyError{
				Reason: "parent id " + strconv.Quote(raw.ParentID.value) + " does not match enclosing node " + strconv.Quote(parentID),
				NodeID: id,
			}
		}
	}

	node := model.AssetNode{
		ID:       id,
		Name:     raw.Name,
		ParentID: parentID,
		Children: make([]model.AssetNode, 0, len(raw.Children)),
	}

	for _, rawChild := range raw.Children {
		child, err := convert(rawChild, id, seen)
		if err != nil {
			return model.AssetNode{}, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}

func newTree(root model.AssetNode) *Tree {
	t := &Tree{root: root, index: make(map[string]*model.AssetNode)}
	t.indexNode(&t.root)
	return t
}

func (t *Tree) indexNode(node *model.AssetNode) {
	t.index[node.ID] = node
	for i := range node.Children {
		t.indexNode(&node.Children[i])
	}
}

// Root returns a copy of the whole tree.
func (t *Tree) Root() model.AssetNode {
	return t.root.Clone()
}

func (t *Tree) Len() int {
	return len(t.index)
}

func (t *Tree) RootID() string {
	return t.root.ID
}

func (t *Tree) FindByID(id string) (model.AssetNode, error) {
	node, ok := t.index[strings.TrimSpace(id)]
	if !ok {
		return model.AssetNode{}, fmt.Errorf("asset %q: %w", id, model.ErrNotFound)
	}
	return node.Clone(), nil
}

func (t *Tree) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

// IsDescendant reports whether candidateID lies strictly below ancestorID.
// Only the ancestor's subtree is walked and the walk stops at the first hit.
func (t *Tree) IsDescendant(ancestorID string, candidateID string) bool {
	ancestor, ok := t.index[ancestorID]
	if !ok {
		return false
	}
	return subtreeContains(ancestor, candidateID)
}

func subtreeContains(node *model.AssetNode, id string) bool {
	for i := range node.Children {
		child := &node.Children[i]
		if child.ID == id || subtreeContains(child, id) {
			return true
		}
	}
	return false
}
