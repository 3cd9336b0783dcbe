package hierarchy

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"asset-console/internal/model"
)

func mustLoad(t *testing.T, payload string) *Tree {
	t.Helper()

	tree, err := Load([]byte(payload))
	require.NoError(t, err)
	return tree
}

// scenarioPayload is the tree used by the search and drag scenarios:
// root -> A(Pump1), B(Valve2) -> C(Pump3).
const scenarioPayload = `{
	"id": "root", "name": "Plant",
	"children": [
		{"id": "A", "name": "Pump1", "parentId": "root", "children": []},
		{"id": "B", "name": "Valve2", "parentId": "root", "children": [
			{"id": "C", "name": "Pump3", "parentId": "B"}
		]}
	]
}`

// genTree draws a random rooted tree with unique ids n0..nK. parents[i] is the
// index of node i's parent (-1 for the root).
func genTree(t *rapid.T) (model.AssetNode, []int) {
	size := rapid.IntRange(1, 25).Draw(t, "size")
	parents := make([]int, size)
	parents[0] = -1
	for i := 1; i < size; i++ {
		parents[i] = rapid.IntRange(0, i-1).Draw(t, fmt.Sprintf("parent%d", i))
	}

	names := make([]string, size)
	for i := range names {
		names[i] = rapid.StringMatching(`[A-Za-z]{1,3}[0-9]?`).Draw(t, fmt.Sprintf("name%d", i))
	}

	return buildTree(0, parents, names), parents
}

func buildTree(index int, parents []int, names []string) model.AssetNode {
	node := model.AssetNode{
		ID:       nodeID(index),
		Name:     names[index],
		Children: []model.AssetNode{},
	}
	if parents[index] >= 0 {
		node.ParentID = nodeID(parents[index])
	}
	for i := range parents {
		if parents[i] == index {
			node.Children = append(node.Children, buildTree(i, parents, names))
		}
	}
	return node
}

func nodeID(index int) string {
	return fmt.Sprintf("n%d", index)
}

func marshalTree(t require.TestingT, root model.AssetNode) []byte {
	data, err := json.Marshal(root)
	require.NoError(t, err)
	return data
}

// inSubtree reports whether node b lies strictly below node a, walking parent
// links upward from b.
func inSubtree(parents []int, a int, b int) bool {
	for cur := parents[b]; cur >= 0; cur = parents[cur] {
		if cur == a {
			return true
		}
	}
	return false
}
