package hierarchy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"asset-console/internal/model"
)

func TestFilter(t *testing.T) {
	t.Parallel()

	tree := mustLoad(t, scenarioPayload)

	t.Run("keeps matches and prunes non-matching branches", func(t *testing.T) {
		filtered := Filter(tree.Root(), "Pump")
		require.NotNil(t, filtered)

		require.False(t, filtered.IsSearchResult)
		require.True(t, filtered.HasMatchingDescendant)
		require.Len(t, filtered.Children, 2)

		a := filtered.Children[0]
		require.Equal(t, "A", a.ID)
		require.True(t, a.IsSearchResult)

		b := filtered.Children[1]
		require.Equal(t, "B", b.ID)
		require.False(t, b.IsSearchResult)
		require.True(t, b.HasMatchingDescendant)
		require.Len(t, b.Children, 1)
		require.Equal(t, "C", b.Children[0].ID)
		require.True(t, b.Children[0].IsSearchResult)
	})

	t.Run("matches case-insensitively", func(t *testing.T) {
		filtered := Filter(tree.Root(), "vALVe")
		require.NotNil(t, filtered)
		require.Len(t, filtered.Children, 1)
		require.Equal(t, "B", filtered.Children[0].ID)
	})

	t.Run("matched node keeps its whole subtree", func(t *testing.T) {
		filtered := Filter(tree.Root(), "valve")
		require.NotNil(t, filtered)

		b := filtered.Children[0]
		require.True(t, b.IsSearchResult)
		require.Len(t, b.Children, 1)
		require.Equal(t, "Pump3", b.Children[0].Name)
		require.False(t, b.Children[0].IsSearchResult)
	})

	t.Run("returns nil when nothing matches", func(t *testing.T) {
		require.Nil(t, Filter(tree.Root(), "compressor"))
	})

	t.Run("blank term returns the tree unannotated", func(t *testing.T) {
		for _, term := range []string{"", "   "} {
			filtered := Filter(tree.Root(), term)
			require.NotNil(t, filtered)
			require.Empty(t, cmp.Diff(tree.Root(), *filtered))
		}
	})

	t.Run("does not touch the source tree", func(t *testing.T) {
		_ = Filter(tree.Root(), "Pump")
		root := tree.Root()
		require.False(t, root.Children[0].IsSearchResult)
		require.Len(t, root.Children[1].Children, 1)
	})
}

func TestHighlight(t *testing.T) {
	t.Parallel()

	t.Run("splits every occurrence", func(t *testing.T) {
		spans := Highlight("Pump pUMP station", "pump")
		require.Equal(t, []model.Span{
			{Text: "Pump", Match: true},
			{Text: " "},
			{Text: "pUMP", Match: true},
			{Text: " station"},
		}, spans)
	})

	t.Run("escapes regular expression characters", func(t *testing.T) {
		spans := Highlight("Tank (A)", "(a)")
		require.Equal(t, []model.Span{{Text: "Tank "}, {Text: "(A)", Match: true}}, spans)
	})

	t.Run("blank term or miss is one plain span", func(t *testing.T) {
		require.Equal(t, []model.Span{{Text: "Valve"}}, Highlight("Valve", ""))
		require.Equal(t, []model.Span{{Text: "Valve"}}, Highlight("Valve", "pump"))
	})

	t.Run("spans concatenate back to the name", func(t *testing.T) {
		var b strings.Builder
		for _, span := range Highlight("Pump1 backup pump", "PUMP") {
			b.WriteString(span.Text)
		}
		require.Equal(t, "Pump1 backup pump", b.String())
	})
}

func TestView(t *testing.T) {
	t.Parallel()

	tree := mustLoad(t, scenarioPayload)
	filtered := Filter(tree.Root(), "pump")
	require.NotNil(t, filtered)

	view := View(*filtered, "pump")
	require.Equal(t, "root", view.ID)
	require.Equal(t, []model.Span{{Text: "Pump", Match: true}, {Text: "1"}}, view.Children[0].Spans)
	require.True(t, view.Children[1].HasMatchingDescendant)
}

func TestFilterEmptyTermIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root, _ := genTree(t)
		term := rapid.SampledFrom([]string{"", " ", "\t", "  \n"}).Draw(t, "term")

		filtered := Filter(root, term)
		if filtered == nil {
			t.Fatalf("blank term must not filter")
		}
		if diff := cmp.Diff(root, *filtered); diff != "" {
			t.Fatalf("blank term changed the tree (-want +got):\n%s", diff)
		}
	})
}

func TestFilterKeepsOnlyRelevantNodes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root, _ := genTree(t)
		term := rapid.StringMatching(`[a-z]{1,2}`).Draw(t, "term")

		filtered := Filter(root, term)
		if filtered == nil {
			if anyMatch(root, term) {
				t.Fatalf("nil result although some node matches %q", term)
			}
			return
		}

		checkFiltered(t, *filtered, term)
	})
}

func anyMatch(node model.AssetNode, term string) bool {
	if strings.Contains(strings.ToLower(node.Name), strings.ToLower(term)) {
		return true
	}
	for _, child := range node.Children {
		if anyMatch(child, term) {
			return true
		}
	}
	return false
}

func checkFiltered(t *rapid.T, node model.AssetNode, term string) {
	matched := strings.Contains(strings.ToLower(node.Name), strings.ToLower(term))
	if node.IsSearchResult != matched {
		t.Fatalf("node %s: IsSearchResult=%v but match=%v", node.ID, node.IsSearchResult, matched)
	}
	if matched {
		return
	}
	if len(node.Children) == 0 {
		t.Fatalf("node %s kept without a match or surviving children", node.ID)
	}
	for _, child := range node.Children {
		checkFiltered(t, child, term)
	}
}
