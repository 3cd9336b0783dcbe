package hierarchy

import (
	"regexp"
	"strings"

	"asset-console/internal/model"
)

// Filter returns the part of the tree visible for a search term.
//
// A node whose name contains the term (case-insensitive) is kept with all of
// its original descendants and marked IsSearchResult. A node that does not
// match is kept only when some descendant survives, and then carries only the
// surviving children. A blank term returns the tree unchanged. Nil means
// nothing matched.
func Filter(root model.AssetNode, term string) *model.AssetNode {
	if strings.TrimSpace(term) == "" {
		out := root.Clone()
		return &out
	}

	return filterNode(root, strings.ToLower(term))
}

func filterNode(node model.AssetNode, lowerTerm string) *model.AssetNode {
	if matches(node.Name, lowerTerm) {
		out := node.Clone()
		out.IsSearchResult = true
		return &out
	}

	survivors := make([]model.AssetNode, 0)
	for _, child := range node.Children {
		if kept := filterNode(child, lowerTerm); kept != nil {
			survivors = append(survivors, *kept)
		}
	}

	if len(survivors) == 0 {
		return nil
	}

	out := node
	out.Children = survivors
	out.IsSearchResult = false
	out.HasMatchingDescendant = true
	return &out
}

func matches(name string, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(name), lowerTerm)
}

// Highlight splits name into spans so every case-insensitive occurrence of
// term can be rendered with emphasis. A blank term yields one plain span.
func Highlight(name string, term string) []model.Span {
	if name == "" {
		return nil
	}
	if strings.TrimSpace(term) == "" {
		return []model.Span{{Text: name}}
	}

	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
	if err != nil {
		return []model.Span{{Text: name}}
	}

	locations := pattern.FindAllStringIndex(name, -1)
	if len(locations) == 0 {
		return []model.Span{{Text: name}}
	}

	spans := make([]model.Span, 0, len(locations)*2+1)
	cursor := 0
	for _, loc := range locations {
		if loc[0] > cursor {
			spans = append(spans, model.Span{Text: name[cursor:loc[0]]})
		}
		spans = append(spans, model.Span{Text: name[loc[0]:loc[1]], Match: true})
		cursor = loc[1]
	}
	if cursor < len(name) {
		spans = append(spans, model.Span{Text: name[cursor:]})
	}

	return spans
}

// View converts a (possibly filtered) tree into its render form with
// highlight spans for term.
func View(node model.AssetNode, term string) model.NodeView {
	view := model.NodeView{
		ID:                    node.ID,
		Name:                  node.Name,
		ParentID:              node.ParentID,
		Spans:                 Highlight(node.Name, term),
		IsSearchResult:        node.IsSearchResult,
		HasMatchingDescendant: node.HasMatchingDescendant,
		Children:              make([]model.NodeView, 0, len(node.Children)),
	}

	for _, child := range node.Children {
		view.Children = append(view.Children, View(child, term))
	}

	return view
}
