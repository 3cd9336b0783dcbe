package model

import "time"

// AssetNode is one node of the asset hierarchy. IsSearchResult and
// HasMatchingDescendant are view annotations set by the search filter and are
// never sent back to the backend.
type AssetNode struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	ParentID              string      `json:"parentId,omitempty"`
	Children              []AssetNode `json:"children"`
	IsSearchResult        bool        `json:"isSearchResult,omitempty"`
	HasMatchingDescendant bool        `json:"hasMatchingDescendant,omitempty"`
}

// Clone returns a deep copy of the node and its subtree.
func (n AssetNode) Clone() AssetNode {
	out := n
	if n.Children != nil {
		out.Children = make([]AssetNode, len(n.Children))
		for i := range n.Children {
			out.Children[i] = n.Children[i].Clone()
		}
	}
	return out
}

// Span is one piece of a display name split for highlighting.
type Span struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// NodeView is the render-ready form of a node: the name is pre-split into
// highlight spans for the active search term.
type NodeView struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	ParentID              string     `json:"parentId,omitempty"`
	Spans                 []Span     `json:"spans,omitempty"`
	IsSearchResult        bool       `json:"isSearchResult"`
	HasMatchingDescendant bool       `json:"hasMatchingDescendant"`
	Children              []NodeView `json:"children"`
}

type HierarchyStatus string

const (
	HierarchyStatusEmpty   HierarchyStatus = "empty"
	HierarchyStatusReady   HierarchyStatus = "ready"
	HierarchyStatusAbsent  HierarchyStatus = "absent"
	HierarchyStatusErrored HierarchyStatus = "errored"
)

type HierarchyViewData struct {
	Status      HierarchyStatus `json:"status"`
	Term        string          `json:"term,omitempty"`
	Total       int             `json:"total"`
	Version     uint64          `json:"version"`
	RefreshedAt *time.Time      `json:"refreshedAt,omitempty"`
	Error       string          `json:"error,omitempty"`
	NoMatches   bool            `json:"noMatches"`
	Root        *NodeView       `json:"root,omitempty"`
}

type ImportLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	RawTime   string    `json:"rawTime"`
	Details   any       `json:"details"`
}

type ImportMode string

const (
	ImportModeReplace ImportMode = "replace"
	ImportModeMerge   ImportMode = "merge"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
