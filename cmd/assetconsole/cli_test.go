package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-console/internal/backend/backendtest"
	"asset-console/internal/model"
)

func TestRenderTree(t *testing.T) {
	t.Parallel()

	view := model.HierarchyViewData{
		Status:  model.HierarchyStatusReady,
		Term:    "pu",
		Total:   2,
		Version: 3,
		Root: &model.NodeView{
			ID:                    "1",
			Name:                  "Plant",
			Spans:                 []model.Span{{Text: "Plant"}},
			HasMatchingDescendant: true,
			Children: []model.NodeView{{
				ID:             "2",
				Name:           "Pump",
				Spans:          []model.Span{{Text: "Pu", Match: true}, {Text: "mp"}},
				IsSearchResult: true,
			}},
		},
	}

	t.Run("plain", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.NoError(t, renderTree(&out, view, false))
		assert.Equal(t, "Plant (1)\n  Pump (2)\n\n2 assets, version 3\n", out.String())
	})

	t.Run("highlighted", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.NoError(t, renderTree(&out, view, true))
		assert.Contains(t, out.String(), "  "+ansiHighlight+"Pu"+ansiReset+"mp (2)\n")
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.NoError(t, renderTree(&out, model.HierarchyViewData{Status: model.HierarchyStatusReady, Term: "zz", NoMatches: true, Root: view.Root}, false))
		assert.Equal(t, "No assets match \"zz\".\n", out.String())
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.NoError(t, renderTree(&out, model.HierarchyViewData{Status: model.HierarchyStatusAbsent}, false))
		assert.Equal(t, "No hierarchy found.\n", out.String())
	})
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: " YES \n", want: true},
		{input: "yes", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
		{input: "sure\n", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "Delete?"))
			assert.Equal(t, "Delete? [y/N] ", out.String())
		})
	}
}

func setBackendEnv(t *testing.T, backend *backendtest.Server) {
	t.Helper()

	t.Setenv("BACKEND_URL", backend.APIURL())
	t.Setenv("PUSH_HUB_URL", backend.HubURL())
	t.Setenv("BACKEND_USERNAME", "ada")
	t.Setenv("BACKEND_PASSWORD", "secret1")
	t.Setenv("BACKEND_TOKEN", "")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

var admin = backendtest.User{ID: 7, Username: "ada", Password: "secret1", Role: "Admin"}

func TestTreeCommandSearches(t *testing.T) {
	backend := backendtest.New(t, admin)
	setBackendEnv(t, backend)

	out, err := execute(t, "", "tree", "--search", "pump3")
	require.NoError(t, err)
	assert.Equal(t, "Plant (1)\n  Valve2 (3)\n    Pump3 (4)\n\n4 assets, version 1\n", out)
}

func TestDeleteCommandAsksFirst(t *testing.T) {
	backend := backendtest.New(t, admin)
	setBackendEnv(t, backend)

	_, err := execute(t, "n\n", "delete", "4")
	require.ErrorIs(t, err, errAborted)
	assert.Empty(t, backend.Calls())

	out, err := execute(t, "y\n", "delete", "4")
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted "Pump3" (4).`)
	assert.Equal(t, []string{"DELETE /AssetHierarchy/4"}, backend.Calls())
}

func TestMoveCommandRejectsCycleLocally(t *testing.T) {
	backend := backendtest.New(t, admin)
	setBackendEnv(t, backend)

	_, err := execute(t, "", "move", "3", "4", "--yes")
	require.Error(t, err)

	var rejected *model.ReorderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Empty(t, backend.Calls())
}
