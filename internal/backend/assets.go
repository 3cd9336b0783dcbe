package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"asset-console/internal/model"
)

// FetchHierarchy returns the raw hierarchy payload. A 404 yields an empty
// payload, which the tree loader reports as an absent hierarchy.
func (c *Client) FetchHierarchy(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, request{op: "fetch hierarchy", method: http.MethodGet, path: "/AssetHierarchy"})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.body, nil
}

// TotalAssets returns the backend's asset count. A 404 counts as zero.
func (c *Client) TotalAssets(ctx context.Context) (int, error) {
	const op = "total assets"

	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/AssetHierarchy/TotalAssets"})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	raw := strings.Trim(strings.TrimSpace(string(resp.body)), `"`)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		var wrapped struct {
			Total int `json:"total"`
			Count int `json:"count"`
		}
		if decodeErr := decodeJSON(op, resp.body, &wrapped); decodeErr != nil {
			return 0, &model.TransportError{Op: op, Err: fmt.Errorf("unexpected count %q", raw)}
		}
		return max(wrapped.Total, wrapped.Count), nil
	}
	return n, nil
}

// CreateNode adds a node under an existing parent.
func (c *Client) CreateNode(ctx context.Context, node model.CreateNodeRequest) error {
	req, err := jsonRequest("create node", http.MethodPost, "/AssetHierarchy", node)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// AddRootAsset adds an asset at the top level of the hierarchy.
func (c *Client) AddRootAsset(ctx context.Context, name string) error {
	_, err := c.do(ctx, request{
		op:     "add asset",
		method: http.MethodPost,
		path:   "/AssetHierarchy/AddNewAsset",
		query:  url.Values{"assetName": {name}},
	})
	return err
}

func (c *Client) RenameNode(ctx context.Context, id string, name string) error {
	_, err := c.do(ctx, request{
		op:     "rename node",
		method: http.MethodPut,
		path:   "/AssetHierarchy/Update/" + escape(id),
		query:  url.Values{"name": {name}},
	})
	return err
}

func (c *Client) DeleteNode(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{op: "delete node", method: http.MethodDelete, path: "/AssetHierarchy/" + escape(id)})
	return err
}

func (c *Client) ReorderNode(ctx context.Context, assetID string, newParentID string) error {
	_, err := c.do(ctx, request{
		op:     "reorder node",
		method: http.MethodPost,
		path:   "/AssetHierarchy/ReorderAsset/" + escape(assetID) + "/" + escape(newParentID),
	})
	return err
}

// RequestStats asks the backend to compute signal averages for an asset. The
// result arrives later as a push event.
func (c *Client) RequestStats(ctx context.Context, assetID string) error {
	_, err := c.do(ctx, request{op: "request stats", method: http.MethodPost, path: "/AssetHierarchy/GetAssetInfo/" + escape(assetID)})
	return err
}
