package backend

import (
	"context"
	"net/http"

	"asset-console/internal/model"
)

type signalWire struct {
	ID          flexID `json:"id"`
	SignalID    flexID `json:"signalId"`
	AssetID     flexID `json:"assetId"`
	Name        string `json:"name"`
	ValueType   string `json:"valueType"`
	Description string `json:"description"`
}

func (w signalWire) toModel(assetID string) model.Signal {
	id := string(w.ID)
	if id == "" {
		id = string(w.SignalID)
	}
	owner := string(w.AssetID)
	if owner == "" {
		owner = assetID
	}
	return model.Signal{
		ID:          id,
		AssetID:     owner,
		Name:        w.Name,
		ValueType:   model.ValueType(w.ValueType),
		Description: w.Description,
	}
}

type signalBody struct {
	Name        string `json:"name"`
	ValueType   string `json:"valueType"`
	Description string `json:"description"`
	AssetID     any    `json:"assetId"`
}

func signalsPath(assetID string) string {
	return "/Signals/Asset/" + escape(assetID)
}

func (c *Client) ListSignals(ctx context.Context, assetID string) ([]model.Signal, error) {
	const op = "list signals"

	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: signalsPath(assetID) + "/AllSignals"})
	if err != nil {
		return nil, err
	}

	var wire []signalWire
	if len(resp.body) > 0 {
		if err := decodeJSON(op, resp.body, &wire); err != nil {
			return nil, err
		}
	}

	out := make([]model.Signal, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toModel(assetID))
	}
	return out, nil
}

func (c *Client) AddSignal(ctx context.Context, assetID string, in model.SignalRequest) error {
	req, err := jsonRequest("add signal", http.MethodPost, signalsPath(assetID)+"/AddSignal", newSignalBody(assetID, in))
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

func (c *Client) UpdateSignal(ctx context.Context, assetID string, signalID string, in model.SignalRequest) error {
	req, err := jsonRequest("update signal", http.MethodPut, signalsPath(assetID)+"/UpdateSignal/"+escape(signalID), newSignalBody(assetID, in))
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

func (c *Client) DeleteSignal(ctx context.Context, assetID string, signalID string) error {
	_, err := c.do(ctx, request{op: "delete signal", method: http.MethodDelete, path: signalsPath(assetID) + "/Delete/Signal/" + escape(signalID)})
	return err
}

func newSignalBody(assetID string, in model.SignalRequest) signalBody {
	return signalBody{
		Name:        in.Name,
		ValueType:   string(in.ValueType),
		Description: in.Description,
		AssetID:     idValue(assetID),
	}
}
