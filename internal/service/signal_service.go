package service

import (
	"context"
	"strings"

	"asset-console/internal/metrics"
	"asset-console/internal/model"
	"asset-console/internal/util"
)

type SignalBackend interface {
	ListSignals(ctx context.Context, assetID string) ([]model.Signal, error)
	AddSignal(ctx context.Context, assetID string, in model.SignalRequest) error
	UpdateSignal(ctx context.Context, assetID string, signalID string, in model.SignalRequest) error
	DeleteSignal(ctx context.Context, assetID string, signalID string) error
}

// SignalService manages the signals attached to one asset. Every mutation
// answers with the list as re-read from the backend.
type SignalService struct {
	backend SignalBackend
	metrics *metrics.Collector
}

func NewSignalService(backend SignalBackend, collector *metrics.Collector) *SignalService {
	return &SignalService{backend: backend, metrics: collector}
}

func (s *SignalService) List(ctx context.Context, assetID string) ([]model.Signal, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, &model.InputError{Fields: []model.FieldError{{Field: "assetId", Rule: "is required"}}}
	}
	return s.backend.ListSignals(ctx, assetID)
}

func (s *SignalService) Add(ctx context.Context, assetID string, in model.SignalRequest) ([]model.Signal, error) {
	in = normalizeSignal(in)
	if err := util.ValidateStruct(in); err != nil {
		return nil, err
	}

	err := s.backend.AddSignal(ctx, assetID, in)
	s.metrics.Mutation("add_signal", err)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, assetID)
}

func (s *SignalService) Update(ctx context.Context, assetID string, signalID string, in model.SignalRequest) ([]model.Signal, error) {
	in = normalizeSignal(in)
	if err := util.ValidateStruct(in); err != nil {
		return nil, err
	}

	err := s.backend.UpdateSignal(ctx, assetID, signalID, in)
	s.metrics.Mutation("update_signal", err)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, assetID)
}

func (s *SignalService) Delete(ctx context.Context, assetID string, signalID string, confirmed bool) ([]model.Signal, error) {
	if !confirmed {
		return nil, model.ErrConfirmationRequired
	}

	err := s.backend.DeleteSignal(ctx, assetID, signalID)
	s.metrics.Mutation("delete_signal", err)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, assetID)
}

func normalizeSignal(in model.SignalRequest) model.SignalRequest {
	in.Name = strings.TrimSpace(in.Name)
	in.ValueType = model.ValueType(strings.ToLower(strings.TrimSpace(string(in.ValueType))))
	in.Description = strings.TrimSpace(in.Description)
	return in
}
