package raeconfig

import (
	"errors"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateRejectsMissingTenantID(t *testing.T) {
	cfg := DefaultConfig("")
	if err := cfg.Validate(); !errors.Is(err, ErrMissingTenantID) {
		t.Fatalf("expected ErrMissingTenantID, got %v", err)
	}
}

func TestValidateRejectsUnknownEmbedModel(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.EmbedModel = "some-made-up-model"
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownEmbedModel) {
		t.Fatalf("expected ErrUnknownEmbedModel, got %v", err)
	}
}

func TestRegisterEmbedModelAllowsSubsequentValidation(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.EmbedModel = "custom-provider-model"
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownEmbedModel) {
		t.Fatalf("expected ErrUnknownEmbedModel before registration, got %v", err)
	}
	RegisterEmbedModel("custom-provider-model")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected validation to succeed after registration, got %v", err)
	}
}

func TestValidateRejectsBadScoringWeights(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.Scoring.Relevance = 5.0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error from an invalid scoring weight sum")
	}
}

func TestValidateRejectsBadDecayWeights(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.Decay.Recency = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error from a negative decay weight")
	}
}

func TestValidateRejectsOutOfRangeBaseRate(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.DecayBaseRate = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidBaseRate) {
		t.Fatalf("expected ErrInvalidBaseRate, got %v", err)
	}
}

func TestValidateRejectsNonPositiveTokenTTL(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.FederationTokenTTL = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTokenTTL) {
		t.Fatalf("expected ErrInvalidTokenTTL, got %v", err)
	}
}

func TestValidateRejectsNonPositiveRetention(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.Worker.EpisodicRetention = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidRetention) {
		t.Fatalf("expected ErrInvalidRetention, got %v", err)
	}
}

func TestValidateRejectsNonPositiveBudget(t *testing.T) {
	cfg := DefaultConfig("tenant-1")
	cfg.DefaultContextBudget = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
}
