package service

import (
	"errors"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestSettingsServiceUpdateSettings(t *testing.T) {
	tests := []struct {
		name        string
		req         *UpdateSettingsRequest
		expectError error
	}{
		{
			name: "success",
			req: &UpdateSettingsRequest{
				EntryZ:  floatPtr(2.5),
				RiskPct: floatPtr(1.5),
			},
			expectError: nil,
		},
		{
			name: "entry below exit",
			req: &UpdateSettingsRequest{
				EntryZ: floatPtr(0.3),
			},
			expectError: ErrInvalidEntryExit,
		},
		{
			name: "risk out of range",
			req: &UpdateSettingsRequest{
				RiskPct: floatPtr(150),
			},
			expectError: ErrInvalidRiskPct,
		},
		{
			name: "rsi thresholds inverted",
			req: &UpdateSettingsRequest{
				RSIEntryHigh: floatPtr(40),
				RSIEntryLow:  floatPtr(60),
			},
			expectError: ErrInvalidRSIThresholds,
		},
		{
			name: "inverted rsi allowed when filter disabled",
			req: &UpdateSettingsRequest{
				RSIFilterEnabled: boolPtr(false),
				RSIEntryHigh:     floatPtr(40),
				RSIEntryLow:      floatPtr(60),
			},
			expectError: nil,
		},
		{
			name: "funding budget out of range",
			req: &UpdateSettingsRequest{
				FundingExitBudget: floatPtr(1.5),
			},
			expectError: ErrInvalidFundingBudget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockSettingsRepository()
			engine := NewMockEngine()
			svc := NewSettingsService(repo)
			svc.SetEngine(engine)

			settings, err := svc.UpdateSettings(tt.req)
			if !errors.Is(err, tt.expectError) {
				t.Fatalf("expected %v, got %v", tt.expectError, err)
			}

			if tt.expectError == nil {
				if settings == nil {
					t.Fatal("expected settings, got nil")
				}
				if repo.settings == nil {
					t.Error("settings not persisted")
				}
				if engine.appliedSettings == nil {
					t.Error("settings not applied to engine")
				}
			} else {
				// Невалидное обновление не персистится и не применяется
				if repo.settings != nil {
					t.Error("invalid settings must not be persisted")
				}
				if engine.appliedSettings != nil {
					t.Error("invalid settings must not reach engine")
				}
			}
		})
	}
}

func TestSettingsServicePartialUpdate(t *testing.T) {
	repo := NewMockSettingsRepository()
	svc := NewSettingsService(repo)

	updated, err := svc.UpdateSettings(&UpdateSettingsRequest{
		EntryZ: floatPtr(3.0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.EntryZ != 3.0 {
		t.Errorf("expected entry_z 3.0, got %v", updated.EntryZ)
	}
	// Остальные поля сохранили дефолты
	if updated.ExitZ != 0.5 {
		t.Errorf("exit_z must keep default 0.5, got %v", updated.ExitZ)
	}
	if !updated.EMAFilterEnabled {
		t.Error("ema filter must keep default true")
	}
}
