package config

import "testing"

func TestSettings_Clamped(t *testing.T) {
	tests := []struct {
		name string
		in   Settings
		want Settings
	}{
		{
			name: "defaults pass through",
			in:   DefaultSettings(),
			want: DefaultSettings(),
		},
		{
			name: "all below minimums",
			in:   Settings{WindowSeconds: 1, DedupSeconds: -5, BruteForceFails: 0, ReconConnAttempts: 1, SensitiveReads: 0, ExfilBytes: 10, EscalateToHigh: 0, EscalateToCritical: 0},
			want: Settings{WindowSeconds: 15, DedupSeconds: 0, BruteForceFails: 3, ReconConnAttempts: 3, SensitiveReads: 1, ExfilBytes: 50_000, EscalateToHigh: 1, EscalateToCritical: 1},
		},
		{
			name: "all above maximums",
			in:   Settings{WindowSeconds: 9999, DedupSeconds: 9999, BruteForceFails: 999, ReconConnAttempts: 999, SensitiveReads: 999, ExfilBytes: 99_000_000, EscalateToHigh: 99, EscalateToCritical: 99},
			want: Settings{WindowSeconds: 300, DedupSeconds: 300, BruteForceFails: 50, ReconConnAttempts: 50, SensitiveReads: 50, ExfilBytes: 5_000_000, EscalateToHigh: 10, EscalateToCritical: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamped(); got != tt.want {
				t.Errorf("Clamped() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSettingsStore_UpdateAndReset(t *testing.T) {
	store := NewSettingsStore(DefaultSettings())

	got := store.Update(Settings{WindowSeconds: 120, DedupSeconds: 30, BruteForceFails: 5, ReconConnAttempts: 4, SensitiveReads: 2, ExfilBytes: 100_000, EscalateToHigh: 1, EscalateToCritical: 2})
	if got.WindowSeconds != 120 || got.BruteForceFails != 5 {
		t.Errorf("Update() = %+v", got)
	}
	if store.Current() != got {
		t.Error("Current() should reflect last update")
	}

	if got := store.Reset(); got != DefaultSettings() {
		t.Errorf("Reset() = %+v, want defaults", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := DefaultConfig()
	bad.Server.HTTPPort = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid http_port")
	}

	bad = DefaultConfig()
	bad.Engine.AlertKeep = bad.Engine.AlertCap
	if err := bad.Validate(); err == nil {
		t.Error("expected error for keep >= cap")
	}
}
