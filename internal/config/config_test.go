package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"eve-nerd/internal/graph"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.MapFormat != FormatSDE {
		t.Errorf("MapFormat = %q, want %q", c.MapFormat, FormatSDE)
	}
	if c.Profile != "frigate" {
		t.Errorf("Profile = %q, want frigate", c.Profile)
	}
	if c.GateCost != 10 || c.BridgeCost != 20 {
		t.Errorf("GateCost/BridgeCost = %v/%v, want 10/20", c.GateCost, c.BridgeCost)
	}
	if !c.RestrictHighsec {
		t.Error("RestrictHighsec = false, want true")
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d, want 4", c.Workers)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Profile != Default().Profile {
		t.Errorf("Profile = %q, want default", c.Profile)
	}

	c, err = Load("")
	if err != nil || c == nil {
		t.Fatalf("Load(\"\") = %v, %v", c, err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eve-nerd.yaml")
	raw := `
map_format: csv
profile: custom
jump_range: 6.5
warp_speed: 1.5
align_time: 20
warp_model: accelerated
bridge_cost: 5
static_bridges:
  - from: 1DQ1-A
    to: Jita
dynamic_bridges:
  - anchor: "30000142"
    range: 5
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MapFormat != FormatCSV {
		t.Errorf("MapFormat = %q, want csv", c.MapFormat)
	}
	if c.GateCost != 10 {
		t.Errorf("GateCost = %v, want default 10", c.GateCost)
	}
	if len(c.StaticBridges) != 1 || c.StaticBridges[0].To != "Jita" {
		t.Errorf("StaticBridges = %+v", c.StaticBridges)
	}
	if len(c.DynamicBridges) != 1 || c.DynamicBridges[0].Range != 5 {
		t.Errorf("DynamicBridges = %+v", c.DynamicBridges)
	}

	p, err := c.VehicleProfile()
	if err != nil {
		t.Fatalf("VehicleProfile: %v", err)
	}
	if p.Name != "custom" || p.JumpRange != 6.5 || p.AlignTime != 20 {
		t.Errorf("profile = %+v", p)
	}

	m, err := c.CostModel()
	if err != nil {
		t.Fatalf("CostModel: %v", err)
	}
	if m.Warp != graph.WarpAccelerated || m.BridgeCost != 5 {
		t.Errorf("cost model = %+v", m)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad yaml", "profile: [unclosed"},
		{"unknown format", "map_format: xml"},
		{"unknown preset", "profile: shuttle"},
		{"bad custom", "profile: custom\nwarp_speed: -1"},
		{"bad warp model", "warp_model: instant"},
		{"negative gate cost", "gate_cost: -3"},
		{"bad bridge range", "dynamic_bridges:\n  - anchor: Jita\n    range: 0"},
		{"negative workers", "workers: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.raw), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestVehicleProfile_NoGates(t *testing.T) {
	c := Default()
	c.Profile = "Jump Freighter"
	c.NoGates = true
	p, err := c.VehicleProfile()
	if err != nil {
		t.Fatalf("VehicleProfile: %v", err)
	}
	if p.JumpRange != 10 || !p.NoGates {
		t.Errorf("profile = %+v", p)
	}

	c.Profile = "shuttle"
	if _, err := c.VehicleProfile(); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	c := Default()
	c.Profile = "titan"
	c.DynamicBridges = []DynamicBridge{{Anchor: "Jita", Range: 6}}
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Profile != "titan" || len(got.DynamicBridges) != 1 || got.DynamicBridges[0].Anchor != "Jita" {
		t.Errorf("round trip = %+v", got)
	}
}
