package sde

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eve-nerd/internal/graph"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// writeSDE lays out a tiny export: three systems, two gate pairs (one pair
// listed from one side only), a station and a malformed line.
func writeSDE(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "universe", "mapRegions.jsonl"),
		`{"_key":10000002,"name":{"en":"The Forge"}}
`)
	writeFile(t, filepath.Join(dir, "universe", "mapSolarSystems.jsonl"),
		`{"_key":30000142,"name":{"en":"Jita"},"regionID":10000002,"securityStatus":0.945,"position":{"x":1e16,"y":0,"z":0}}
{"_key":30000144,"name":{"en":"Perimeter"},"regionID":10000002,"security":0.95,"position":{"x":1.1e16,"y":0,"z":0}}
{"_key":30000145,"name":{"en":"New Caldari"},"regionID":10000002,"security":1.0,"position":{"x":1.2e16,"y":2e15,"z":0}}
{"_key":30009999,"name":{}}
not json
`)
	writeFile(t, filepath.Join(dir, "universe", "mapStargates.jsonl"),
		`{"_key":50001248,"solarSystemID":30000142,"position":{"x":1e12,"y":0,"z":0},"destination":{"solarSystemID":30000144,"stargateID":50001249}}
{"_key":50001249,"solarSystemID":30000144,"position":{"x":-1e12,"y":0,"z":0},"destination":{"solarSystemID":30000142,"stargateID":50001248}}
{"_key":50001300,"solarSystemID":30000144,"position":{"x":0,"y":3e12,"z":0},"destination":{"solarSystemID":30000145,"stargateID":50001301}}
`)
	writeFile(t, filepath.Join(dir, "npcStations.jsonl"),
		`{"_key":60003760,"solarSystemID":30000142,"position":{"x":0,"y":0,"z":5e11}}
{"_key":60000001,"solarSystemID":31000000}
`)
	return dir
}

func TestLoadDir(t *testing.T) {
	data, err := LoadDir(writeSDE(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	if len(data.Systems) != 3 {
		t.Fatalf("Systems = %d, want 3", len(data.Systems))
	}
	if data.Systems[0].ID != 30000142 || data.Systems[0].Security != 0.945 {
		t.Errorf("Systems[0] = %+v", data.Systems[0])
	}
	if data.SystemByName["new caldari"] != 30000145 {
		t.Errorf("SystemByName[new caldari] = %d", data.SystemByName["new caldari"])
	}
	if data.Regions[10000002] != "The Forge" {
		t.Errorf("Regions = %v", data.Regions)
	}

	if len(data.Links) != 2 {
		t.Fatalf("Links = %+v, want 2", data.Links)
	}
	gated := data.Links[0]
	if gated.From != 30000142 || gated.To != 30000144 || gated.FromGate != 50001248 || gated.ToGate != 50001249 {
		t.Errorf("gate link = %+v", gated)
	}
	// the partner gate of 50001300 is missing, so the systems are joined directly
	plain := data.Links[1]
	if plain.From != 30000144 || plain.To != 30000145 || plain.FromGate != 0 {
		t.Errorf("plain link = %+v", plain)
	}

	var gates, stations int
	for _, s := range data.Structures {
		switch s.Kind {
		case graph.KindStargate:
			gates++
		case graph.KindStation:
			stations++
			if s.Name != "Station in Jita" {
				t.Errorf("station name = %q", s.Name)
			}
		}
	}
	if gates != 3 || stations != 1 {
		t.Errorf("gates/stations = %d/%d, want 3/1", gates, stations)
	}
}

func TestLoadDir_BuildsRoutableUniverse(t *testing.T) {
	data, err := LoadDir(writeSDE(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	u, err := data.Universe()
	if err != nil {
		t.Fatalf("Universe: %v", err)
	}

	r, err := u.Route(30000142, 30000145, graph.Frigate)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got := r.Count(graph.Gate); got != 2 {
		t.Errorf("gate steps = %d, want 2", got)
	}
	if got := r.Systems(); len(got) != 3 || got[2] != 30000145 {
		t.Errorf("systems = %v", got)
	}
}

func TestLoadDir_NoSystems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mapRegions.jsonl"), "")
	if _, err := LoadDir(dir); err == nil || !strings.Contains(err.Error(), "no solar systems") {
		t.Errorf("err = %v, want no solar systems", err)
	}
}

func TestReadJSONL_MissingFileIsSkipped(t *testing.T) {
	calls := 0
	err := readJSONL(t.TempDir(), "mapStargates", func(json.RawMessage) error {
		calls++
		return nil
	})
	if err != nil || calls != 0 {
		t.Errorf("readJSONL = %v, calls %d", err, calls)
	}
}

func TestExtractZip_RejectsMissingArchive(t *testing.T) {
	if err := extractZip(filepath.Join(t.TempDir(), "none.zip"), t.TempDir()); err == nil {
		t.Error("extractZip succeeded on a missing archive")
	}
}
