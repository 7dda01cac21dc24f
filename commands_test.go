package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"eve-nerd/internal/graph"
	"eve-nerd/internal/logger"
)

const denormalizeCSV = `itemID,typeID,groupID,solarSystemID,constellationID,regionID,orbitID,x,y,z,radius,itemName,security,celestialIndex,orbitIndex
30000001,5,5,NULL,20000001,10000001,NULL,-8.85e16,4.2e16,-4.4e16,1e12,Tanoo,0.858,NULL,NULL
30000002,5,5,NULL,20000001,10000001,NULL,-8.9e16,4.2e16,-4.4e16,1e12,Lashesih,0.3,NULL,NULL
30000003,5,5,NULL,20000001,10000001,NULL,-1e17,4.2e16,-4.4e16,1e12,Akpivem,-0.1,NULL,NULL
50000001,16,10,30000001,20000001,10000001,NULL,-1e12,0,3e11,1.5e4,Stargate (Lashesih),0.858,NULL,NULL
50000002,16,10,30000002,20000001,10000001,NULL,2e12,1e11,0,1.5e4,Stargate (Tanoo),0.3,NULL,NULL
50000003,16,10,30000002,20000001,10000001,NULL,0,-4e12,0,1.5e4,Stargate (Akpivem),0.3,NULL,NULL
50000004,16,10,30000003,20000001,10000001,NULL,0,4e12,0,1.5e4,Stargate (Lashesih),-0.1,NULL,NULL
60000004,1531,15,30000001,20000001,10000001,NULL,1.6e11,2e10,-4e11,0,Tanoo I - Moon 1 - Station,0.858,NULL,NULL
`

const jumpsCSV = `stargateID,destinationID
50000001,50000002
50000002,50000001
50000003,50000004
50000004,50000003
`

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// cli runs commands against a CSV map in a temp dir.
type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T, withDB bool) *cli {
	t.Helper()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(nil) })

	dir := t.TempDir()
	for name, content := range map[string]string{"mapDenormalize.csv": denormalizeCSV, "mapJumps.csv": jumpsCSV} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	db := "--db="
	if withDB {
		db = "--db=" + filepath.Join(dir, "nerd.db")
	}
	return &cli{t: t, base: []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--format", "csv",
		"--data-dir", dir,
		db,
	}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	err := executeContext(context.Background(), append(append([]string{}, c.base...), args...), &out, io.Discard)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (c *cli) runJSON(v interface{}, args ...string) {
	c.t.Helper()
	out := c.mustRun(append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		c.t.Fatalf("%v: decode %q: %v", args, out, err)
	}
}

// TestRootCommand tests that the root command is properly configured
func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "eve-nerd" {
		t.Errorf("expected Use 'eve-nerd', got %q", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Short description should not be empty")
	}
	for _, name := range []string{"config", "profile", "jump-range", "warp-speed", "align-time", "no-gates", "db", "json", "workers"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
}

// TestLeafCommands tests that every leaf command can run
func TestLeafCommands(t *testing.T) {
	for _, cmd := range []*cobra.Command{
		routeCmd, distancesCmd, rangeCmd, profilesCmd, importCmd,
		bridgeAddStaticCmd, bridgeAddDynamicCmd, bridgeListCmd, bridgeRemoveCmd,
	} {
		if cmd.RunE == nil {
			t.Errorf("%s: RunE should not be nil", cmd.Name())
		}
		if cmd.Short == "" {
			t.Errorf("%s: Short description should not be empty", cmd.Name())
		}
	}
	if !bridgeCmd.HasSubCommands() {
		t.Error("bridge should have subcommands")
	}
}

func TestProfilesCommand(t *testing.T) {
	c := newCLI(t, false)
	var profiles []graph.Profile
	c.runJSON(&profiles, "profiles")
	if len(profiles) != 12 {
		t.Fatalf("got %d profiles, want 12", len(profiles))
	}

	out := c.mustRun("profiles")
	if !strings.Contains(out, "jump_freighter") || !strings.Contains(out, "NAME") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestRouteCommand(t *testing.T) {
	c := newCLI(t, false)

	var r routeJSON
	c.runJSON(&r, "route", "tanoo", "Akpivem")
	if r.Origin != "Tanoo" || r.Destination != "Akpivem" || r.Profile != "frigate" {
		t.Errorf("route header = %+v", r)
	}
	gates := 0
	for _, s := range r.Steps {
		if s.Type == "GATE" {
			gates++
		}
	}
	if gates != 2 || r.Steps[0].Type != "START" || r.Steps[len(r.Steps)-1].SystemID != 30000003 {
		t.Errorf("steps = %+v", r.Steps)
	}

	out := c.mustRun("route", "Tanoo", "30000003")
	if !strings.Contains(out, "Tanoo -> Akpivem") || !strings.Contains(out, "2 gates") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestRouteCommand_Structures(t *testing.T) {
	c := newCLI(t, false)
	var r routeJSON
	c.runJSON(&r, "route", "Tanoo", "Lashesih", "--from-structure", "60000004")
	if r.Steps[0].StructureID != 60000004 || r.Steps[0].Structure != "Tanoo I - Moon 1 - Station" {
		t.Errorf("first step = %+v", r.Steps[0])
	}

	if _, err := c.run("route", "Tanoo", "Lashesih", "Akpivem", "--to-structure", "60000004"); err == nil {
		t.Error("structure flags accepted with several destinations")
	}
	if _, err := c.run("route", "Lashesih", "Akpivem", "--from-structure", "60000004"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("structure outside the origin system: err = %v, want ErrNotFound", err)
	}
}

func TestRouteCommand_Batch(t *testing.T) {
	c := newCLI(t, false)
	var docs []routeJSON
	c.runJSON(&docs, "route", "Akpivem", "Tanoo", "Lashesih", "--workers", "2")
	if len(docs) != 2 {
		t.Fatalf("got %d routes, want 2", len(docs))
	}
	if docs[0].Destination != "Tanoo" || docs[1].Destination != "Lashesih" {
		t.Errorf("batch order = %s, %s", docs[0].Destination, docs[1].Destination)
	}
	if !(docs[1].Seconds < docs[0].Seconds) {
		t.Errorf("Lashesih (%v s) should be closer than Tanoo (%v s)", docs[1].Seconds, docs[0].Seconds)
	}
}

func TestRouteCommand_Errors(t *testing.T) {
	c := newCLI(t, false)
	if _, err := c.run("route", "Nowhere", "Tanoo"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("unknown system: err = %v, want ErrNotFound", err)
	}
	if _, err := c.run("route", "Tanoo", "Akpivem", "--no-gates"); !errors.Is(err, graph.ErrUnreachable) {
		t.Errorf("frigate without gates: err = %v, want ErrUnreachable", err)
	}
	if _, err := c.run("route", "Tanoo"); err == nil {
		t.Error("route with one argument succeeded")
	}
	if _, err := c.run("route", "Tanoo", "Akpivem", "--profile", "shuttle"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("unknown profile: err = %v, want ErrNotFound", err)
	}
}

func TestRouteCommand_CustomProfile(t *testing.T) {
	c := newCLI(t, false)
	// a 2 LY drive reaches Akpivem directly from Tanoo
	var r routeJSON
	c.runJSON(&r, "route", "Tanoo", "Akpivem", "--jump-range", "2", "--no-gates")
	if r.Profile != "custom" || len(r.Steps) != 2 || r.Steps[1].Type != "JUMP" {
		t.Errorf("route = %+v", r)
	}
}

func TestDistancesCommand(t *testing.T) {
	c := newCLI(t, false)
	var rows []distanceJSON
	c.runJSON(&rows, "distances", "Tanoo")
	if len(rows) != 3 {
		t.Fatalf("rows = %+v, want 3 systems", rows)
	}
	if rows[0].SystemID != 30000001 || rows[0].Seconds != 0 {
		t.Errorf("first row = %+v, want the origin at 0", rows[0])
	}
	if rows[1].System != "Lashesih" || rows[2].System != "Akpivem" {
		t.Errorf("order = %s, %s", rows[1].System, rows[2].System)
	}

	c.runJSON(&rows, "distances", "Tanoo", "--limit", "1")
	if len(rows) != 1 {
		t.Errorf("--limit 1 gave %d rows", len(rows))
	}
}

func TestRangeCommand(t *testing.T) {
	c := newCLI(t, false)
	var ids []int32
	c.runJSON(&ids, "range", "Tanoo", "0.1")
	if len(ids) != 1 || ids[0] != 30000002 {
		t.Errorf("range 0.1 = %v, want [30000002]", ids)
	}
	if _, err := c.run("range", "Tanoo", "far"); err == nil {
		t.Error("non-numeric range accepted")
	}
	if _, err := c.run("range", "Tanoo", "0"); !errors.Is(err, graph.ErrInvalidArgument) {
		t.Errorf("zero range: err = %v, want ErrInvalidArgument", err)
	}
}

func TestImportAndBridges(t *testing.T) {
	c := newCLI(t, true)

	c.mustRun("import")
	c.mustRun("bridge", "add-static", "Lashesih", "Akpivem")
	c.mustRun("bridge", "add-dynamic", "Akpivem", "3")
	if _, err := c.run("bridge", "add-static", "Tanoo", "Tanoo"); !errors.Is(err, graph.ErrInvalidArgument) {
		t.Errorf("self bridge: err = %v, want ErrInvalidArgument", err)
	}

	var records []struct {
		ID      int64
		A, B    int32
		RangeLY float64
	}
	c.runJSON(&records, "bridge", "list")
	if len(records) != 2 || records[0].A != 30000002 || records[0].B != 30000003 || records[1].RangeLY != 3 {
		t.Fatalf("bridges = %+v", records)
	}

	// the stored bridge is picked up by a fresh session
	var r routeJSON
	c.runJSON(&r, "route", "Lashesih", "Akpivem", "--profile", "jump freighter")
	last := r.Steps[len(r.Steps)-1]
	if len(r.Steps) != 2 || last.Edge != "static bridge" {
		t.Errorf("route = %+v", r.Steps)
	}

	c.mustRun("bridge", "remove", "1")
	if _, err := c.run("bridge", "remove", "1"); err == nil {
		t.Error("removing a missing bridge succeeded")
	}
	c.runJSON(&r, "route", "Lashesih", "Akpivem", "--profile", "jump_freighter")
	for _, s := range r.Steps {
		if s.Edge == "static bridge" {
			t.Errorf("removed bridge still used: %+v", r.Steps)
		}
	}
}

func TestBridgeCommands_NeedDatabase(t *testing.T) {
	c := newCLI(t, false)
	if _, err := c.run("bridge", "list"); err == nil {
		t.Error("bridge list without a database succeeded")
	}
	if _, err := c.run("import"); err == nil {
		t.Error("import without a database succeeded")
	}
}

func TestConfigBridges(t *testing.T) {
	c := newCLI(t, false)
	cfgPath := filepath.Join(t.TempDir(), "eve-nerd.yaml")
	if err := os.WriteFile(cfgPath, []byte("static_bridges:\n  - from: Lashesih\n    to: \"30000003\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.base[1] = cfgPath

	var r routeJSON
	c.runJSON(&r, "route", "Lashesih", "Akpivem", "--profile", "black-ops")
	if len(r.Steps) != 2 || r.Steps[1].Edge != "static bridge" {
		t.Errorf("route = %+v", r.Steps)
	}
}

func TestJSONRequested(t *testing.T) {
	if !jsonRequested([]string{"route", "a", "b", "--json"}) {
		t.Error("--json not detected")
	}
	if jsonRequested([]string{"profiles"}) {
		t.Error("false positive")
	}
}
