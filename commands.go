package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"eve-nerd/internal/config"
	"eve-nerd/internal/db"
	"eve-nerd/internal/graph"
	"eve-nerd/internal/logger"
	"eve-nerd/internal/sde"
)

var (
	configPath    string
	flagProfile   string
	flagJumpRange float64
	flagWarpSpeed float64
	flagAlignTime float64
	flagNoGates   bool
	flagDB        string
	flagDataDir   string
	flagFormat    string
	flagWorkers   int
	flagJSON      bool

	routeFromStructure int64
	routeToStructure   int64
	distancesLimit     int
)

var rootCmd = &cobra.Command{
	Use:           "eve-nerd",
	Short:         "Fastest-route planner for EVE Online ships, jump drives and bridges",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// keep stdout clean for JSON consumers
		if flagJSON {
			logger.SetOutput(cmd.ErrOrStderr())
		}
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <origin> <destination> [destination...]",
	Short: "Find the fastest route to one or more destinations",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRoute,
}

var distancesCmd = &cobra.Command{
	Use:   "distances <origin>",
	Short: "List the travel time from a system to every reachable system",
	Args:  cobra.ExactArgs(1),
	RunE:  runDistances,
}

var rangeCmd = &cobra.Command{
	Use:   "range <system> <light-years>",
	Short: "List systems within a straight-line distance",
	Args:  cobra.ExactArgs(2),
	RunE:  runRange,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the preset ship profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the map from its source files and cache it in the database",
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Manage stored jump bridges",
}

var bridgeAddStaticCmd = &cobra.Command{
	Use:   "add-static <system> <system>",
	Short: "Store a static bridge between two systems",
	Args:  cobra.ExactArgs(2),
	RunE:  runBridgeAddStatic,
}

var bridgeAddDynamicCmd = &cobra.Command{
	Use:   "add-dynamic <anchor> <range-ly>",
	Short: "Store a dynamic bridge that reaches every system within range of its anchor",
	Args:  cobra.ExactArgs(2),
	RunE:  runBridgeAddDynamic,
}

var bridgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored bridges",
	Args:  cobra.NoArgs,
	RunE:  runBridgeList,
}

var bridgeRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a stored bridge",
	Args:  cobra.ExactArgs(1),
	RunE:  runBridgeRemove,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "eve-nerd.yaml", "Path to the YAML config file")
	pf.StringVarP(&flagProfile, "profile", "p", "", "Ship profile preset (see 'profiles') or 'custom'")
	pf.Float64Var(&flagJumpRange, "jump-range", 0, "Jump range in light years (implies --profile custom)")
	pf.Float64Var(&flagWarpSpeed, "warp-speed", 0, "Warp speed in AU/s (implies --profile custom)")
	pf.Float64Var(&flagAlignTime, "align-time", 0, "Align time in seconds (implies --profile custom)")
	pf.BoolVar(&flagNoGates, "no-gates", false, "Never use stargates")
	pf.StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Map data directory (overrides config)")
	pf.StringVar(&flagFormat, "format", "", "Map source format: sde or csv (overrides config)")
	pf.IntVar(&flagWorkers, "workers", 0, "Goroutines for multi-destination routing (overrides config)")
	pf.BoolVar(&flagJSON, "json", false, "Output as JSON")

	routeCmd.Flags().Int64Var(&routeFromStructure, "from-structure", 0, "Start at this structure inside the origin system")
	routeCmd.Flags().Int64Var(&routeToStructure, "to-structure", 0, "End at this structure inside the destination system")
	distancesCmd.Flags().IntVarP(&distancesLimit, "limit", "n", 20, "Number of systems to show (0 = all)")

	bridgeCmd.AddCommand(bridgeAddStaticCmd, bridgeAddDynamicCmd, bridgeListCmd, bridgeRemoveCmd)
	rootCmd.AddCommand(routeCmd, distancesCmd, rangeCmd, profilesCmd, importCmd, bridgeCmd)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("profile") {
		cfg.Profile = flagProfile
	}
	if flags.Changed("jump-range") || flags.Changed("warp-speed") || flags.Changed("align-time") {
		// tweaks start from the selected preset
		if base, err := graph.Preset(cfg.Profile); err == nil {
			cfg.JumpRange, cfg.WarpSpeed, cfg.AlignTime = base.JumpRange, base.WarpSpeed, base.AlignTime
		}
	}
	if flags.Changed("jump-range") {
		cfg.Profile, cfg.JumpRange = "custom", flagJumpRange
	}
	if flags.Changed("warp-speed") {
		cfg.Profile, cfg.WarpSpeed = "custom", flagWarpSpeed
	}
	if flags.Changed("align-time") {
		cfg.Profile, cfg.AlignTime = "custom", flagAlignTime
	}
	if flags.Changed("no-gates") {
		cfg.NoGates = flagNoGates
	}
	if flags.Changed("db") {
		cfg.DBPath = flagDB
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("format") {
		cfg.MapFormat = flagFormat
	}
	if flags.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is everything a routing command needs.
type session struct {
	cfg     *config.Config
	store   *db.DB // nil when the cache is disabled
	data    *sde.Data
	u       *graph.Universe
	profile graph.Profile
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

func openStore(cfg *config.Config) (*db.DB, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	return db.Open(cfg.DBPath)
}

// loadSource reads the map from the configured source files.
func loadSource(cfg *config.Config) (*sde.Data, string, error) {
	if cfg.MapFormat == config.FormatCSV {
		denorm := resolvePath(cfg.DataDir, cfg.DenormalizeFile)
		jumps := resolvePath(cfg.DataDir, cfg.JumpsFile)
		data, err := sde.LoadCSV(denorm, jumps)
		return data, denorm, err
	}
	data, err := sde.Load(cfg.DataDir)
	return data, "sde:" + cfg.DataDir, err
}

func resolvePath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// openSession loads the map (from the cache when possible), applies stored
// and configured bridges and resolves the ship profile.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	profile, err := cfg.VehicleProfile()
	if err != nil {
		return nil, err
	}
	model, err := cfg.CostModel()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, store: store, profile: profile}

	start := time.Now()
	if store != nil && store.HasMap() {
		s.data, err = store.LoadMap()
	} else {
		var source string
		s.data, source, err = loadSource(cfg)
		if err == nil && store != nil {
			err = store.SaveMap(s.data, source)
		}
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.u, err = s.data.Universe(graph.WithCostModel(model))
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.applyBridges(); err != nil {
		s.Close()
		return nil, err
	}
	logger.Duration("MAP", fmt.Sprintf("Loaded %s systems", humanize.Comma(int64(len(s.data.Systems)))), time.Since(start))
	return s, nil
}

func (s *session) applyBridges() error {
	if s.store != nil {
		applied, skipped, err := s.store.ApplyBridges(s.u)
		if err != nil {
			return err
		}
		for _, e := range skipped {
			logger.Warn("BRIDGE", e.Error())
		}
		if applied > 0 {
			logger.Info("BRIDGE", fmt.Sprintf("Applied %d stored bridges", applied))
		}
	}
	for _, b := range s.cfg.StaticBridges {
		from, err := s.resolveSystem(b.From)
		if err != nil {
			return err
		}
		to, err := s.resolveSystem(b.To)
		if err != nil {
			return err
		}
		if err := s.u.AddStaticBridge(from, to); err != nil {
			return fmt.Errorf("static bridge %s-%s: %w", b.From, b.To, err)
		}
	}
	for _, b := range s.cfg.DynamicBridges {
		anchor, err := s.resolveSystem(b.Anchor)
		if err != nil {
			return err
		}
		if err := s.u.AddDynamicBridge(anchor, b.Range); err != nil {
			return fmt.Errorf("dynamic bridge at %s: %w", b.Anchor, err)
		}
	}
	return nil
}

// resolveSystem accepts a system id or a case-insensitive name.
func (s *session) resolveSystem(ref string) (int32, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 32); err == nil {
		return int32(id), nil
	}
	sys, err := s.u.Topology().SystemByName(ref)
	if err != nil {
		return 0, err
	}
	return sys.ID, nil
}

func (s *session) systemName(id int32) string {
	sys, err := s.u.Topology().System(id)
	if err != nil || sys.Name == "" {
		return strconv.Itoa(int(id))
	}
	return sys.Name
}

func (s *session) entityName(e graph.Entity) string {
	if e.IsSystem() {
		return s.systemName(e.SystemID)
	}
	st, err := s.u.Topology().Structure(e.StructureID)
	if err != nil || st.Name == "" {
		return strconv.FormatInt(e.StructureID, 10)
	}
	return st.Name
}

func formatSeconds(sec float64) string {
	return (time.Duration(sec * float64(time.Second))).Round(time.Second).String()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type routeStepJSON struct {
	Type        string  `json:"type"`
	Edge        string  `json:"edge"`
	SystemID    int32   `json:"system_id"`
	System      string  `json:"system"`
	StructureID int64   `json:"structure_id,omitempty"`
	Structure   string  `json:"structure,omitempty"`
	Seconds     float64 `json:"seconds"`
}

type routeJSON struct {
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	Profile     string          `json:"profile"`
	Seconds     float64         `json:"seconds"`
	Steps       []routeStepJSON `json:"steps,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func runRoute(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	origin, err := s.resolveSystem(args[0])
	if err != nil {
		return err
	}
	var dests []int32
	for _, a := range args[1:] {
		id, err := s.resolveSystem(a)
		if err != nil {
			return err
		}
		dests = append(dests, id)
	}

	var routes []*graph.Route
	var errs []error
	if len(dests) == 1 {
		r, err := s.u.RouteBetween(
			graph.Entity{SystemID: origin, StructureID: routeFromStructure},
			graph.Entity{SystemID: dests[0], StructureID: routeToStructure},
			s.profile,
		)
		if err != nil {
			return err
		}
		routes, errs = []*graph.Route{r}, []error{nil}
	} else {
		if routeFromStructure != 0 || routeToStructure != 0 {
			return errors.New("--from-structure and --to-structure need a single destination")
		}
		queries := make([]graph.RouteQuery, len(dests))
		for i, d := range dests {
			queries[i] = graph.RouteQuery{Origin: origin, Destination: d, Profile: s.profile}
		}
		results, err := s.u.RouteBatch(cmd.Context(), queries, s.cfg.Workers)
		if err != nil {
			return err
		}
		for _, res := range results {
			routes = append(routes, res.Route)
			errs = append(errs, res.Err)
		}
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		docs := make([]routeJSON, len(routes))
		for i, r := range routes {
			docs[i] = s.routeDoc(origin, dests[i], r, errs[i])
		}
		if len(docs) == 1 {
			return writeJSON(out, docs[0])
		}
		return writeJSON(out, docs)
	}

	failed := 0
	for i, r := range routes {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if errs[i] != nil {
			failed++
			fmt.Fprintf(out, "%s -> %s: %v\n", s.systemName(origin), s.systemName(dests[i]), errs[i])
			continue
		}
		s.printRoute(out, r)
	}
	if failed == len(routes) && failed > 0 {
		return errs[0]
	}
	return nil
}

func (s *session) routeDoc(origin, dest int32, r *graph.Route, err error) routeJSON {
	doc := routeJSON{Origin: s.systemName(origin), Destination: s.systemName(dest), Profile: s.profile.Name}
	if err != nil {
		doc.Error = err.Error()
		return doc
	}
	doc.Seconds = r.Cost
	for _, p := range r.Points {
		step := routeStepJSON{
			Type:     p.Type.String(),
			Edge:     p.Edge.String(),
			SystemID: p.Entity.SystemID,
			System:   s.systemName(p.Entity.SystemID),
			Seconds:  p.Cost,
		}
		if !p.Entity.IsSystem() {
			step.StructureID = p.Entity.StructureID
			step.Structure = s.entityName(p.Entity)
		}
		doc.Steps = append(doc.Steps, step)
	}
	return doc
}

func (s *session) printRoute(out io.Writer, r *graph.Route) {
	fmt.Fprintf(out, "%s -> %s  (%s, %s)\n",
		s.entityName(r.Origin()), s.systemName(r.Destination().SystemID), s.profile.Name, formatSeconds(r.Cost))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tSYSTEM\tAT\tSTEP\tTOTAL")
	total := 0.0
	for i, p := range r.Points {
		total += p.Cost
		at := "-"
		if !p.Entity.IsSystem() {
			at = s.entityName(p.Entity)
		}
		kind := p.Type.String()
		if p.Edge == graph.EdgeStaticBridge || p.Edge == graph.EdgeDynamicBridge {
			kind += " (" + p.Edge.String() + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i, kind, s.systemName(p.Entity.SystemID), at, formatSeconds(p.Cost), formatSeconds(total))
	}
	tw.Flush()
	fmt.Fprintf(out, "%d gates, %d jumps, %d warps; %s nodes searched\n",
		r.Count(graph.Gate), r.Count(graph.Jump), r.Count(graph.Warp), humanize.Comma(int64(r.Loops)))
}

type distanceJSON struct {
	SystemID int32   `json:"system_id"`
	System   string  `json:"system"`
	Seconds  float64 `json:"seconds"`
}

func runDistances(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	origin, err := s.resolveSystem(args[0])
	if err != nil {
		return err
	}
	dm, err := s.u.AllDistances(origin, s.profile)
	if err != nil {
		return err
	}

	var rows []distanceJSON
	seen := make(map[int32]bool)
	for _, e := range dm.Entries() {
		if seen[e.Entity.SystemID] {
			continue
		}
		seen[e.Entity.SystemID] = true
		rows = append(rows, distanceJSON{SystemID: e.Entity.SystemID, System: s.systemName(e.Entity.SystemID), Seconds: e.Cost})
	}
	total := len(rows)
	if distancesLimit > 0 && len(rows) > distancesLimit {
		rows = rows[:distancesLimit]
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, rows)
	}
	fmt.Fprintf(out, "%s systems reachable from %s as %s\n", humanize.Comma(int64(total)), s.systemName(origin), s.profile.Name)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYSTEM\tID\tTIME")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.System, r.SystemID, formatSeconds(r.Seconds))
	}
	return tw.Flush()
}

func runRange(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.resolveSystem(args[0])
	if err != nil {
		return err
	}
	ly, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("range %q: %w", args[1], err)
	}
	ids, err := s.u.Topology().SystemsWithinRange(id, ly)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, ids)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYSTEM\tID\tLY")
	for _, other := range ids {
		d, _ := s.u.Topology().Distance(id, other)
		fmt.Fprintf(tw, "%s\t%d\t%.2f\n", s.systemName(other), other, d/graph.LightYear)
	}
	return tw.Flush()
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	var profiles []graph.Profile
	for _, name := range graph.PresetNames() {
		p, err := graph.Preset(name)
		if err != nil {
			return err
		}
		profiles = append(profiles, p)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, profiles)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tJUMP (LY)\tWARP (AU/s)\tALIGN (s)")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\n", p.Name, p.JumpRange, p.WarpSpeed, p.AlignTime)
	}
	return tw.Flush()
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return errors.New("import needs a database: set db_path or --db")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	data, source, err := loadSource(cfg)
	if err != nil {
		return err
	}
	if _, err := data.Universe(); err != nil {
		return err
	}
	if err := store.SaveMap(data, source); err != nil {
		return err
	}
	logger.Success("IMPORT", fmt.Sprintf("Cached %s systems from %s in %s",
		humanize.Comma(int64(len(data.Systems))), source, time.Since(start).Round(time.Millisecond)))
	return nil
}

func runBridgeAddStatic(cmd *cobra.Command, args []string) error {
	s, err := openStoreSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.resolveSystem(args[0])
	if err != nil {
		return err
	}
	b, err := s.resolveSystem(args[1])
	if err != nil {
		return err
	}
	// validate against the map before persisting
	if err := s.u.AddStaticBridge(a, b); err != nil {
		return err
	}
	if err := s.store.SaveStaticBridge(a, b); err != nil {
		return err
	}
	logger.Success("BRIDGE", fmt.Sprintf("Static bridge %s <-> %s stored", s.systemName(a), s.systemName(b)))
	return nil
}

func runBridgeAddDynamic(cmd *cobra.Command, args []string) error {
	s, err := openStoreSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	anchor, err := s.resolveSystem(args[0])
	if err != nil {
		return err
	}
	ly, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("range %q: %w", args[1], err)
	}
	if err := s.u.AddDynamicBridge(anchor, ly); err != nil {
		return err
	}
	if err := s.store.SaveDynamicBridge(anchor, ly); err != nil {
		return err
	}
	edges, _ := s.u.BridgeEdges(anchor)
	logger.Success("BRIDGE", fmt.Sprintf("Dynamic bridge at %s (%g LY) stored, reaching %d systems", s.systemName(anchor), ly, len(edges)))
	return nil
}

func runBridgeList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no database configured")
	}
	defer store.Close()

	records, err := store.Bridges()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, records)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tA\tB\tRANGE (LY)\tADDED")
	for _, r := range records {
		b, rng := strconv.Itoa(int(r.B)), "-"
		if r.Kind == graph.DynamicBridge {
			b, rng = "-", strconv.FormatFloat(r.RangeLY, 'g', -1, 64)
		}
		added := r.CreatedAt
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			added = humanize.Time(t)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Kind, r.A, b, rng, added)
	}
	return tw.Flush()
}

func runBridgeRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bridge id %q: %w", args[0], err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no database configured")
	}
	defer store.Close()
	return store.DeleteBridge(id)
}

// openStoreSession is openSession for commands that must persist.
func openStoreSession(cmd *cobra.Command) (*session, error) {
	s, err := openSession(cmd)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		s.Close()
		return nil, errors.New("no database configured: set db_path or --db")
	}
	return s, nil
}

// executeContext runs the root command; split out for tests.
func executeContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}
