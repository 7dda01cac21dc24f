package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"eve-nerd/internal/graph"
)

// Map source formats.
const (
	FormatSDE = "sde" // CCP static data export, JSONL
	FormatCSV = "csv" // mapDenormalize.csv + mapJumps.csv
)

// StaticBridge names the two ends of a static bridge by system name or id.
type StaticBridge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// DynamicBridge names an anchor system and its range in light years.
type DynamicBridge struct {
	Anchor string  `yaml:"anchor"`
	Range  float64 `yaml:"range"`
}

// Config holds application settings (in-memory representation).
// Persistence is a YAML file; CLI flags override individual fields.
type Config struct {
	// Map source.
	DataDir         string `yaml:"data_dir"`
	MapFormat       string `yaml:"map_format"` // sde | csv
	DenormalizeFile string `yaml:"denormalize_file"`
	JumpsFile       string `yaml:"jumps_file"`
	DBPath          string `yaml:"db_path"` // empty disables the map cache

	// Vehicle. Profile is a preset name or "custom".
	Profile   string  `yaml:"profile"`
	JumpRange float64 `yaml:"jump_range"` // LY, custom only
	WarpSpeed float64 `yaml:"warp_speed"` // AU/s, custom only
	AlignTime float64 `yaml:"align_time"` // s, custom only
	NoGates   bool    `yaml:"no_gates"`

	// Cost model.
	GateCost        float64 `yaml:"gate_cost"`
	BridgeCost      float64 `yaml:"bridge_cost"`
	JumpCoefficient float64 `yaml:"jump_coefficient"`
	JumpExponent    float64 `yaml:"jump_exponent"`
	WarpModel       string  `yaml:"warp_model"` // linear | accelerated
	RestrictHighsec bool    `yaml:"restrict_highsec"`

	StaticBridges  []StaticBridge  `yaml:"static_bridges"`
	DynamicBridges []DynamicBridge `yaml:"dynamic_bridges"`

	// Goroutines used for batch routing; 0 means one per query.
	Workers int `yaml:"workers"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	m := graph.DefaultCostModel()
	return &Config{
		DataDir:         "data",
		MapFormat:       FormatSDE,
		DenormalizeFile: "mapDenormalize.csv",
		JumpsFile:       "mapJumps.csv",
		DBPath:          "data/eve-nerd.db",
		Profile:         graph.Frigate.Name,
		GateCost:        m.GateCost,
		BridgeCost:      m.BridgeCost,
		JumpCoefficient: m.Jump.Coefficient,
		JumpExponent:    m.Jump.Exponent,
		WarpModel:       m.Warp.String(),
		RestrictHighsec: true,
		Workers:         4,
	}
}

// Load reads a YAML file on top of Default(). A missing file yields the
// defaults; any other read or parse failure is returned.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Validate checks field values that the YAML decoder cannot.
func (c *Config) Validate() error {
	switch c.MapFormat {
	case FormatSDE, FormatCSV:
	default:
		return fmt.Errorf("unknown map_format %q", c.MapFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	for _, b := range c.DynamicBridges {
		if b.Range <= 0 {
			return fmt.Errorf("dynamic bridge at %q: range must be positive", b.Anchor)
		}
	}
	if _, err := c.CostModel(); err != nil {
		return err
	}
	_, err := c.VehicleProfile()
	return err
}

// CostModel converts the pricing fields into a graph.CostModel.
func (c *Config) CostModel() (graph.CostModel, error) {
	m := graph.CostModel{
		GateCost:        c.GateCost,
		BridgeCost:      c.BridgeCost,
		Jump:            graph.JumpCurve{Coefficient: c.JumpCoefficient, Exponent: c.JumpExponent},
		RestrictHighsec: c.RestrictHighsec,
	}
	switch strings.ToLower(c.WarpModel) {
	case "", "linear":
		m.Warp = graph.WarpLinear
	case "accelerated":
		m.Warp = graph.WarpAccelerated
	default:
		return graph.CostModel{}, fmt.Errorf("unknown warp_model %q", c.WarpModel)
	}
	if err := m.Validate(); err != nil {
		return graph.CostModel{}, err
	}
	return m, nil
}

// VehicleProfile resolves Profile into a graph.Profile: a preset by name, or
// the custom JumpRange/WarpSpeed/AlignTime triple.
func (c *Config) VehicleProfile() (graph.Profile, error) {
	var (
		p   graph.Profile
		err error
	)
	if strings.EqualFold(strings.TrimSpace(c.Profile), "custom") {
		p, err = graph.NewProfile(c.JumpRange, c.WarpSpeed, c.AlignTime)
	} else {
		p, err = graph.Preset(c.Profile)
	}
	if err != nil {
		return graph.Profile{}, err
	}
	if c.NoGates {
		p = p.WithoutGates()
	}
	return p, nil
}
