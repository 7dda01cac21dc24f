package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Profile describes a vehicle's movement capability. JumpRange is in light
// years (0 if the ship has no jump drive), WarpSpeed in AU/s and AlignTime in
// seconds (paid once per warp or jump). NoGates marks hulls that cannot use
// stargates.
type Profile struct {
	Name      string
	JumpRange float64
	WarpSpeed float64
	AlignTime float64
	NoGates   bool
}

// NewProfile builds a custom profile. All three values must be non-negative
// and finite.
func NewProfile(jumpRange, warpSpeed, alignTime float64) (Profile, error) {
	p := Profile{Name: "custom", JumpRange: jumpRange, WarpSpeed: warpSpeed, AlignTime: alignTime}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate reports whether the numeric fields are usable.
func (p Profile) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"jump range", p.JumpRange},
		{"warp speed", p.WarpSpeed},
		{"align time", p.AlignTime},
	} {
		if !finite(f.v) || f.v < 0 {
			return invalidf("profile %s %v must be a non-negative number", f.name, f.v)
		}
	}
	return nil
}

// CanJump reports whether the profile has a jump drive.
func (p Profile) CanJump() bool { return p.JumpRange > 0 }

// WithoutGates returns a copy of p that cannot use stargates.
func (p Profile) WithoutGates() Profile {
	p.NoGates = true
	return p
}

// key identifies the numeric behaviour of a profile, ignoring its name.
func (p Profile) key() string {
	return fmt.Sprintf("%g/%g/%g/%t", p.JumpRange, p.WarpSpeed, p.AlignTime, p.NoGates)
}

func (p Profile) String() string {
	name := p.Name
	if name == "" {
		name = "custom"
	}
	return fmt.Sprintf("%s (jump %.2f LY, warp %.2f AU/s, align %.1f s)", name, p.JumpRange, p.WarpSpeed, p.AlignTime)
}

// Preset hull classes.
var (
	Frigate       = Profile{Name: "frigate", WarpSpeed: 5.0, AlignTime: 3.0}
	Destroyer     = Profile{Name: "destroyer", WarpSpeed: 4.5, AlignTime: 4.0}
	Cruiser       = Profile{Name: "cruiser", WarpSpeed: 3.0, AlignTime: 7.0}
	Battlecruiser = Profile{Name: "battlecruiser", WarpSpeed: 2.7, AlignTime: 8.0}
	Battleship    = Profile{Name: "battleship", WarpSpeed: 2.0, AlignTime: 12.0}

	Carrier      = Profile{Name: "carrier", JumpRange: 7.0, WarpSpeed: 1.5, AlignTime: 30.0}
	Dreadnought  = Profile{Name: "dreadnought", JumpRange: 7.0, WarpSpeed: 1.5, AlignTime: 40.0}
	Supercarrier = Profile{Name: "supercarrier", JumpRange: 6.0, WarpSpeed: 1.5, AlignTime: 40.0}
	Titan        = Profile{Name: "titan", JumpRange: 6.0, WarpSpeed: 1.37, AlignTime: 60.0}

	Rorqual       = Profile{Name: "rorqual", JumpRange: 10.0, WarpSpeed: 1.5, AlignTime: 50.0}
	JumpFreighter = Profile{Name: "jump_freighter", JumpRange: 10.0, WarpSpeed: 1.5, AlignTime: 40.0}
	BlackOps      = Profile{Name: "black_ops", JumpRange: 8.0, WarpSpeed: 2.2, AlignTime: 10.0}
)

var presets = map[string]Profile{}

func init() {
	for _, p := range []Profile{
		Frigate, Destroyer, Cruiser, Battlecruiser, Battleship,
		Carrier, Dreadnought, Supercarrier, Titan,
		Rorqual, JumpFreighter, BlackOps,
	} {
		presets[p.Name] = p
	}
}

// Preset looks up a named hull class. Names are case-insensitive and accept
// spaces or dashes in place of underscores ("Jump Freighter", "black-ops").
func Preset(name string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	p, ok := presets[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown profile preset %q", ErrNotFound, name)
	}
	return p, nil
}

// PresetNames returns the preset names in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
