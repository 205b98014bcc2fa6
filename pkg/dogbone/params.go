package dogbone

import (
	"fmt"
	"strings"

	"github.com/it-ony/Dogbone/pkg/units"
)

// Variant selects how a relief is placed relative to its corner.
type Variant int

const (
	Normal  Variant = iota // centred on the corner bisector, tangent to both walls
	Minimal                // pushed further out along the bisector
	Mortise                // slid along one bounding edge
)

var variantNames = [...]string{
	Normal:  "normal",
	Minimal: "minimal",
	Mortise: "mortise",
}

func (v Variant) String() string {
	if v >= 0 && int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant accepts "normal", "minimal" or "mortise" in any case, with
// or without a trailing " dogbone".
func ParseVariant(s string) (Variant, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), " dogbone")
	for i, n := range variantNames {
		if n == name {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown dogbone type %q", ErrConfigurationInvalid, s)
}

func (v Variant) MarshalText() ([]byte, error) {
	if v < 0 || int(v) >= len(variantNames) {
		return nil, fmt.Errorf("%w: unknown dogbone type %d", ErrConfigurationInvalid, int(v))
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(b []byte) error {
	p, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// LogLevel is the verbosity recorded in the session log.
type LogLevel int

const (
	LogNotset LogLevel = iota
	LogDebug
	LogInfo
)

var logLevelNames = [...]string{
	LogNotset: "notset",
	LogDebug:  "debug",
	LogInfo:   "info",
}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLogLevel accepts "notset", "debug" or "info" in any case.
func ParseLogLevel(s string) (LogLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range logLevelNames {
		if n == name {
			return LogLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown log level %q", ErrConfigurationInvalid, s)
}

func (l LogLevel) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(logLevelNames) {
		return nil, fmt.Errorf("%w: unknown log level %d", ErrConfigurationInvalid, int(l))
	}
	return []byte(l.String()), nil
}

func (l *LogLevel) UnmarshalText(b []byte) error {
	p, err := ParseLogLevel(string(b))
	if err != nil {
		return err
	}
	*l = p
	return nil
}

// ---------------------------------------------------------------------------
// Params
// ---------------------------------------------------------------------------

// Params is the configuration snapshot for one run. It is read from the
// persisted defaults, edited by the user, and written back after a
// successful run.
type Params struct {
	ToolDiameter    string   `toml:"tool_diameter" json:"toolDiameter"`
	ToolOffset      string   `toml:"tool_offset" json:"toolOffset"`
	Variant         Variant  `toml:"dogbone_type" json:"dogboneType"`
	MinimalPercent  float64  `toml:"minimal_percent" json:"minimalPercent"`
	FromTop         bool     `toml:"from_top" json:"fromTop"`
	Parametric      bool     `toml:"parametric" json:"parametric"`
	MortiseLongSide bool     `toml:"mortise_long_side" json:"mortiseLongSide"`
	AcuteAngle      bool     `toml:"acute_angle" json:"acuteAngle"`
	MinAngle        float64  `toml:"min_angle" json:"minAngle"`
	ObtuseAngle     bool     `toml:"obtuse_angle" json:"obtuseAngle"`
	MaxAngle        float64  `toml:"max_angle" json:"maxAngle"`
	Benchmark       bool     `toml:"benchmark" json:"benchmark"`
	LogLevel        LogLevel `toml:"log_level" json:"logLevel"`
}

// DefaultParams returns the settings used when nothing was persisted.
func DefaultParams() Params {
	return Params{
		ToolDiameter:    "0.25 in",
		ToolOffset:      "0 mm",
		Variant:         Normal,
		MinimalPercent:  10,
		Parametric:      true,
		MortiseLongSide: true,
		MinAngle:        89,
		MaxAngle:        91,
		LogLevel:        LogNotset,
	}
}

// Limits of the angle detection thresholds, in degrees. Both are open
// intervals.
const (
	MinAngleLower = 0.0
	MinAngleUpper = 90.0
	MaxAngleLower = 90.0
	MaxAngleUpper = 180.0
)

// ToolDiameterMM returns the parsed tool diameter.
func (p Params) ToolDiameterMM() (float64, error) {
	v, err := units.ParseLength(p.ToolDiameter)
	if err != nil {
		return 0, fmt.Errorf("%w: tool diameter: %v", ErrConfigurationInvalid, err)
	}
	return v, nil
}

// ToolOffsetMM returns the parsed radial offset added to the tool diameter.
func (p Params) ToolOffsetMM() (float64, error) {
	v, err := units.ParseLength(p.ToolOffset)
	if err != nil {
		return 0, fmt.Errorf("%w: tool offset: %v", ErrConfigurationInvalid, err)
	}
	return v, nil
}

// Radius returns (tool diameter + offset) / 2.
func (p Params) Radius() (float64, error) {
	d, err := p.ToolDiameterMM()
	if err != nil {
		return 0, err
	}
	o, err := p.ToolOffsetMM()
	if err != nil {
		return 0, err
	}
	return (d + o) / 2, nil
}

// Validate rejects settings a run cannot start with. Every problem is
// reported, not only the first.
func (p Params) Validate() error {
	var problems []string
	d, derr := p.ToolDiameterMM()
	switch {
	case derr != nil:
		problems = append(problems, derr.Error())
	case d <= 0:
		problems = append(problems, fmt.Sprintf("tool diameter must be positive, got %g mm", d))
	}
	o, oerr := p.ToolOffsetMM()
	switch {
	case oerr != nil:
		problems = append(problems, oerr.Error())
	case derr == nil && d > 0 && d+o <= 0:
		problems = append(problems, fmt.Sprintf("tool diameter plus offset must be positive, got %g mm", d+o))
	}
	if p.Variant < Normal || p.Variant > Mortise {
		problems = append(problems, fmt.Sprintf("unknown dogbone type %d", int(p.Variant)))
	}
	if !(p.MinimalPercent >= 0) {
		problems = append(problems, fmt.Sprintf("minimal percent must not be negative, got %g", p.MinimalPercent))
	}
	if !(p.MinAngle > MinAngleLower && p.MinAngle < MinAngleUpper) {
		problems = append(problems, fmt.Sprintf("min angle must be in (%g, %g), got %g", MinAngleLower, MinAngleUpper, p.MinAngle))
	}
	if !(p.MaxAngle > MaxAngleLower && p.MaxAngle < MaxAngleUpper) {
		problems = append(problems, fmt.Sprintf("max angle must be in (%g, %g), got %g", MaxAngleLower, MaxAngleUpper, p.MaxAngle))
	}
	if p.LogLevel < LogNotset || p.LogLevel > LogInfo {
		problems = append(problems, fmt.Sprintf("unknown log level %d", int(p.LogLevel)))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// AngleConfig derives the classifier configuration from the parameters.
func (p Params) AngleConfig() AngleConfig {
	return AngleConfig{
		Parametric:  p.Parametric,
		AcuteAngle:  p.AcuteAngle,
		MinAngle:    p.MinAngle,
		ObtuseAngle: p.ObtuseAngle,
		MaxAngle:    p.MaxAngle,
	}
}
