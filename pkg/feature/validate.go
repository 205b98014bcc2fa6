package feature

import (
	"errors"
	"fmt"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// ValidationSeverity indicates whether a finding invalidates the created
// features or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // feature is broken
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Feature  string             // feature id, empty for timeline-level findings
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Feature == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] feature %s: %s", e.Severity, e.Feature, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	Feature string
	Message string
}

// ValidationResult bundles errors and warnings from all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether there are no errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// ValidateTimeline runs the structural checks on the user parameters and
// holes of a timeline. It never mutates the timeline.
func ValidateTimeline(t *Timeline) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateParameters(t)...)
	errs = append(errs, validateHoleBindings(t)...)
	errs = append(errs, validateGroups(t)...)
	return errs
}

// ValidateAll runs every tier on a timeline: structure, face references,
// and duplicate holes.
func ValidateAll(t *Timeline) ValidationResult {
	var result ValidationResult
	result.Errors = append(result.Errors, ValidateTimeline(t)...)
	result.Errors = append(result.Errors, validateHoleReferences(t)...)
	result.Warnings = append(result.Warnings, validateDuplicateHoles(t)...)
	return result
}

func validateParameters(t *Timeline) []ValidationError {
	var errs []ValidationError
	for _, name := range []string{ParamToolDia, ParamOffset, ParamRadius, ParamMinPercent, ParamHoleOffset} {
		if t.Parameter(name) == nil && len(t.Holes) > 0 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("user parameter %s is not defined", name),
				Severity: SeverityError,
			})
		}
	}
	if p := t.Parameter(ParamToolDia); p != nil && p.Value <= 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("%s must be positive, got %g", ParamToolDia, p.Value),
			Severity: SeverityError,
		})
	}
	if p := t.Parameter(ParamRadius); p != nil && p.Value <= 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("%s must be positive, got %g", ParamRadius, p.Value),
			Severity: SeverityError,
		})
	}
	if p := t.Parameter(ParamMinPercent); p != nil && p.Value < 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("%s must not be negative, got %g", ParamMinPercent, p.Value),
			Severity: SeverityError,
		})
	}
	return errs
}

func validateHoleBindings(t *Timeline) []ValidationError {
	var errs []ValidationError
	for _, h := range t.Holes {
		for _, expr := range []string{h.Diameter, h.Offset1, h.Offset2} {
			if _, err := t.Value(expr); err != nil {
				errs = append(errs, ValidationError{
					Feature:  h.ID.String(),
					Message:  fmt.Sprintf("expression %q: %v", expr, err),
					Severity: SeverityError,
				})
			}
		}
		if h.Offset1 == "0" && h.Offset2 == "0" {
			errs = append(errs, ValidationError{
				Feature:  h.ID.String(),
				Message:  "both edge offsets are zero",
				Severity: SeverityError,
			})
		}
		if h.Suppressed {
			errs = append(errs, ValidationError{
				Feature:  h.ID.String(),
				Message:  "hole is still suppressed",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

func validateGroups(t *Timeline) []ValidationError {
	ids := make(map[string]bool, len(t.Holes))
	for _, h := range t.Holes {
		ids[h.ID.String()] = true
	}
	var errs []ValidationError
	for _, g := range t.Groups {
		if len(g.Features) == 0 {
			errs = append(errs, ValidationError{
				Feature:  g.ID.String(),
				Message:  "timeline group is empty",
				Severity: SeverityError,
			})
		}
		for _, id := range g.Features {
			if !ids[id.String()] {
				errs = append(errs, ValidationError{
					Feature:  g.ID.String(),
					Message:  fmt.Sprintf("timeline group references missing feature %s", id),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateHoleReferences checks that the plane and extent faces of every
// hole still exist, following regenerations by reference point.
func validateHoleReferences(t *Timeline) []ValidationError {
	var errs []ValidationError
	for _, h := range t.Holes {
		for _, ref := range []struct {
			role string
			ref  dogbone.FaceRef
		}{{"plane", h.Plane}, {"extent", h.Extent}} {
			if err := faceExists(ref.ref); err != nil {
				errs = append(errs, ValidationError{
					Feature:  h.ID.String(),
					Message:  fmt.Sprintf("%s face %q: %v", ref.role, ref.ref.Label, err),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

func faceExists(ref dogbone.FaceRef) error {
	b := ref.Target.Body
	if b == nil {
		return errors.New("no body")
	}
	_, err := b.Face(ref.ID)
	if errors.Is(err, brep.ErrStale) {
		_, err = b.FaceAt(ref.Point)
	}
	return err
}

// validateDuplicateHoles warns about two holes of one occurrence sharing a
// centre.
func validateDuplicateHoles(t *Timeline) []ValidationWarning {
	type key struct {
		occ    string
		centre r3.Vec
	}
	seen := make(map[key]string)
	var warns []ValidationWarning
	for _, h := range t.Holes {
		k := key{occ: h.Occurrence, centre: geom.Round(h.Centre, 4)}
		if first, ok := seen[k]; ok {
			warns = append(warns, ValidationWarning{
				Feature: h.ID.String(),
				Message: fmt.Sprintf("duplicates hole %s at %v", first, h.Centre),
			})
			continue
		}
		seen[k] = h.ID.String()
	}
	return warns
}

// ValidateCuts checks the tool bodies of static cuts.
func ValidateCuts(c *Cutter) []ValidationError {
	var errs []ValidationError
	for _, cut := range c.Cuts {
		if len(cut.Tools) == 0 {
			errs = append(errs, ValidationError{
				Feature:  cut.ID.String(),
				Message:  "cut has no tool bodies",
				Severity: SeverityError,
			})
		}
		for i, tb := range cut.Tools {
			if tb.Radius <= 0 || tb.Length <= 0 {
				errs = append(errs, ValidationError{
					Feature:  cut.ID.String(),
					Message:  fmt.Sprintf("tool %d is degenerate (radius %g, length %g)", i, tb.Radius, tb.Length),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
