package dogbone

import (
	"errors"
	"fmt"

	"github.com/it-ony/Dogbone/pkg/brep"
)

var (
	// ErrInvalidGeometry marks a corner with degenerate normals or a
	// zero-length direction. The corner is skipped and counted.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrAdjacentEdgeResolutionFailed marks a corner whose bounding face
	// edges could not be found. The corner is skipped and counted.
	ErrAdjacentEdgeResolutionFailed = errors.New("adjacent edge resolution failed")

	// ErrStaleFaceReference marks a face handle invalidated by
	// regeneration. It is resolved by reference point before it reaches
	// callers.
	ErrStaleFaceReference = brep.ErrStale

	// ErrSelectionConflict marks a face that cannot join the current
	// selection.
	ErrSelectionConflict = errors.New("selection conflict")

	// ErrConfigurationInvalid marks parameters a run cannot start with.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	// ErrNoActiveDesign aborts a run that has no design to work on.
	ErrNoActiveDesign = errors.New("no active design")

	// ErrNotEligible marks a selected edge that is no longer a corner of
	// its face at run time. It is skipped without being counted.
	ErrNotEligible = errors.New("corner not eligible")
)

// CornerError records why one corner was skipped.
type CornerError struct {
	FaceKey string
	EdgeKey string
	Err     error
}

func (e *CornerError) Error() string {
	return fmt.Sprintf("corner %s on %s: %v", e.EdgeKey, e.FaceKey, e.Err)
}

func (e *CornerError) Unwrap() error { return e.Err }
