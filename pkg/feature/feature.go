// Package feature materializes dogbone descriptors in a design. Timeline
// records parametric hole features bound to named user parameters; Cutter
// records static tool bodies that are cut from their target body, one cut
// per processed face.
package feature

import (
	"errors"

	"github.com/it-ony/Dogbone/pkg/dogbone"
)

// Name is given to every feature and timeline group this package creates.
const Name = "dogbone"

// ToolBodyName is the name of the static tool body of a cut.
const ToolBodyName = "dogboneTool"

var (
	// ErrNoGroup is returned by Create outside BeginGroup/EndGroup.
	ErrNoGroup = errors.New("feature: no open group")

	// ErrGroupOpen is returned by BeginGroup while a group is open.
	ErrGroupOpen = errors.New("feature: group already open")

	// ErrMissingParameter is returned when a hole refers to a user
	// parameter that was never defined.
	ErrMissingParameter = errors.New("feature: missing user parameter")
)

// Creator receives descriptors grouped by occurrence. Create fails per
// corner; a failure does not close the group.
type Creator interface {
	BeginGroup(occurrence string) error
	Create(d dogbone.Descriptor) error
	EndGroup() error
}
