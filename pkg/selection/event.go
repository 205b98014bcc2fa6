// Package selection holds the faces and corner edges picked for a dogbone
// run. It is a state machine fed by a FIFO queue of discrete events, so
// the placement code never sees selection changes mid-run.
package selection

import (
	"fmt"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
)

// EventKind enumerates the transitions of the selection state.
type EventKind int

const (
	AddFace EventKind = iota
	RemoveFace
	ToggleEdge
	Refresh
)

func (k EventKind) String() string {
	switch k {
	case AddFace:
		return "add-face"
	case RemoveFace:
		return "remove-face"
	case ToggleEdge:
		return "toggle-edge"
	case Refresh:
		return "refresh"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one selection change. Only the fields relevant to Kind are set.
type Event struct {
	Kind   EventKind
	Target brep.Target         // AddFace
	Face   *brep.Face          // AddFace
	Key    string              // RemoveFace: face key; ToggleEdge: edge key
	Angles dogbone.AngleConfig // Refresh
}

// AddFaceEvent selects face f of target t.
func AddFaceEvent(t brep.Target, f *brep.Face) Event {
	return Event{Kind: AddFace, Target: t, Face: f}
}

// RemoveFaceEvent deselects the face with the given key.
func RemoveFaceEvent(faceKey string) Event {
	return Event{Kind: RemoveFace, Key: faceKey}
}

// ToggleEdgeEvent flips the selection of one corner edge.
func ToggleEdgeEvent(edgeKey string) Event {
	return Event{Kind: ToggleEdge, Key: edgeKey}
}

// RefreshEvent re-evaluates the corner edges of every selected face with
// new angle settings.
func RefreshEvent(cfg dogbone.AngleConfig) Event {
	return Event{Kind: Refresh, Angles: cfg}
}

func (e Event) String() string {
	switch e.Kind {
	case AddFace:
		if e.Face == nil {
			return "add-face <nil>"
		}
		return fmt.Sprintf("add-face %s:%s", e.Target, e.Face.Label)
	case Refresh:
		return "refresh"
	default:
		return e.Kind.String() + " " + e.Key
	}
}
