package selection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/geom"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnknownKey is returned for events naming a face or edge that is not
// selected.
var ErrUnknownKey = errors.New("selection: unknown key")

// FaceRecord is a selected face.
type FaceRecord struct {
	Key           string
	OccurrenceKey string
	Component     string // "" for root bodies
	Ref           dogbone.FaceRef
	Normal        r3.Vec
	Edges         []string // corner edge keys owned by this face, in body order
}

// EdgeRecord is a corner edge owned by exactly one selected face.
type EdgeRecord struct {
	Key      string
	FaceKey  string
	Selected bool
}

// State is the selection of one session. The zero value is not usable;
// call New.
type State struct {
	angles dogbone.AngleConfig
	log    zerolog.Logger

	queue []Event

	component    string
	hasComponent bool
	occurrences  []string            // in order of first selection
	byOccurrence map[string][]string // occurrence key -> face keys
	faces        map[string]*FaceRecord
	edges        map[string]*EdgeRecord
}

// New returns an empty selection whose corner edges are filtered by cfg.
func New(cfg dogbone.AngleConfig, log zerolog.Logger) *State {
	s := &State{angles: cfg, log: log}
	s.reset()
	return s
}

func (s *State) reset() {
	s.component = ""
	s.hasComponent = false
	s.occurrences = nil
	s.byOccurrence = make(map[string][]string)
	s.faces = make(map[string]*FaceRecord)
	s.edges = make(map[string]*EdgeRecord)
}

// Push queues events for Drain.
func (s *State) Push(events ...Event) {
	s.queue = append(s.queue, events...)
}

// Pending returns the number of queued events.
func (s *State) Pending() int { return len(s.queue) }

// Drain applies queued events in order. Rejected events do not stop the
// queue; their errors are joined.
func (s *State) Drain() error {
	var errs []error
	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		if err := s.Apply(ev); err != nil {
			errs = append(errs, err)
		}
	}
	s.queue = nil
	return errors.Join(errs...)
}

// Apply performs one transition immediately.
func (s *State) Apply(ev Event) error {
	s.log.Debug().Stringer("event", ev).Msg("selection event")
	switch ev.Kind {
	case AddFace:
		return s.addFace(ev.Target, ev.Face)
	case RemoveFace:
		return s.removeFace(ev.Key)
	case ToggleEdge:
		return s.toggleEdge(ev.Key)
	case Refresh:
		s.angles = ev.Angles
		s.refresh()
		return nil
	default:
		return fmt.Errorf("selection: unknown event kind %d", int(ev.Kind))
	}
}

// Active reports whether edge selection is available, which is the case
// while at least one face is selected.
func (s *State) Active() bool { return len(s.faces) > 0 }

// Angles returns the corner filter in effect.
func (s *State) Angles() dogbone.AngleConfig { return s.angles }

// Selectable reports whether face f of t could be added. Conflicts wrap
// dogbone.ErrSelectionConflict.
func (s *State) Selectable(t brep.Target, f *brep.Face) error {
	if f == nil || t.Body == nil {
		return fmt.Errorf("%w: no face", dogbone.ErrSelectionConflict)
	}
	comp := t.ComponentName()
	if s.hasComponent && comp != s.component {
		return fmt.Errorf("%w: face belongs to component %q, selection is on %q",
			dogbone.ErrSelectionConflict, displayComponent(comp), displayComponent(s.component))
	}
	occ := t.Key()
	if !t.IsRoot() {
		for _, o := range s.occurrences {
			if o != occ && s.componentOf(o) == comp {
				return fmt.Errorf("%w: another occurrence of component %q is already selected",
					dogbone.ErrSelectionConflict, comp)
			}
		}
	}
	if keys := s.byOccurrence[occ]; len(keys) > 0 {
		first := s.faces[keys[0]]
		if !geom.Parallel(first.Normal, f.Normal, geom.AngleTol) {
			return fmt.Errorf("%w: face %q is not parallel to the faces selected on %s",
				dogbone.ErrSelectionConflict, f.Label, t)
		}
	}
	return nil
}

func displayComponent(name string) string {
	if name == "" {
		return "root"
	}
	return name
}

func (s *State) componentOf(occ string) string {
	if keys := s.byOccurrence[occ]; len(keys) > 0 {
		return s.faces[keys[0]].Component
	}
	return ""
}

func (s *State) addFace(t brep.Target, f *brep.Face) error {
	if err := s.Selectable(t, f); err != nil {
		return err
	}
	key := brep.FaceKey(t, f)
	if _, ok := s.faces[key]; ok {
		return nil
	}

	occ := t.Key()
	rec := &FaceRecord{
		Key:           key,
		OccurrenceKey: occ,
		Component:     t.ComponentName(),
		Ref:           dogbone.RefOf(t, f),
		Normal:        f.Normal,
	}
	s.faces[key] = rec
	if _, ok := s.byOccurrence[occ]; !ok {
		s.occurrences = append(s.occurrences, occ)
	}
	s.byOccurrence[occ] = append(s.byOccurrence[occ], key)
	if !s.hasComponent {
		s.component, s.hasComponent = rec.Component, true
	}

	s.claim(rec, f)
	s.log.Debug().Str("face", key).Int("edges", len(rec.Edges)).Msg("face selected")
	return nil
}

// claim gives rec every eligible corner edge of f that no other face owns
// yet. Edges are selected by default.
func (s *State) claim(rec *FaceRecord, f *brep.Face) {
	t := rec.Ref.Target
	for _, c := range dogbone.EligibleCorners(t.Body, f, s.angles) {
		ek := brep.EdgeKey(t, c.Edge)
		if _, owned := s.edges[ek]; owned {
			continue
		}
		s.edges[ek] = &EdgeRecord{Key: ek, FaceKey: rec.Key, Selected: true}
		rec.Edges = append(rec.Edges, ek)
	}
}

func (s *State) removeFace(key string) error {
	rec, ok := s.faces[key]
	if !ok {
		return fmt.Errorf("selection: face %s: %w", key, ErrUnknownKey)
	}
	for _, ek := range rec.Edges {
		delete(s.edges, ek)
	}
	delete(s.faces, key)

	occ := rec.OccurrenceKey
	s.byOccurrence[occ] = slices.DeleteFunc(s.byOccurrence[occ], func(k string) bool { return k == key })
	if len(s.byOccurrence[occ]) == 0 {
		delete(s.byOccurrence, occ)
		s.occurrences = slices.DeleteFunc(s.occurrences, func(o string) bool { return o == occ })
	}

	if len(s.faces) == 0 {
		s.reset()
		s.log.Debug().Msg("selection cleared")
		return nil
	}
	// Edges released by the removed face go to the remaining faces.
	s.reclaim()
	return nil
}

func (s *State) toggleEdge(key string) error {
	rec, ok := s.edges[key]
	if !ok {
		return fmt.Errorf("selection: edge %s: %w", key, ErrUnknownKey)
	}
	rec.Selected = !rec.Selected
	return nil
}

// refresh re-evaluates every face with the current angle settings. Edges
// that stay eligible keep their selection flag.
func (s *State) refresh() {
	for _, occ := range s.occurrences {
		for _, fk := range s.byOccurrence[occ] {
			rec := s.faces[fk]
			f, ok := s.currentFace(rec)
			if !ok {
				continue
			}
			eligible := make(map[string]bool)
			for _, c := range dogbone.EligibleCorners(rec.Ref.Target.Body, f, s.angles) {
				eligible[brep.EdgeKey(rec.Ref.Target, c.Edge)] = true
			}
			rec.Edges = slices.DeleteFunc(rec.Edges, func(ek string) bool {
				if eligible[ek] {
					return false
				}
				delete(s.edges, ek)
				return true
			})
		}
	}
	s.reclaim()
}

func (s *State) reclaim() {
	for _, occ := range s.occurrences {
		for _, fk := range s.byOccurrence[occ] {
			rec := s.faces[fk]
			if f, ok := s.currentFace(rec); ok {
				s.claim(rec, f)
			}
		}
	}
}

// currentFace returns the live face for rec, following regenerations by
// reference point.
func (s *State) currentFace(rec *FaceRecord) (*brep.Face, bool) {
	b := rec.Ref.Target.Body
	if f, err := b.Face(rec.Ref.ID); err == nil {
		return f, true
	}
	f, err := b.FaceAt(rec.Ref.Point)
	if err != nil {
		s.log.Warn().Str("face", rec.Key).Err(err).Msg("selected face no longer found")
		return nil, false
	}
	rec.Ref = dogbone.RefOf(rec.Ref.Target, f)
	return f, true
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Occurrences returns the keys of occurrences with selected faces, in the
// order they were first selected.
func (s *State) Occurrences() []string { return slices.Clone(s.occurrences) }

// Faces returns the selected faces of an occurrence in selection order.
func (s *State) Faces(occ string) []*FaceRecord {
	keys := s.byOccurrence[occ]
	out := make([]*FaceRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.faces[k])
	}
	return out
}

// Face returns the record of a selected face, or nil.
func (s *State) Face(key string) *FaceRecord { return s.faces[key] }

// Edge returns the record of an owned corner edge, or nil.
func (s *State) Edge(key string) *EdgeRecord { return s.edges[key] }

// SelectedEdges returns the keys of the selected corner edges of a face.
func (s *State) SelectedEdges(faceKey string) []string {
	rec := s.faces[faceKey]
	if rec == nil {
		return nil
	}
	var out []string
	for _, ek := range rec.Edges {
		if s.edges[ek].Selected {
			out = append(out, ek)
		}
	}
	return out
}

// FaceCount returns the number of selected faces.
func (s *State) FaceCount() int { return len(s.faces) }

// EdgeCount returns the number of selected corner edges.
func (s *State) EdgeCount() int {
	n := 0
	for _, e := range s.edges {
		if e.Selected {
			n++
		}
	}
	return n
}

// Check verifies the structural invariants of the state and returns every
// violation found.
func (s *State) Check() error {
	var errs []error
	for ek, e := range s.edges {
		f, ok := s.faces[e.FaceKey]
		switch {
		case e.Key != ek:
			errs = append(errs, fmt.Errorf("edge %s stored under %s", e.Key, ek))
		case !ok:
			errs = append(errs, fmt.Errorf("edge %s owned by unselected face %s", ek, e.FaceKey))
		case !slices.Contains(f.Edges, ek):
			errs = append(errs, fmt.Errorf("edge %s missing from face %s", ek, e.FaceKey))
		}
	}
	owned := 0
	for fk, f := range s.faces {
		owned += len(f.Edges)
		for _, ek := range f.Edges {
			if e := s.edges[ek]; e == nil || e.FaceKey != fk {
				errs = append(errs, fmt.Errorf("face %s lists edge %s it does not own", fk, ek))
			}
		}
		if !slices.Contains(s.byOccurrence[f.OccurrenceKey], fk) {
			errs = append(errs, fmt.Errorf("face %s missing from occurrence %s", fk, f.OccurrenceKey))
		}
		if !slices.Contains(s.occurrences, f.OccurrenceKey) {
			errs = append(errs, fmt.Errorf("occurrence %s of face %s not registered", f.OccurrenceKey, fk))
		}
		if s.hasComponent && f.Component != s.component {
			errs = append(errs, fmt.Errorf("face %s on component %q, selection on %q", fk, f.Component, s.component))
		}
	}
	if owned != len(s.edges) {
		errs = append(errs, fmt.Errorf("%d edges owned by faces, %d in edge map", owned, len(s.edges)))
	}
	if len(s.occurrences) != len(s.byOccurrence) {
		errs = append(errs, fmt.Errorf("%d occurrences ordered, %d indexed", len(s.occurrences), len(s.byOccurrence)))
	}
	for occ, keys := range s.byOccurrence {
		if len(keys) == 0 {
			errs = append(errs, fmt.Errorf("occurrence %s has no faces", occ))
		}
	}
	if len(s.faces) == 0 && (s.hasComponent || len(s.edges) > 0) {
		errs = append(errs, errors.New("empty selection not reset"))
	}
	return errors.Join(errs...)
}
