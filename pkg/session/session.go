// Package session runs dogbone processing for one design. A session owns
// the parameter snapshot, the selection and its event queue, and the
// feature creators; Run walks the selection one occurrence, face and edge
// at a time.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/feature"
	"github.com/it-ony/Dogbone/pkg/selection"
	"github.com/it-ony/Dogbone/pkg/settings"
	"github.com/rs/zerolog"
)

// Session is a dogbone command session on one design.
type Session struct {
	Design    *brep.Design
	Selection *selection.State
	Timeline  *feature.Timeline
	Cutter    *feature.Cutter

	params    dogbone.Params
	paramsSet bool
	store     *settings.Store
	creator   feature.Creator
	log       zerolog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithStore reads the initial parameters from store and writes them back
// after every successful run.
func WithStore(store *settings.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithParams starts the session with p instead of the persisted defaults.
func WithParams(p dogbone.Params) Option {
	return func(s *Session) { s.params, s.paramsSet = p, true }
}

// WithCreator sends every descriptor to c instead of the session's own
// timeline or cutter.
func WithCreator(c feature.Creator) Option {
	return func(s *Session) { s.creator = c }
}

// New starts a session on d. Without WithParams the parameters come from
// the store, or dogbone.DefaultParams when there is none.
func New(d *brep.Design, log zerolog.Logger, opts ...Option) *Session {
	s := &Session{Design: d, log: log}
	s.params = dogbone.DefaultParams()
	for _, o := range opts {
		o(s)
	}
	if s.store != nil && !s.paramsSet {
		s.params = s.store.ReadDefaults()
	}
	s.Selection = selection.New(s.params.AngleConfig(), log)
	s.Timeline = feature.NewTimeline(log)
	s.Cutter = feature.NewCutter(log)
	return s
}

// Params returns the current parameter snapshot.
func (s *Session) Params() dogbone.Params { return s.params }

// SetParams replaces the parameters. Changes to the angle settings or the
// mode re-evaluate the edges of the selected faces.
func (s *Session) SetParams(p dogbone.Params) {
	old := s.params
	s.params = p
	if old.AngleConfig() != p.AngleConfig() {
		s.Selection.Push(selection.RefreshEvent(p.AngleConfig()))
	}
}

// Push queues selection events.
func (s *Session) Push(events ...selection.Event) { s.Selection.Push(events...) }

// Drain applies the queued selection events. Conflicting selections are
// rejected and reported.
func (s *Session) Drain() error {
	err := s.Selection.Drain()
	if err != nil {
		s.log.Debug().Err(err).Msg("selection events rejected")
	}
	return err
}

// Validate reports whether a run can start: at least one face selected and
// valid parameters.
func (s *Session) Validate() error {
	if s.Selection.FaceCount() == 0 {
		return fmt.Errorf("%w: no face selected", dogbone.ErrConfigurationInvalid)
	}
	return s.params.Validate()
}

// Run processes the selection. Failed corners are counted in the report
// and do not fail the run. Only a missing design or invalid configuration
// returns an error.
func (s *Session) Run() (*Report, error) {
	if s.Design == nil {
		return nil, dogbone.ErrNoActiveDesign
	}
	rejected := s.Drain()
	if rejected != nil {
		s.log.Warn().Err(rejected).Msg("selection events rejected before run")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	pl, err := dogbone.NewPlanner(s.params, s.log)
	if err != nil {
		return nil, err
	}

	rep := &Report{RunID: uuid.NewString(), Benchmark: s.params.Benchmark}
	if rejected != nil {
		rep.Rejected = strings.Split(rejected.Error(), "\n")
	}
	log := s.log.With().Str("run", rep.RunID).Logger()
	var creator feature.Creator
	if s.params.Parametric {
		rep.Mode = "parametric"
		if err := s.Timeline.SetParameters(s.params); err != nil {
			return nil, err
		}
		creator = s.Timeline
	} else {
		rep.Mode = "static"
		creator = s.Cutter
	}
	if s.creator != nil {
		creator = s.creator
	}
	log.Info().
		Str("mode", rep.Mode).
		Stringer("type", s.params.Variant).
		Bool("fromTop", s.params.FromTop).
		Float64("radius", pl.Radius()).
		Msg("run started")

	start := time.Now()
	for _, occ := range s.Selection.Occurrences() {
		s.runOccurrence(occ, pl, creator, rep, log)
	}
	rep.Elapsed = time.Since(start)

	rep.Findings = s.validate(log)

	if msg := rep.BenchmarkMessage(); msg != "" {
		log.Info().Msg(msg)
	}
	if rep.ErrorCount() > 0 {
		log.Warn().Int("errors", rep.ErrorCount()).Msg("corners failed")
	}
	log.Info().Int("placed", len(rep.Placements)).Int("skipped", rep.Skipped).Msg("run finished")

	if s.store != nil {
		if err := s.store.WriteDefaults(s.params); err != nil {
			log.Warn().Err(err).Msg("cannot write defaults")
		}
	}
	return rep, nil
}

func (s *Session) runOccurrence(occ string, pl *dogbone.Planner, creator feature.Creator, rep *Report, log zerolog.Logger) {
	faces := s.Selection.Faces(occ)
	if len(faces) == 0 {
		return
	}
	if err := creator.BeginGroup(occ); err != nil {
		log.Error().Err(err).Str("occurrence", occ).Msg("cannot start group")
		return
	}
	defer func() {
		if err := creator.EndGroup(); err != nil {
			log.Error().Err(err).Str("occurrence", occ).Msg("cannot finish group")
		}
	}()

	if err := pl.Begin(faces[0].Ref); err != nil {
		for _, f := range faces {
			for _, ek := range s.Selection.SelectedEdges(f.Key) {
				rep.Failures = append(rep.Failures, &dogbone.CornerError{FaceKey: f.Key, EdgeKey: ek, Err: err})
			}
		}
		return
	}
	defer pl.End()

	for _, f := range faces {
		log.Debug().Str("face", f.Key).Msg("processing face")
		for _, ek := range s.Selection.SelectedEdges(f.Key) {
			rep.EdgesProcessed++
			d, err := pl.Plan(f.Ref, ek)
			if err == nil {
				err = creator.Create(d)
			}
			switch {
			case errors.Is(err, dogbone.ErrNotEligible):
				rep.Skipped++
				log.Debug().Str("edge", ek).Err(err).Msg("edge skipped")
			case err != nil:
				rep.Failures = append(rep.Failures, &dogbone.CornerError{FaceKey: f.Key, EdgeKey: ek, Err: err})
				log.Debug().Str("edge", ek).Err(err).Msg("corner failed")
			default:
				rep.Placements = append(rep.Placements, d)
			}
		}
	}
}

// validate checks every feature the session has created so far.
func (s *Session) validate(log zerolog.Logger) []string {
	var res feature.ValidationResult
	if s.params.Parametric {
		res = feature.ValidateAll(s.Timeline)
	} else {
		res.Errors = feature.ValidateCuts(s.Cutter)
	}
	var out []string
	for _, e := range res.Errors {
		log.Warn().Str("feature", e.Feature).Msg(e.Message)
		out = append(out, e.Error())
	}
	for _, w := range res.Warnings {
		log.Info().Str("feature", w.Feature).Msg(w.Message)
		out = append(out, fmt.Sprintf("[warning] feature %s: %s", w.Feature, w.Message))
	}
	return out
}
