package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/selection"
	"github.com/it-ony/Dogbone/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func rect(x0, y0, x1, y1 float64) []r2.Vec {
	return []r2.Vec{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// plate returns a design with one root body carrying two pockets of
// different depth.
func plate(t *testing.T) (*brep.Design, brep.Target) {
	t.Helper()
	b, err := brep.Prism{
		Outline: rect(0, 0, 60, 30),
		Height:  12,
		Pockets: []brep.Pocket{
			{Outline: rect(5, 5, 25, 15), Depth: 4},
			{Outline: rect(35, 5, 55, 25), Depth: 8},
		},
	}.Build("plate")
	require.NoError(t, err)
	d := brep.NewDesign("root")
	d.Root.Bodies = append(d.Root.Bodies, b)
	return d, brep.Target{Body: b}
}

func selectFace(t *testing.T, s *Session, tgt brep.Target, label string) string {
	t.Helper()
	f, err := tgt.Body.FaceByLabel(label)
	require.NoError(t, err)
	s.Push(selection.AddFaceEvent(tgt, f))
	require.NoError(t, s.Drain())
	return brep.FaceKey(tgt, f)
}

func metric() dogbone.Params {
	p := dogbone.DefaultParams()
	p.ToolDiameter = "6 mm"
	p.ToolOffset = "0 mm"
	return p
}

func TestParametricRun(t *testing.T) {
	d, tgt := plate(t)
	store := settings.NewStore(filepath.Join(t.TempDir(), settings.FileName), zerolog.Nop())
	s := New(d, zerolog.Nop(), WithStore(store), WithParams(metric()))
	selectFace(t, s, tgt, "top")

	rep, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, "parametric", rep.Mode)
	assert.Len(t, rep.Placements, 8)
	assert.Zero(t, rep.ErrorCount())
	assert.Empty(t, rep.Message())
	assert.Equal(t, 8, rep.EdgesProcessed)
	assert.NotEmpty(t, rep.RunID)
	assert.Empty(t, rep.Findings, "the created holes pass the timeline checks")

	assert.Len(t, s.Timeline.Holes, 8)
	require.Len(t, s.Timeline.Groups, 1)
	assert.Equal(t, tgt.Key(), s.Timeline.Groups[0].Occurrence)

	// Defaults are written after the run.
	assert.Equal(t, metric(), store.ReadDefaults())
}

func TestDeselectedEdgesAreNotProcessed(t *testing.T) {
	d, tgt := plate(t)
	s := New(d, zerolog.Nop(), WithParams(metric()))
	fk := selectFace(t, s, tgt, "top")
	edges := s.Selection.SelectedEdges(fk)
	s.Push(selection.ToggleEdgeEvent(edges[0]), selection.ToggleEdgeEvent(edges[1]))

	rep, err := s.Run()
	require.NoError(t, err)
	assert.Len(t, rep.Placements, 6)
}

func TestStaticRunRegeneratesBetweenFaces(t *testing.T) {
	d, tgt := plate(t)
	p := metric()
	p.Parametric = false
	p.FromTop = true
	s := New(d, zerolog.Nop(), WithParams(p))
	selectFace(t, s, tgt, "pocket0-floor")
	selectFace(t, s, tgt, "pocket1-floor")
	gen := tgt.Body.Generation()

	rep, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, "static", rep.Mode)
	assert.Zero(t, rep.ErrorCount(), "%v", rep.Failures)
	assert.Len(t, rep.Placements, 8)
	require.Len(t, s.Cutter.Cuts, 2)
	assert.Equal(t, gen+2, tgt.Body.Generation())
	for _, pd := range rep.Placements {
		assert.InDelta(t, 12, pd.Centre.Z, 1e-9, "centres are projected to the top face")
		assert.Equal(t, "top", pd.Plane.Label)
	}

	// A second run works on the regenerated body.
	rep, err = s.Run()
	require.NoError(t, err)
	assert.Len(t, rep.Placements, 8)
	assert.Len(t, s.Cutter.Cuts, 4)
}

type failingCreator struct {
	calls int
	every int
}

func (c *failingCreator) BeginGroup(string) error { return nil }
func (c *failingCreator) EndGroup() error         { return nil }
func (c *failingCreator) Create(dogbone.Descriptor) error {
	c.calls++
	if c.calls%c.every == 0 {
		return errors.New("host refused feature")
	}
	return nil
}

func TestFailedCornersAreCounted(t *testing.T) {
	d, tgt := plate(t)
	p := metric()
	p.Benchmark = true
	s := New(d, zerolog.Nop(), WithParams(p), WithCreator(&failingCreator{every: 4}))
	selectFace(t, s, tgt, "top")

	rep, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, rep.ErrorCount())
	assert.Len(t, rep.Placements, 6)
	assert.Equal(t, "Reported errors:2\nYou may not need to do anything, \nbut check holes have been created", rep.Message())
	assert.Regexp(t, `^Benchmark: \d+\.\d\d sec processing 8 edges$`, rep.BenchmarkMessage())

	b, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"errorCount":2`)
	assert.Contains(t, string(b), "host refused feature")
}

func TestUnresolvedBoundingEdgesAreCounted(t *testing.T) {
	d, tgt := plate(t)
	s := New(d, zerolog.Nop(), WithParams(metric()))
	topKey := selectFace(t, s, tgt, "top")

	// A third top edge at the pocket corner leaves the corner without a
	// unique pair of bounding edges.
	b := tgt.Body
	top, err := b.FaceByLabel("top")
	require.NoError(t, err)
	bottom, err := b.FaceByLabel("bottom")
	require.NoError(t, err)
	var corner, outer brep.VertexID
	for _, id := range top.Vertices {
		v, err := b.Vertex(id)
		require.NoError(t, err)
		switch {
		case v.Point.X == 5 && v.Point.Y == 5:
			corner = id
		case v.Point.X == 0 && v.Point.Y == 0:
			outer = id
		}
	}
	_, err = b.AddEdge(corner, outer, top.ID, bottom.ID, brep.CurveLine)
	require.NoError(t, err)

	rep, err := s.Run()
	require.NoError(t, err)
	require.Equal(t, 1, rep.ErrorCount(), "%v", rep.Failures)
	assert.Len(t, rep.Placements, 7)
	assert.ErrorIs(t, rep.Failures[0], dogbone.ErrAdjacentEdgeResolutionFailed)
	assert.Equal(t, topKey, rep.Failures[0].FaceKey)
	assert.Equal(t, "Reported errors:1\nYou may not need to do anything, \nbut check holes have been created", rep.Message())
}

func TestEventsRejectedBeforeRunAreReported(t *testing.T) {
	d, tgt := plate(t)
	s := New(d, zerolog.Nop(), WithParams(metric()))
	selectFace(t, s, tgt, "top")

	side, err := tgt.Body.FaceByLabel("side0")
	require.NoError(t, err)
	s.Push(selection.AddFaceEvent(tgt, side))

	rep, err := s.Run()
	require.NoError(t, err)
	require.Len(t, rep.Rejected, 1)
	assert.Contains(t, rep.Rejected[0], "not parallel")
	assert.Len(t, rep.Placements, 8)

	b, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"rejected":["`)

	rep, err = s.Run()
	require.NoError(t, err)
	assert.Empty(t, rep.Rejected)
}

func TestRunPreconditions(t *testing.T) {
	_, err := New(nil, zerolog.Nop()).Run()
	assert.ErrorIs(t, err, dogbone.ErrNoActiveDesign)

	d, tgt := plate(t)
	s := New(d, zerolog.Nop(), WithParams(metric()))
	_, err = s.Run()
	assert.ErrorIs(t, err, dogbone.ErrConfigurationInvalid, "nothing selected")

	selectFace(t, s, tgt, "top")
	p := metric()
	p.ToolDiameter = "0"
	s.SetParams(p)
	_, err = s.Run()
	assert.ErrorIs(t, err, dogbone.ErrConfigurationInvalid)
	assert.Empty(t, s.Timeline.Holes)
}

func TestSetParamsRefreshesEdges(t *testing.T) {
	h := 5 * 1.7320508075688772
	b, err := brep.Prism{
		Outline: rect(0, 0, 60, 40),
		Height:  10,
		Pockets: []brep.Pocket{
			{Outline: []r2.Vec{{X: 25, Y: 10}, {X: 45, Y: 10}, {X: 50, Y: 10 + h}, {X: 30, Y: 10 + h}}, Depth: 3},
		},
	}.Build("plate")
	require.NoError(t, err)
	d := brep.NewDesign("root")
	d.Root.Bodies = append(d.Root.Bodies, b)
	tgt := brep.Target{Body: b}

	s := New(d, zerolog.Nop(), WithParams(metric()))
	selectFace(t, s, tgt, "top")
	assert.Zero(t, s.Selection.EdgeCount())

	p := metric()
	p.Parametric = false
	p.AcuteAngle, p.MinAngle = true, 60
	p.ObtuseAngle, p.MaxAngle = true, 120
	s.SetParams(p)
	require.NoError(t, s.Drain())
	assert.Equal(t, 4, s.Selection.EdgeCount())

	rep, err := s.Run()
	require.NoError(t, err)
	assert.Len(t, rep.Placements, 4)
	assert.Zero(t, rep.ErrorCount(), "%v", rep.Failures)
}

func TestNewReadsStore(t *testing.T) {
	store := settings.NewStore(filepath.Join(t.TempDir(), settings.FileName), zerolog.Nop())
	p := metric()
	p.Variant = dogbone.Mortise
	require.NoError(t, store.WriteDefaults(p))

	s := New(brep.NewDesign("root"), zerolog.Nop(), WithStore(store))
	assert.Equal(t, p, s.Params())
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, Level(dogbone.LogNotset))
	assert.Equal(t, zerolog.DebugLevel, Level(dogbone.LogDebug))
	assert.Equal(t, zerolog.InfoLevel, Level(dogbone.LogInfo))

	var buf bytes.Buffer
	log := NewLogger(&buf, dogbone.LogNotset)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOpenLogTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("old\n", 100)), 0o644))

	log, closer, err := OpenLog(path, dogbone.LogInfo)
	require.NoError(t, err)
	log.Info().Dur("elapsed", time.Second).Msg("fresh")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old")
	assert.Contains(t, string(data), "fresh")
}
