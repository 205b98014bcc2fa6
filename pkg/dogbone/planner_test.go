package dogbone

import (
	"math"
	"testing"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/geom"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func metricParams(v Variant) Params {
	p := DefaultParams()
	p.ToolDiameter = "6 mm"
	p.ToolOffset = "0"
	p.Variant = v
	return p
}

// planFace plans every eligible corner of the labelled face.
func planFace(t *testing.T, pl *Planner, tgt brep.Target, label string) []Descriptor {
	t.Helper()
	f := face(t, tgt, label)
	ref := RefOf(tgt, f)
	require.NoError(t, pl.Begin(ref))
	defer pl.End()

	var out []Descriptor
	for _, c := range EligibleCorners(tgt.Body, f, pl.Params().AngleConfig()) {
		d, err := pl.Plan(ref, brep.EdgeKey(tgt, c.Edge))
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func TestScenarioSquarePocketNormal(t *testing.T) {
	tgt := buildTarget(t, brep.Prism{
		Outline: rect(0, 0, 40, 40),
		Height:  10,
		Pockets: []brep.Pocket{{Outline: rect(10, 10, 30, 30), Depth: 5}},
	})
	pl, err := NewPlanner(metricParams(Normal), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3.0, pl.Radius())

	got := planFace(t, pl, tgt, "top")
	require.Len(t, got, 4)
	corners := map[[2]float64]bool{{10, 10}: true, {30, 10}: true, {30, 30}: true, {10, 30}: true}
	for _, d := range got {
		assert.InDelta(t, 3/math.Sqrt2, d.PrimaryOffset, 1e-9)
		assert.InDelta(t, 2.121, d.SecondaryOffset, 1e-3)
		assert.InDelta(t, 3.0, d.Distance, 1e-12)
		assert.Equal(t, "top", d.Plane.Label)
		assert.Equal(t, "pocket0-floor", d.Extent.Label)
		assert.Equal(t, r3.Vec{}, d.Translation)

		// The relief circle passes through its corner and sits inside the pocket.
		vx := math.Round(d.Centre.X-3/math.Sqrt2*math.Copysign(1, d.Direction.X))
		vy := math.Round(d.Centre.Y-3/math.Sqrt2*math.Copysign(1, d.Direction.Y))
		assert.True(t, corners[[2]float64{vx, vy}], "centre %v not at a pocket corner", d.Centre)
		assert.True(t, d.Centre.X > 10 && d.Centre.X < 30 && d.Centre.Y > 10 && d.Centre.Y < 30)
		assert.InDelta(t, 10, d.Centre.Z, 1e-12)
		assert.InDelta(t, 90, d.Angle, 1e-9)
	}
}

func TestScenarioMortiseLongSide(t *testing.T) {
	tgt := buildTarget(t, brep.Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  10,
		Pockets: []brep.Pocket{{Outline: rect(10, 10, 30, 20), Depth: 5}},
	})
	for _, longSide := range []bool{true, false} {
		p := metricParams(Mortise)
		p.MortiseLongSide = longSide
		pl, err := NewPlanner(p, zerolog.Nop())
		require.NoError(t, err)

		got := planFace(t, pl, tgt, "top")
		require.Len(t, got, 4)
		for _, d := range got {
			offsets := map[float64]float64{
				edgeLength(t, tgt, d.PrimaryEdge):   d.PrimaryOffset,
				edgeLength(t, tgt, d.SecondaryEdge): d.SecondaryOffset,
			}
			if longSide {
				assert.Equal(t, 0.0, offsets[20])
				assert.Equal(t, 3.0, offsets[10])
				assert.InDelta(t, 0, d.Direction.Y, 1e-12, "slides along the 20 mm edge")
			} else {
				assert.Equal(t, 3.0, offsets[20])
				assert.Equal(t, 0.0, offsets[10])
				assert.InDelta(t, 0, d.Direction.X, 1e-12, "slides along the 10 mm edge")
			}
		}
	}
}

func edgeLength(t *testing.T, tgt brep.Target, key string) float64 {
	t.Helper()
	e, err := brep.EdgeByKey(tgt, key)
	require.NoError(t, err)
	return tgt.Body.Length(e)
}

func TestFromTopTranslatesCentres(t *testing.T) {
	tgt := buildTarget(t, brep.Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  12,
		Pockets: []brep.Pocket{{Outline: rect(10, 10, 30, 20), Depth: 4}},
	})
	p := metricParams(Normal)
	p.FromTop = true
	pl, err := NewPlanner(p, zerolog.Nop())
	require.NoError(t, err)

	got := planFace(t, pl, tgt, "pocket0-floor")
	require.Len(t, got, 4)
	for _, d := range got {
		assert.Equal(t, "top", d.Plane.Label)
		assert.Equal(t, "pocket0-floor", d.Face.Label)
		assert.True(t, geom.Equal(r3.Vec{Z: 4}, d.Translation), "translation %v", d.Translation)
		assert.InDelta(t, 12, d.Centre.Z, 1e-12)
	}

	// From the top face itself the translation is zero.
	got = planFace(t, pl, tgt, "top")
	for _, d := range got {
		assert.True(t, geom.Equal(r3.Vec{}, d.Translation))
	}
}

func TestStaleFacesAreRevalidated(t *testing.T) {
	tgt := buildTarget(t, brep.Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  10,
		Pockets: []brep.Pocket{{Outline: rect(10, 10, 30, 20), Depth: 4}},
	})
	p := metricParams(Normal)
	p.FromTop = true
	pl, err := NewPlanner(p, zerolog.Nop())
	require.NoError(t, err)

	floor := face(t, tgt, "pocket0-floor")
	ref := RefOf(tgt, floor)
	keys := []string{}
	for _, c := range EligibleCorners(tgt.Body, floor, p.AngleConfig()) {
		keys = append(keys, brep.EdgeKey(tgt, c.Edge))
	}
	require.NoError(t, pl.Begin(ref))
	defer pl.End()

	for i, k := range keys {
		tgt.Body.Regenerate()
		d, err := pl.Plan(ref, k)
		require.NoError(t, err, "corner %d", i)
		assert.Equal(t, "top", d.Plane.Label)
		_, err = tgt.Body.Face(d.Plane.ID)
		assert.NoError(t, err, "descriptor carries a current handle")
	}
	assert.GreaterOrEqual(t, pl.Resolver().Revalidations(), 2*len(keys))
}

func TestStaleFaceThatVanishedIsInvalidGeometry(t *testing.T) {
	tgt := buildTarget(t, brep.Prism{Outline: rect(0, 0, 10, 10), Height: 2})
	r := NewResolver(false, zerolog.Nop())
	ref := RefOf(tgt, face(t, tgt, "top"))
	ref.Point = r3.Vec{X: 500}
	tgt.Body.Regenerate()

	_, _, err := r.Face(ref)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestPlanSkipsEdgeNoLongerEligible(t *testing.T) {
	tgt := buildTarget(t, brep.Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  10,
		Pockets: []brep.Pocket{{Outline: rect(10, 10, 30, 20), Depth: 4}},
	})
	pl, err := NewPlanner(metricParams(Normal), zerolog.Nop())
	require.NoError(t, err)

	top := face(t, tgt, "top")
	ref := RefOf(tgt, top)
	require.NoError(t, pl.Begin(ref))
	defer pl.End()

	// An outline corner is convex.
	var convex *brep.Edge
	for _, e := range tgt.Body.Edges() {
		s, _ := tgt.Body.Endpoints(e)
		if tgt.Body.MeetsAtCorner(top, e) && s.X == 0 && s.Y == 0 {
			convex = e
		}
	}
	require.NotNil(t, convex)
	_, err = pl.Plan(ref, brep.EdgeKey(tgt, convex))
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = pl.Plan(ref, "no-such-edge")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestNewPlannerRejectsInvalidParams(t *testing.T) {
	p := metricParams(Normal)
	p.ToolDiameter = "0 mm"
	_, err := NewPlanner(p, zerolog.Nop())
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
}
