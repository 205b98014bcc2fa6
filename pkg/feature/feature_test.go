package feature

import (
	"math"
	"testing"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func rect(x0, y0, x1, y1 float64) []r2.Vec {
	return []r2.Vec{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func testParams(v dogbone.Variant) dogbone.Params {
	p := dogbone.DefaultParams()
	p.ToolDiameter = "6 mm"
	p.ToolOffset = "0 mm"
	p.Variant = v
	return p
}

// descriptors plans every corner of the labelled face of a fresh pocket
// block.
func descriptors(t *testing.T, p dogbone.Params, label string) (brep.Target, []dogbone.Descriptor) {
	t.Helper()
	b, err := brep.Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  10,
		Pockets: []brep.Pocket{{Outline: rect(10, 10, 30, 20), Depth: 4}},
	}.Build("plate")
	require.NoError(t, err)
	tgt := brep.Target{Body: b}
	f, err := b.FaceByLabel(label)
	require.NoError(t, err)

	pl, err := dogbone.NewPlanner(p, zerolog.Nop())
	require.NoError(t, err)
	ref := dogbone.RefOf(tgt, f)
	require.NoError(t, pl.Begin(ref))
	defer pl.End()

	var out []dogbone.Descriptor
	for _, c := range dogbone.EligibleCorners(b, f, p.AngleConfig()) {
		d, err := pl.Plan(ref, brep.EdgeKey(tgt, c.Edge))
		require.NoError(t, err)
		out = append(out, d)
	}
	return tgt, out
}

func TestSetParametersUpsertsInPlace(t *testing.T) {
	tl := NewTimeline(zerolog.Nop())
	require.NoError(t, tl.SetParameters(testParams(dogbone.Normal)))
	require.Len(t, tl.Parameters, 5)

	assert.Equal(t, "6 mm", tl.Parameter(ParamToolDia).Expression)
	assert.Equal(t, "Do NOT change formula", tl.Parameter(ParamOffset).Comment)
	assert.Equal(t, RadiusExpr, tl.Parameter(ParamRadius).Expression)
	assert.InDelta(t, 3, tl.Parameter(ParamRadius).Value, 1e-12)
	assert.Equal(t, "dbRadius / sqrt(2)", tl.Parameter(ParamHoleOffset).Expression)
	assert.InDelta(t, 3/math.Sqrt2, tl.Parameter(ParamHoleOffset).Value, 1e-12)

	p := testParams(dogbone.Minimal)
	p.ToolDiameter = "1/4 in"
	p.MinimalPercent = 20
	require.NoError(t, tl.SetParameters(p))
	require.Len(t, tl.Parameters, 5, "second run updates, does not duplicate")
	assert.Equal(t, "1/4 in", tl.Parameter(ParamToolDia).Expression)
	assert.Equal(t, "20", tl.Parameter(ParamMinPercent).Expression)
	assert.Equal(t, "dbRadius / sqrt(2) * (1 + dbMinPercent/100)", tl.Parameter(ParamHoleOffset).Expression)
	assert.InDelta(t, 3.175/math.Sqrt2*1.2, tl.Parameter(ParamHoleOffset).Value, 1e-9)
	assert.Equal(t, "Do NOT change formula", tl.Parameter(ParamOffset).Comment)

	require.NoError(t, tl.SetParameters(testParams(dogbone.Mortise)))
	assert.Equal(t, "dbRadius", tl.Parameter(ParamHoleOffset).Expression)
}

func TestTimelineGroupsHoles(t *testing.T) {
	p := testParams(dogbone.Normal)
	tgt, ds := descriptors(t, p, "top")
	require.Len(t, ds, 4)

	tl := NewTimeline(zerolog.Nop())
	require.NoError(t, tl.SetParameters(p))
	require.NoError(t, tl.BeginGroup(tgt.Key()))
	assert.ErrorIs(t, tl.BeginGroup("again"), ErrGroupOpen)
	for _, d := range ds {
		require.NoError(t, tl.Create(d))
	}
	for _, h := range tl.Holes {
		assert.True(t, h.Suppressed, "suppressed until the group closes")
	}
	require.NoError(t, tl.EndGroup())

	require.Len(t, tl.Holes, 4)
	require.Len(t, tl.Groups, 1)
	assert.Equal(t, Name, tl.Groups[0].Name)
	assert.Len(t, tl.Groups[0].Features, 4)
	for _, h := range tl.Holes {
		assert.False(t, h.Suppressed)
		assert.Equal(t, Name, h.Name)
		assert.Equal(t, DiameterExpr, h.Diameter)
		assert.Equal(t, TipAngleExpr, h.TipAngle)
		assert.Equal(t, ParamHoleOffset, h.Offset1)
		assert.Equal(t, ParamHoleOffset, h.Offset2)
		v, err := tl.Value(h.Diameter)
		require.NoError(t, err)
		assert.InDelta(t, 6, v, 1e-12)
	}

	res := ValidateAll(tl)
	assert.True(t, res.OK(), "%v", res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestTimelineEmptyGroupIsDropped(t *testing.T) {
	tl := NewTimeline(zerolog.Nop())
	require.NoError(t, tl.BeginGroup("root/plate"))
	require.NoError(t, tl.EndGroup())
	assert.Empty(t, tl.Groups)
	assert.ErrorIs(t, tl.EndGroup(), ErrNoGroup)
	assert.ErrorIs(t, tl.Create(dogbone.Descriptor{}), ErrNoGroup)
}

func TestTimelineNeedsParameters(t *testing.T) {
	p := testParams(dogbone.Normal)
	tgt, ds := descriptors(t, p, "top")
	tl := NewTimeline(zerolog.Nop())
	require.NoError(t, tl.BeginGroup(tgt.Key()))
	assert.ErrorIs(t, tl.Create(ds[0]), ErrMissingParameter)
}

func TestMortiseHolesBindZeroOffset(t *testing.T) {
	p := testParams(dogbone.Mortise)
	tgt, ds := descriptors(t, p, "top")
	tl := NewTimeline(zerolog.Nop())
	require.NoError(t, tl.SetParameters(p))
	require.NoError(t, tl.BeginGroup(tgt.Key()))
	for _, d := range ds {
		require.NoError(t, tl.Create(d))
	}
	require.NoError(t, tl.EndGroup())

	for _, h := range tl.Holes {
		zero := 0
		for _, expr := range []string{h.Offset1, h.Offset2} {
			if expr == "0" {
				zero++
			} else {
				v, err := tl.Value(expr)
				require.NoError(t, err)
				assert.InDelta(t, 3, v, 1e-12)
			}
		}
		assert.Equal(t, 1, zero)
	}
}

func TestValidateAllFindings(t *testing.T) {
	p := testParams(dogbone.Normal)
	tgt, ds := descriptors(t, p, "top")
	tl := NewTimeline(zerolog.Nop())
	require.NoError(t, tl.SetParameters(p))
	require.NoError(t, tl.BeginGroup(tgt.Key()))
	require.NoError(t, tl.Create(ds[0]))
	require.NoError(t, tl.Create(ds[0]))
	require.NoError(t, tl.EndGroup())

	res := ValidateAll(tl)
	assert.True(t, res.OK(), "%v", res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "duplicates hole")

	// A regenerated body still resolves the faces by point.
	tgt.Body.Regenerate()
	assert.True(t, ValidateAll(tl).OK())

	tl.Parameter(ParamRadius).Value = 0
	tl.Holes[0].Diameter = "dbMissing"
	errs := ValidateTimeline(tl)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, SeverityError, e.Severity)
	}
	assert.Contains(t, errs[0].Error(), "dbRadius must be positive")
	assert.Contains(t, errs[1].Error(), "dbMissing")
}

func TestToolFor(t *testing.T) {
	p := testParams(dogbone.Normal)
	_, ds := descriptors(t, p, "top")
	for _, d := range ds {
		tb, err := ToolFor(d)
		require.NoError(t, err)
		assert.InDelta(t, 3, tb.Radius, 1e-12)
		assert.InDelta(t, 4+2*toolMargin, tb.Length, 1e-9)
		assert.InDelta(t, 6-toolMargin, tb.Base.Z, 1e-9)
		assert.InDelta(t, 10+toolMargin, tb.Top().Z, 1e-9)
		assert.InDelta(t, d.Centre.X, tb.Base.X, 1e-12)
	}

	p.FromTop = true
	_, ds = descriptors(t, p, "pocket0-floor")
	for _, d := range ds {
		tb, err := ToolFor(d)
		require.NoError(t, err)
		assert.InDelta(t, 6-toolMargin, tb.Base.Z, 1e-9)
		assert.InDelta(t, 10+toolMargin, tb.Top().Z, 1e-9)
	}

	bad := ds[0]
	bad.Radius = 0
	_, err := ToolFor(bad)
	assert.ErrorIs(t, err, dogbone.ErrConfigurationInvalid)
}

func TestCutterOneCutPerFace(t *testing.T) {
	p := testParams(dogbone.Normal)
	p.Parametric = false
	tgt, top := descriptors(t, p, "top")

	// Plan the floor against the same body so both faces belong to one
	// occurrence.
	floor, err := tgt.Body.FaceByLabel("pocket0-floor")
	require.NoError(t, err)
	pl, err := dogbone.NewPlanner(p, zerolog.Nop())
	require.NoError(t, err)
	ref := dogbone.RefOf(tgt, floor)
	require.NoError(t, pl.Begin(ref))
	var floorDs []dogbone.Descriptor
	for _, c := range dogbone.EligibleCorners(tgt.Body, floor, p.AngleConfig()) {
		d, err := pl.Plan(ref, brep.EdgeKey(tgt, c.Edge))
		require.NoError(t, err)
		floorDs = append(floorDs, d)
	}
	pl.End()

	c := NewCutter(zerolog.Nop())
	gen := tgt.Body.Generation()
	require.NoError(t, c.BeginGroup(tgt.Key()))
	for _, d := range append(top, floorDs...) {
		require.NoError(t, c.Create(d))
	}
	assert.Equal(t, gen+1, tgt.Body.Generation(), "first face committed when the second began")
	require.NoError(t, c.EndGroup())
	assert.Equal(t, gen+2, tgt.Body.Generation())

	require.Len(t, c.Cuts, 2)
	for _, cut := range c.Cuts {
		assert.Equal(t, Name, cut.Name)
		assert.Equal(t, ToolBodyName, cut.ToolName)
		assert.Len(t, cut.Tools, 4)
	}
	require.Len(t, c.Groups, 1)
	assert.Len(t, c.Groups[0].Features, 2)
	assert.Len(t, c.CutsFor(tgt.Body), 2)
	assert.Empty(t, ValidateCuts(c))
}
