package brep

import (
	"testing"

	"github.com/it-ony/Dogbone/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func rect(x0, y0, x1, y1 float64) []r2.Vec {
	return []r2.Vec{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// pocketBlock is a 40x30x10 block with a 20x10 pocket 4 deep.
func pocketBlock(t *testing.T) *Body {
	t.Helper()
	b, err := Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  10,
		Pockets: []Pocket{{Outline: rect(10, 10, 30, 20), Depth: 4}},
	}.Build("block")
	require.NoError(t, err)
	return b
}

// cornerEdge returns the vertical pocket edge at (x, y).
func cornerEdge(t *testing.T, b *Body, x, y float64) *Edge {
	t.Helper()
	for _, e := range b.Edges() {
		s, u := b.Endpoints(e)
		if geom.Equal(s, r3.Vec{X: x, Y: y, Z: 6}) && geom.Equal(u, r3.Vec{X: x, Y: y, Z: 10}) {
			return e
		}
	}
	t.Fatalf("no vertical edge at (%g, %g)", x, y)
	return nil
}

func TestPrismTopology(t *testing.T) {
	b := pocketBlock(t)
	assert.Len(t, b.Faces(), 11)
	assert.Len(t, b.Edges(), 24)

	for _, e := range b.Edges() {
		f0, f1 := b.AdjacentFaces(e)
		assert.NotEqual(t, f0.ID, f1.ID)
	}

	wall, err := b.FaceByLabel("pocket0-wall0")
	require.NoError(t, err)
	assert.True(t, geom.Equal(r3.Vec{Y: 1}, wall.Normal), "pocket wall normal points into the pocket: %v", wall.Normal)

	side, err := b.FaceByLabel("side0")
	require.NoError(t, err)
	assert.True(t, geom.Equal(r3.Vec{Y: -1}, side.Normal), "outline side normal points away: %v", side.Normal)
}

func TestClockwiseOutlineIsNormalized(t *testing.T) {
	cw := rect(0, 0, 10, 10)
	cw[1], cw[3] = cw[3], cw[1]
	b, err := Prism{Outline: cw, Height: 5}.Build("cw")
	require.NoError(t, err)
	centre := r3.Vec{X: 5, Y: 5, Z: 2.5}
	for _, f := range b.Faces() {
		assert.Greater(t, r3.Dot(f.Normal, r3.Sub(f.Origin, centre)), 0.0, "face %s points inwards", f.Label)
	}
}

func TestPrismValidate(t *testing.T) {
	tests := []struct {
		name  string
		prism Prism
	}{
		{"too few points", Prism{Outline: rect(0, 0, 1, 1)[:2], Height: 1}},
		{"zero height", Prism{Outline: rect(0, 0, 1, 1)}},
		{"collinear", Prism{Outline: []r2.Vec{{}, {X: 1}, {X: 2}}, Height: 1}},
		{"pocket outside", Prism{Outline: rect(0, 0, 10, 10), Height: 1, Pockets: []Pocket{{Outline: rect(5, 5, 15, 8), Depth: 0.5}}}},
		{"pocket zero depth", Prism{Outline: rect(0, 0, 10, 10), Height: 1, Pockets: []Pocket{{Outline: rect(2, 2, 4, 4)}}}},
		{"rounded out of range", Prism{Outline: rect(0, 0, 10, 10), Height: 1, Pockets: []Pocket{{Outline: rect(2, 2, 4, 4), Depth: 0.5, Rounded: []int{4}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.prism.Build("x")
			assert.ErrorIs(t, err, errBadPrism)
		})
	}
}

func TestCornerQueries(t *testing.T) {
	b := pocketBlock(t)
	top, err := b.FaceByLabel("top")
	require.NoError(t, err)
	floor, err := b.FaceByLabel("pocket0-floor")
	require.NoError(t, err)

	e := cornerEdge(t, b, 10, 10)
	assert.True(t, b.MeetsAtCorner(top, e))
	assert.True(t, b.MeetsAtCorner(floor, e))
	assert.False(t, b.OnBoundary(top, e))

	v, err := b.VertexAtFace(top, e)
	require.NoError(t, err)
	assert.True(t, geom.Equal(r3.Vec{X: 10, Y: 10, Z: 10}, v.Point))

	far, err := b.FarVertex(top, e)
	require.NoError(t, err)
	assert.True(t, geom.Equal(r3.Vec{X: 10, Y: 10, Z: 6}, far.Point))

	down, err := b.DirectionFrom(e, v)
	require.NoError(t, err)
	assert.True(t, geom.Equal(r3.Vec{Z: -1}, down))

	e1, e2, err := b.CornerEdgesAtFace(top, e)
	require.NoError(t, err)
	lengths := []float64{b.Length(e1), b.Length(e2)}
	assert.ElementsMatch(t, []float64{20, 10}, lengths)

	ext, err := b.FindExtent(top, e)
	require.NoError(t, err)
	assert.Equal(t, floor.ID, ext.ID)

	ext, err = b.FindExtent(floor, e)
	require.NoError(t, err)
	assert.Equal(t, top.ID, ext.ID)

	tf, err := b.TopFace(floor)
	require.NoError(t, err)
	assert.Equal(t, top.ID, tf.ID)
}

func TestInwardDirection(t *testing.T) {
	b := pocketBlock(t)
	e := cornerEdge(t, b, 10, 10)
	fa, fb := b.AdjacentFaces(e)
	ta, err := b.InwardDirection(fa, e)
	require.NoError(t, err)
	tb, err := b.InwardDirection(fb, e)
	require.NoError(t, err)

	// Each wall extends away from the corner along the pocket outline.
	assert.InDelta(t, 0, r3.Dot(ta, r3.Vec{Z: 1}), 1e-12)
	assert.Greater(t, r3.Dot(fa.Normal, tb), 0.5)
	assert.Greater(t, r3.Dot(fb.Normal, ta), 0.5)

	top, err := b.FaceByLabel("top")
	require.NoError(t, err)
	_, err = b.InwardDirection(top, e)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThroughPocketExtent(t *testing.T) {
	b, err := Prism{
		Outline: rect(0, 0, 40, 30),
		Height:  10,
		Pockets: []Pocket{{Outline: rect(10, 10, 30, 20), Depth: 10, Rounded: []int{2}}},
	}.Build("frame")
	require.NoError(t, err)
	assert.Len(t, b.Faces(), 10)

	top, err := b.FaceByLabel("top")
	require.NoError(t, err)
	bottom, err := b.FaceByLabel("bottom")
	require.NoError(t, err)

	var arcs int
	for _, e := range b.Edges() {
		if e.Curve == CurveArc {
			arcs++
			continue
		}
		if b.MeetsAtCorner(top, e) {
			s, _ := b.Endpoints(e)
			if s.X == 10 && s.Y == 10 {
				ext, err := b.FindExtent(top, e)
				require.NoError(t, err)
				assert.Equal(t, bottom.ID, ext.ID)
			}
		}
	}
	assert.Equal(t, 1, arcs)
}

func TestRegenerateInvalidatesHandles(t *testing.T) {
	b := pocketBlock(t)
	floor, err := b.FaceByLabel("pocket0-floor")
	require.NoError(t, err)
	id := floor.ID
	ref := b.RefPoint(floor)
	e := cornerEdge(t, b, 30, 20)
	eid := e.ID

	b.Regenerate()
	assert.Equal(t, uint64(1), b.Generation())

	_, err = b.Face(id)
	assert.ErrorIs(t, err, ErrStale)
	_, err = b.Edge(eid)
	assert.ErrorIs(t, err, ErrStale)

	again, err := b.FaceAt(ref)
	require.NoError(t, err)
	assert.Equal(t, "pocket0-floor", again.Label)
	assert.NotEqual(t, id, again.ID)

	got, err := b.Face(again.ID)
	require.NoError(t, err)
	assert.Equal(t, again, got)

	_, err = b.FaceAt(r3.Vec{X: 100, Y: 100, Z: 100})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeysSurviveRegeneration(t *testing.T) {
	d := NewDesign("design")
	c, err := d.AddComponent("part")
	require.NoError(t, err)
	b := pocketBlock(t)
	c.Bodies = append(c.Bodies, b)
	o, err := d.AddOccurrence("part:1", c)
	require.NoError(t, err)
	tgt := Target{Occurrence: o, Body: b}

	floor, err := b.FaceByLabel("pocket0-floor")
	require.NoError(t, err)
	e := cornerEdge(t, b, 10, 20)
	fk, ek := FaceKey(tgt, floor), EdgeKey(tgt, e)

	b.Regenerate()
	floor, err = b.FaceByLabel("pocket0-floor")
	require.NoError(t, err)
	assert.Equal(t, fk, FaceKey(tgt, floor))

	got, err := EdgeByKey(tgt, ek)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "occ/part:1", tgt.Key())
	assert.Equal(t, "part", tgt.ComponentName())
}

func TestDesignRegistry(t *testing.T) {
	d := NewDesign("design")
	_, err := d.AddComponent("design")
	assert.Error(t, err)

	c, err := d.AddComponent("leg")
	require.NoError(t, err)
	_, err = d.AddComponent("leg")
	assert.Error(t, err)

	_, err = d.AddOccurrence("leg:1", c)
	require.NoError(t, err)
	_, err = d.AddOccurrence("leg:1", c)
	assert.Error(t, err)
	_, err = d.AddOccurrence("root", d.Root)
	assert.Error(t, err)

	b := pocketBlock(t)
	d.Root.Bodies = append(d.Root.Bodies, b)
	c.Bodies = append(c.Bodies, pocketBlock(t))
	targets := d.Targets()
	require.Len(t, targets, 2)
	assert.True(t, targets[0].IsRoot())
	assert.Equal(t, "root/block", targets[0].Key())
	assert.Equal(t, "leg:1:block", targets[1].String())
}
