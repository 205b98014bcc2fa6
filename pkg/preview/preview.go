// Package preview draws a processed face and the reliefs placed on it as
// a raster image, looking down the face normal.
package preview

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options controls the image size.
type Options struct {
	Size   int     // width and height in pixels
	Margin float64 // blank border in pixels
}

// DefaultOptions returns a 512 pixel square with a 16 pixel border.
func DefaultOptions() Options { return Options{Size: 512, Margin: 16} }

var (
	outlineColor = gg.Hex("#1f2933")
	reliefFill   = gg.RGBA2(0.85, 0.2, 0.15, 0.35)
	reliefLine   = gg.RGB(0.75, 0.1, 0.05)
	cornerColor  = gg.RGB(0.15, 0.35, 0.8)
)

// Scene is a face projected onto its plane, with the reliefs on it.
type Scene struct {
	Segments [][2]r2.Vec
	Reliefs  []Relief
}

// Relief is a projected relief circle and the corner it serves.
type Relief struct {
	Centre r2.Vec
	Radius float64
	Corner r2.Vec
}

// basis returns two unit vectors spanning the plane with normal n.
func basis(n r3.Vec) (u, v r3.Vec) {
	ref := r3.Vec{Z: 1}
	if math.Abs(n.Z) > 0.9 {
		ref = r3.Vec{X: 1}
	}
	u = r3.Unit(r3.Cross(ref, n))
	v = r3.Cross(n, u)
	return u, v
}

// Project builds the scene of face f of t. Only descriptors whose face key
// is f's are kept.
func Project(t brep.Target, f *brep.Face, descs []dogbone.Descriptor) (*Scene, error) {
	b := t.Body
	if r3.Norm(f.Normal) == 0 {
		return nil, errors.New("preview: face has no normal")
	}
	n := r3.Unit(f.Normal)
	u, v := basis(n)
	at := func(p r3.Vec) r2.Vec {
		d := r3.Sub(p, f.Origin)
		return r2.Vec{X: r3.Dot(d, u), Y: r3.Dot(d, v)}
	}

	sc := &Scene{}
	for _, e := range b.Edges() {
		if !b.OnBoundary(f, e) {
			continue
		}
		s, w := b.Endpoints(e)
		sc.Segments = append(sc.Segments, [2]r2.Vec{at(s), at(w)})
	}
	if len(sc.Segments) == 0 {
		return nil, fmt.Errorf("preview: face %q has no edges", f.Label)
	}

	key := brep.FaceKey(t, f)
	for _, d := range descs {
		if d.FaceKey != key {
			continue
		}
		corner := r3.Sub(d.Centre, d.Translation)
		sc.Reliefs = append(sc.Reliefs, Relief{
			Centre: at(d.Centre),
			Radius: d.Radius,
			Corner: at(r3.Sub(corner, r3.Scale(d.Distance, d.Direction))),
		})
	}
	return sc, nil
}

// bounds returns the extent of everything drawn.
func (sc *Scene) bounds() (lo, hi r2.Vec) {
	lo = r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi = r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	grow := func(p r2.Vec, r float64) {
		lo = r2.Vec{X: min(lo.X, p.X-r), Y: min(lo.Y, p.Y-r)}
		hi = r2.Vec{X: max(hi.X, p.X+r), Y: max(hi.Y, p.Y+r)}
	}
	for _, s := range sc.Segments {
		grow(s[0], 0)
		grow(s[1], 0)
	}
	for _, r := range sc.Reliefs {
		grow(r.Centre, r.Radius)
	}
	return lo, hi
}

// Draw renders the scene into a new context. The caller closes it.
func (sc *Scene) Draw(o Options) (*gg.Context, error) {
	if o.Size <= 0 {
		return nil, fmt.Errorf("preview: image size %d", o.Size)
	}
	lo, hi := sc.bounds()
	span := max(hi.X-lo.X, hi.Y-lo.Y)
	if span <= 0 || math.IsInf(span, 0) {
		return nil, errors.New("preview: empty scene")
	}
	scale := (float64(o.Size) - 2*o.Margin) / span
	px := func(p r2.Vec) (float64, float64) {
		// image Y grows downwards
		return o.Margin + (p.X-lo.X)*scale, float64(o.Size) - o.Margin - (p.Y-lo.Y)*scale
	}

	dc := gg.NewContext(o.Size, o.Size)
	dc.ClearWithColor(gg.White)

	for _, r := range sc.Reliefs {
		x, y := px(r.Centre)
		dc.DrawCircle(x, y, r.Radius*scale)
		dc.SetColor(reliefFill.Color())
		if err := dc.FillPreserve(); err != nil {
			return nil, err
		}
		dc.SetColor(reliefLine.Color())
		dc.SetLineWidth(1)
		if err := dc.Stroke(); err != nil {
			return nil, err
		}
	}

	dc.SetColor(outlineColor.Color())
	dc.SetLineWidth(2)
	for _, s := range sc.Segments {
		x0, y0 := px(s[0])
		x1, y1 := px(s[1])
		dc.DrawLine(x0, y0, x1, y1)
	}
	if err := dc.Stroke(); err != nil {
		return nil, err
	}

	dc.SetColor(cornerColor.Color())
	for _, r := range sc.Reliefs {
		x, y := px(r.Corner)
		dc.DrawCircle(x, y, 2.5)
	}
	if err := dc.Fill(); err != nil {
		return nil, err
	}
	return dc, nil
}

// Render draws face f of t with its reliefs.
func Render(t brep.Target, f *brep.Face, descs []dogbone.Descriptor, o Options) (image.Image, error) {
	sc, err := Project(t, f, descs)
	if err != nil {
		return nil, err
	}
	dc, err := sc.Draw(o)
	if err != nil {
		return nil, err
	}
	defer dc.Close()
	return dc.Image(), nil
}

// WritePNG renders like Render and encodes the result as PNG.
func WritePNG(w io.Writer, t brep.Target, f *brep.Face, descs []dogbone.Descriptor, o Options) error {
	sc, err := Project(t, f, descs)
	if err != nil {
		return err
	}
	dc, err := sc.Draw(o)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}
