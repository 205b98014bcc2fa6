package dogbone

import (
	"fmt"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"
)

// Descriptor is the complete placement of one relief, ready for a feature
// creator.
type Descriptor struct {
	Target        brep.Target `json:"-"`
	OccurrenceKey string      `json:"occurrence"`
	FaceKey       string      `json:"face"`
	EdgeKey       string      `json:"edge"`

	Centre          r3.Vec  `json:"centre"`
	Normal          r3.Vec  `json:"normal"`
	Plane           FaceRef `json:"plane"`
	Face            FaceRef `json:"nativeFace"`
	PrimaryEdge     string  `json:"primaryEdge"`
	PrimaryOffset   float64 `json:"primaryOffset"`
	SecondaryEdge   string  `json:"secondaryEdge"`
	SecondaryOffset float64 `json:"secondaryOffset"`
	Extent          FaceRef `json:"extent"`

	Direction   r3.Vec  `json:"direction"`
	Distance    float64 `json:"distance"`
	Translation r3.Vec  `json:"translation"`
	Radius      float64 `json:"radius"`
	Variant     Variant `json:"variant"`
	Angle       float64 `json:"angle"`
}

// Planner turns selected corners into descriptors. It holds the parameter
// snapshot of one run.
type Planner struct {
	params   Params
	radius   float64
	cfg      AngleConfig
	resolver *Resolver
	log      zerolog.Logger
}

// NewPlanner validates p and prepares a run.
func NewPlanner(p Params, log zerolog.Logger) (*Planner, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r, err := p.Radius()
	if err != nil {
		return nil, err
	}
	return &Planner{
		params:   p,
		radius:   r,
		cfg:      p.AngleConfig(),
		resolver: NewResolver(p.FromTop, log),
		log:      log,
	}, nil
}

// Radius returns the relief radius of the run in millimetres.
func (pl *Planner) Radius() float64 { return pl.radius }

// Params returns the parameter snapshot.
func (pl *Planner) Params() Params { return pl.params }

// Resolver exposes the extent resolver, mainly for face revalidation.
func (pl *Planner) Resolver() *Resolver { return pl.resolver }

// Begin starts an occurrence; End finishes it.
func (pl *Planner) Begin(first FaceRef) error { return pl.resolver.Begin(first) }
func (pl *Planner) End()                      { pl.resolver.End() }

// Plan places the relief for the corner edge with key edgeKey on face.
// ErrNotEligible means the edge should be skipped silently; every other
// error is a failed corner.
func (pl *Planner) Plan(face FaceRef, edgeKey string) (Descriptor, error) {
	t := face.Target
	b := t.Body

	f, face, err := pl.resolver.Face(face)
	if err != nil {
		return Descriptor{}, err
	}
	e, err := brep.EdgeByKey(t, edgeKey)
	if err != nil {
		// consumed by an earlier cut
		return Descriptor{}, fmt.Errorf("%w: %v", ErrNotEligible, err)
	}

	corner, err := CornerAt(b, f, e)
	if err != nil {
		return Descriptor{}, err
	}
	cls, err := Classify(corner, pl.cfg)
	if err != nil {
		return Descriptor{}, err
	}
	if !cls.Interior {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotEligible, cls.Reason)
	}

	v, err := b.VertexAtFace(f, e)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	in := PlaceInput{
		Vertex:         v.Point,
		Direction:      cls.Direction,
		Radius:         pl.radius,
		Variant:        pl.params.Variant,
		MinimalPercent: pl.params.MinimalPercent,
		LongSide:       pl.params.MortiseLongSide,
	}
	e1, e2, err := b.CornerEdgesAtFace(f, e)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrAdjacentEdgeResolutionFailed, err)
	}
	if in.Edge1, err = boundingEdge(t, e1, v); err != nil {
		return Descriptor{}, err
	}
	if in.Edge2, err = boundingEdge(t, e2, v); err != nil {
		return Descriptor{}, err
	}
	p, err := Place(in)
	if err != nil {
		return Descriptor{}, err
	}

	ext, err := pl.resolver.Resolve(face, e)
	if err != nil {
		return Descriptor{}, err
	}
	centre := r3.Add(p.Centre, ext.Translation)
	pl.log.Debug().
		Str("edge", edgeKey).
		Float64("x", centre.X).Float64("y", centre.Y).Float64("z", centre.Z).
		Msg("centre point")

	return Descriptor{
		Target:          t,
		OccurrenceKey:   t.Key(),
		FaceKey:         brep.FaceKey(t, f),
		EdgeKey:         edgeKey,
		Centre:          centre,
		Normal:          f.Normal,
		Plane:           ext.Plane,
		Face:            ext.Face,
		PrimaryEdge:     p.PrimaryEdge,
		PrimaryOffset:   p.PrimaryOffset,
		SecondaryEdge:   p.SecondaryEdge,
		SecondaryOffset: p.SecondaryOffset,
		Extent:          ext.Target,
		Direction:       p.Direction,
		Distance:        p.Distance,
		Translation:     ext.Translation,
		Radius:          pl.radius,
		Variant:         pl.params.Variant,
		Angle:           cls.Angle,
	}, nil
}

func boundingEdge(t brep.Target, e *brep.Edge, from *brep.Vertex) (*BoundingEdge, error) {
	d, err := t.Body.DirectionFrom(e, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return &BoundingEdge{Key: brep.EdgeKey(t, e), Length: t.Body.Length(e), Direction: d}, nil
}
