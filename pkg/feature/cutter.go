package feature

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/geom"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"
)

// toolMargin extends tool bodies past the faces they start and end on so
// the cut leaves no skin.
const toolMargin = 0.01

// ToolBody is a cylindrical cutter.
type ToolBody struct {
	Base   r3.Vec  `json:"base"`
	Axis   r3.Vec  `json:"axis"` // unit
	Length float64 `json:"length"`
	Radius float64 `json:"radius"`
}

// Top returns the centre of the far end of the cylinder.
func (tb ToolBody) Top() r3.Vec { return r3.Add(tb.Base, r3.Scale(tb.Length, tb.Axis)) }

// Cut removes the union of its tool bodies from a target body. There is one
// cut per processed face.
type Cut struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	ToolName   string      `json:"toolName"`
	Occurrence string      `json:"occurrence"`
	Body       string      `json:"body"`
	Face       string      `json:"face"`
	Tools      []ToolBody  `json:"tools"`
	Target     brep.Target `json:"-"`
}

// Cutter is the static feature creator.
type Cutter struct {
	Cuts   []*Cut   `json:"cuts"`
	Groups []*Group `json:"groups"`

	log     zerolog.Logger
	open    *openGroup
	pending *Cut
}

// NewCutter returns an empty static feature creator.
func NewCutter(log zerolog.Logger) *Cutter {
	return &Cutter{log: log}
}

// BeginGroup starts the cuts of an occurrence.
func (c *Cutter) BeginGroup(occurrence string) error {
	if c.open != nil {
		return fmt.Errorf("%w: %s", ErrGroupOpen, c.open.occurrence)
	}
	c.open = &openGroup{occurrence: occurrence, start: len(c.Cuts)}
	return nil
}

// Create adds the tool body for d to the cut of d's face. Descriptors of a
// face arrive together; a new face key commits the previous face's cut.
func (c *Cutter) Create(d dogbone.Descriptor) error {
	if c.open == nil {
		return ErrNoGroup
	}
	tb, err := ToolFor(d)
	if err != nil {
		return err
	}
	if c.pending != nil && c.pending.Face != d.FaceKey {
		c.commit()
	}
	if c.pending == nil {
		c.pending = &Cut{
			Name:       Name,
			ToolName:   ToolBodyName,
			Occurrence: d.OccurrenceKey,
			Body:       d.Target.Body.Name,
			Face:       d.FaceKey,
			Target:     d.Target,
		}
	}
	c.pending.Tools = append(c.pending.Tools, tb)
	return nil
}

// commit records the pending cut and regenerates its body, which
// invalidates every face handle held for it.
func (c *Cutter) commit() {
	cut := c.pending
	c.pending = nil
	if cut == nil || len(cut.Tools) == 0 {
		return
	}
	cut.ID = uuid.New()
	c.Cuts = append(c.Cuts, cut)
	cut.Target.Body.Regenerate()
	c.log.Info().Str("face", cut.Face).Int("tools", len(cut.Tools)).Msg("cut created")
}

// EndGroup commits the last cut and groups the occurrence's cuts.
func (c *Cutter) EndGroup() error {
	if c.open == nil {
		return ErrNoGroup
	}
	c.commit()
	g := c.open
	c.open = nil

	created := c.Cuts[g.start:]
	if len(created) == 0 {
		return nil
	}
	grp := &Group{ID: uuid.New(), Name: Name, Occurrence: g.occurrence}
	for _, cut := range created {
		grp.Features = append(grp.Features, cut.ID)
	}
	c.Groups = append(c.Groups, grp)
	return nil
}

// CutsFor returns the committed cuts of a body.
func (c *Cutter) CutsFor(b *brep.Body) []*Cut {
	var out []*Cut
	for _, cut := range c.Cuts {
		if cut.Target.Body == b {
			out = append(out, cut)
		}
	}
	return out
}

// ToolFor builds the cylinder of a relief. It runs along the face normal
// and spans the native face, the placement plane and the extent face.
func ToolFor(d dogbone.Descriptor) (ToolBody, error) {
	if d.Radius <= 0 {
		return ToolBody{}, fmt.Errorf("feature: tool radius %g: %w", d.Radius, dogbone.ErrConfigurationInvalid)
	}
	n, err := geom.Unit(d.Normal)
	if err != nil {
		return ToolBody{}, fmt.Errorf("feature: face normal: %w", dogbone.ErrInvalidGeometry)
	}

	// Signed positions along n relative to the centre, which lies on the
	// placement plane.
	lo, hi := 0.0, 0.0
	for _, p := range []r3.Vec{d.Face.Point, d.Extent.Point} {
		s := r3.Dot(r3.Sub(p, d.Centre), n)
		lo, hi = math.Min(lo, s), math.Max(hi, s)
	}
	if hi-lo < geom.LengthTol {
		return ToolBody{}, fmt.Errorf("feature: relief at %v has no depth: %w", d.Centre, dogbone.ErrInvalidGeometry)
	}
	lo -= toolMargin
	hi += toolMargin
	return ToolBody{
		Base:   r3.Add(d.Centre, r3.Scale(lo, n)),
		Axis:   n,
		Length: hi - lo,
		Radius: d.Radius,
	}, nil
}
