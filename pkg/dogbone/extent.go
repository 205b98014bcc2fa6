package dogbone

import (
	"errors"
	"fmt"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/geom"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"
)

// FaceRef is a face handle that can outlive a regeneration of its body: the
// handle may go stale, the reference point does not.
type FaceRef struct {
	Target brep.Target `json:"-"`
	ID     brep.FaceID `json:"id"`
	Label  string      `json:"label"`
	Point  r3.Vec      `json:"point"`
}

// RefOf captures a reference to f.
func RefOf(t brep.Target, f *brep.Face) FaceRef {
	return FaceRef{Target: t, ID: f.ID, Label: f.Label, Point: t.Body.RefPoint(f)}
}

// Extent says where a relief starts and where it ends.
type Extent struct {
	Face        FaceRef // the processed face
	Plane       FaceRef // face the relief is placed on
	Target      FaceRef // face the relief runs to
	Translation r3.Vec  // applied to centres computed on Face
}

// Resolver determines relief extents for the faces of one occurrence at a
// time. In from-top mode it caches the occurrence's top face between Begin
// and End.
type Resolver struct {
	FromTop bool

	log     zerolog.Logger
	active  bool
	top     *FaceRef
	revalid int
}

// NewResolver returns a resolver logging to log; pass zerolog.Nop() for none.
func NewResolver(fromTop bool, log zerolog.Logger) *Resolver {
	return &Resolver{FromTop: fromTop, log: log}
}

// Revalidations reports how many stale handles were re-resolved by point.
func (r *Resolver) Revalidations() int { return r.revalid }

// Begin starts processing an occurrence whose first selected face is first.
func (r *Resolver) Begin(first FaceRef) error {
	r.active = true
	r.top = nil
	if !r.FromTop {
		return nil
	}
	f, _, err := r.Face(first)
	if err != nil {
		return err
	}
	top, err := first.Target.Body.TopFace(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	ref := RefOf(first.Target, top)
	r.top = &ref
	r.log.Info().Str("occurrence", first.Target.Key()).Str("face", top.Label).Msg("processing holes from top face")
	return nil
}

// End discards the per-occurrence cache.
func (r *Resolver) End() {
	r.active = false
	r.top = nil
}

// Face returns the current face for ref. A stale handle is re-resolved by
// reference point and the refreshed reference is returned; if that fails
// the corner's geometry is invalid.
func (r *Resolver) Face(ref FaceRef) (*brep.Face, FaceRef, error) {
	b := ref.Target.Body
	f, err := b.Face(ref.ID)
	if err == nil {
		return f, ref, nil
	}
	if !errors.Is(err, brep.ErrStale) {
		return nil, ref, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	r.log.Debug().Str("face", ref.Label).Msg("revalidating face")
	f, err = b.FaceAt(ref.Point)
	if err != nil {
		return nil, ref, fmt.Errorf("%w: stale face %q not found again: %v", ErrInvalidGeometry, ref.Label, err)
	}
	r.revalid++
	return f, RefOf(ref.Target, f), nil
}

// Resolve computes the extent of a relief at corner edge e of face.
func (r *Resolver) Resolve(face FaceRef, e *brep.Edge) (Extent, error) {
	f, face, err := r.Face(face)
	if err != nil {
		return Extent{}, err
	}
	b := face.Target.Body
	to, err := b.FindExtent(f, e)
	if err != nil {
		return Extent{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	ext := Extent{Face: face, Plane: face, Target: RefOf(face.Target, to)}
	if !r.FromTop {
		return ext, nil
	}
	if !r.active || r.top == nil {
		return Extent{}, fmt.Errorf("%w: top face not resolved for %s", ErrInvalidGeometry, face.Target.Key())
	}

	top, ref, err := r.Face(*r.top)
	if err != nil {
		return Extent{}, err
	}
	r.top = &ref
	tv, err := geom.TranslationBetween(f.Plane(), top.Plane())
	if err != nil {
		return Extent{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	ext.Plane = ref
	ext.Translation = tv
	r.log.Debug().Str("face", f.Label).Float64("length", r3.Norm(tv)).Msg("translation to top face")
	return ext, nil
}
