package script

import (
	"errors"
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/selection"
	"gonum.org/v1/gonum/spatial/r2"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites Dogbone Lisp before handing it to zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords need not be registered as globals.
//
//  2. Kebab-case to underscore: select-face -> select_face. zygomys reads
//     a hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters; a minus operator
		// or a negative number is kept.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

type sexpVec2 struct {
	vec r2.Vec
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

type sexpPocket struct {
	pocket brep.Pocket
}

func (p *sexpPocket) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pocket %d points :depth %g)", len(p.pocket.Outline), p.pocket.Depth)
}
func (p *sexpPocket) Type() *zygo.RegisteredType { return nil }

// sexpBody refers to a body built by the script.
type sexpBody struct {
	component string
	name      string
}

func (b *sexpBody) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(body %q :component %q)", b.name, b.component)
}
func (b *sexpBody) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		switch {
		case !ok:
			result.positional = append(result.positional, args[i])
			i++
		case i+1 < len(args):
			result.kw[name] = args[i+1]
			i += 2
		default:
			// trailing keyword is a flag
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts both :keyword and "string".
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool accepts true/false; a bare trailing keyword counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toLength accepts a length expression string, or a bare number in
// millimetres.
func toLength(s zygo.Sexp) (string, error) {
	if f, err := toFloat64(s); err == nil {
		return fmt.Sprintf("%g mm", f), nil
	}
	str, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected length: %w", err)
	}
	return str, nil
}

func toVec2(s zygo.Sexp) (r2.Vec, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return r2.Vec{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func toOutline(s zygo.Sexp) ([]r2.Vec, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]r2.Vec, 0, len(items))
	for i, item := range items {
		v, err := toVec2(item)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// faceArgs reads (body "label" :occurrence "occ") and finds the face.
func faceArgs(d *brep.Design, pa kwArgs) (brep.Target, *brep.Face, error) {
	if len(pa.positional) != 2 {
		return brep.Target{}, nil, fmt.Errorf("expected a body and a face label, got %d arguments", len(pa.positional))
	}
	body, err := toBodyName(pa.positional[0])
	if err != nil {
		return brep.Target{}, nil, fmt.Errorf("body: %w", err)
	}
	label, err := toKeywordString(pa.positional[1])
	if err != nil {
		return brep.Target{}, nil, fmt.Errorf("face: %w", err)
	}
	occ := ""
	if v, ok := pa.kw["occurrence"]; ok {
		if occ, err = toString(v); err != nil {
			return brep.Target{}, nil, fmt.Errorf("occurrence: %w", err)
		}
	}
	t, err := findTarget(d, body, occ)
	if err != nil {
		return brep.Target{}, nil, err
	}
	f, err := t.Body.FaceByLabel(label)
	if err != nil {
		return brep.Target{}, nil, err
	}
	return t, f, nil
}

func toBodyName(s zygo.Sexp) (string, error) {
	if b, ok := s.(*sexpBody); ok {
		return b.name, nil
	}
	return toString(s)
}

func findTarget(d *brep.Design, body, occ string) (brep.Target, error) {
	if occ == "" {
		b := d.Root.Body(body)
		if b == nil {
			return brep.Target{}, fmt.Errorf("no root body named %q", body)
		}
		return brep.Target{Body: b}, nil
	}
	o := d.Occurrence(occ)
	if o == nil {
		return brep.Target{}, fmt.Errorf("no occurrence named %q", occ)
	}
	b := o.Component.Body(body)
	if b == nil {
		return brep.Target{}, fmt.Errorf("component %q of %q has no body named %q", o.Component.Name, occ, body)
	}
	return brep.Target{Occurrence: o, Body: b}, nil
}

func boolSexp(v bool) zygo.Sexp { return &zygo.SexpBool{Val: v} }

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the Dogbone DSL into a zygomys environment.
// The builtins build res.Design and drive res.Session.
//
// Source code must be preprocessed with preprocessSource() before
// evaluation so that :keyword tokens become recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, res *Result) {
	d := res.Design
	s := res.Session

	// drain applies queued selection events. Rejections are recorded, not
	// raised.
	drain := func() bool {
		err := s.Drain()
		if err == nil {
			return true
		}
		for _, line := range strings.Split(err.Error(), "\n") {
			res.Rejected = append(res.Rejected, line)
		}
		return false
	}

	// -----------------------------------------------------------------------
	// (vec2 10 5)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}
		return &sexpVec2{vec: r2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (rect x0 y0 x1 y1) -> list of four vec2, counter-clockwise
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rect requires exactly 4 arguments, got %d", len(args))
		}
		var c [4]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rect: argument %d: %w", i, err)
			}
			c[i] = f
		}
		return zygo.MakeList([]zygo.Sexp{
			&sexpVec2{vec: r2.Vec{X: c[0], Y: c[1]}},
			&sexpVec2{vec: r2.Vec{X: c[2], Y: c[1]}},
			&sexpVec2{vec: r2.Vec{X: c[2], Y: c[3]}},
			&sexpVec2{vec: r2.Vec{X: c[0], Y: c[3]}},
		}), nil
	})

	// -----------------------------------------------------------------------
	// (pocket :outline (rect 5 5 25 15) :depth 5 :rounded (list 0 2))
	// -----------------------------------------------------------------------
	env.AddFunction("pocket", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var pk brep.Pocket

		if v, ok := pa.kw["outline"]; ok {
			out, err := toOutline(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pocket: outline: %w", err)
			}
			pk.Outline = out
		}
		if v, ok := pa.kw["depth"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pocket: depth: %w", err)
			}
			pk.Depth = f
		}
		if v, ok := pa.kw["rounded"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pocket: rounded: %w", err)
			}
			for _, item := range items {
				f, err := toFloat64(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("pocket: rounded entry: %w", err)
				}
				pk.Rounded = append(pk.Rounded, int(f))
			}
		}
		return &sexpPocket{pocket: pk}, nil
	})

	// -----------------------------------------------------------------------
	// (component "shelf")
	// -----------------------------------------------------------------------
	env.AddFunction("component", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("component requires a name argument")
		}
		n, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("component: name: %w", err)
		}
		if _, err := d.AddComponent(n); err != nil {
			return zygo.SexpNull, fmt.Errorf("component: %w", err)
		}
		return &zygo.SexpStr{S: n}, nil
	})

	// -----------------------------------------------------------------------
	// (body "plate" :outline (rect 0 0 40 40) :height 10
	//       :pockets (list (pocket ...)) :component "shelf")
	// -----------------------------------------------------------------------
	env.AddFunction("body", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("body requires a name argument")
		}
		bodyName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("body: name: %w", err)
		}

		var p brep.Prism
		if v, ok := pa.kw["outline"]; ok {
			if p.Outline, err = toOutline(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("body: outline: %w", err)
			}
		}
		if v, ok := pa.kw["height"]; ok {
			if p.Height, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("body: height: %w", err)
			}
		}
		if v, ok := pa.kw["pockets"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("body: pockets: %w", err)
			}
			for i, item := range items {
				pk, ok := item.(*sexpPocket)
				if !ok {
					return zygo.SexpNull, fmt.Errorf("body: pocket %d: expected pocket, got %T", i, item)
				}
				p.Pockets = append(p.Pockets, pk.pocket)
			}
		}

		comp := d.Root
		if v, ok := pa.kw["component"]; ok {
			cn, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("body: component: %w", err)
			}
			if comp = d.Component(cn); comp == nil {
				return zygo.SexpNull, fmt.Errorf("body: no component named %q", cn)
			}
		}
		if comp.Body(bodyName) != nil {
			return zygo.SexpNull, fmt.Errorf("body: %q already exists in %q", bodyName, comp.Name)
		}

		b, err := p.Build(bodyName)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("body: %w", err)
		}
		comp.Bodies = append(comp.Bodies, b)
		return &sexpBody{component: comp.Name, name: bodyName}, nil
	})

	// -----------------------------------------------------------------------
	// (occurrence "shelf:1" "shelf")
	// -----------------------------------------------------------------------
	env.AddFunction("occurrence", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("occurrence requires a name and a component")
		}
		n, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("occurrence: name: %w", err)
		}
		cn, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("occurrence: component: %w", err)
		}
		if _, err := d.AddOccurrence(n, d.Component(cn)); err != nil {
			return zygo.SexpNull, fmt.Errorf("occurrence: %w", err)
		}
		return &zygo.SexpStr{S: n}, nil
	})

	// -----------------------------------------------------------------------
	// (params :tool-diameter "6 mm" :tool-offset 0 :type :mortise
	//         :minimal-percent 10 :from-top true :parametric false
	//         :long-side true :acute true :min-angle 60 :obtuse false
	//         :max-angle 120 :benchmark true :log-level :debug)
	// -----------------------------------------------------------------------
	env.AddFunction("params", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		p := s.Params()

		lengths := map[string]*string{
			"tool-diameter": &p.ToolDiameter,
			"tool-offset":   &p.ToolOffset,
		}
		numbers := map[string]*float64{
			"minimal-percent": &p.MinimalPercent,
			"min-angle":       &p.MinAngle,
			"max-angle":       &p.MaxAngle,
		}
		flags := map[string]*bool{
			"from-top":   &p.FromTop,
			"parametric": &p.Parametric,
			"long-side":  &p.MortiseLongSide,
			"acute":      &p.AcuteAngle,
			"obtuse":     &p.ObtuseAngle,
			"benchmark":  &p.Benchmark,
		}

		for k, v := range pa.kw {
			var err error
			switch {
			case lengths[k] != nil:
				*lengths[k], err = toLength(v)
			case numbers[k] != nil:
				*numbers[k], err = toFloat64(v)
			case flags[k] != nil:
				*flags[k], err = toBool(v)
			case k == "type":
				var t string
				if t, err = toKeywordString(v); err == nil {
					p.Variant, err = dogbone.ParseVariant(t)
				}
			case k == "log-level":
				var l string
				if l, err = toKeywordString(v); err == nil {
					p.LogLevel, err = dogbone.ParseLogLevel(l)
				}
			default:
				err = errors.New("unknown parameter")
			}
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("params: %s: %w", k, err)
			}
		}
		s.SetParams(p)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (select-face "plate" "top" :occurrence "shelf:1") -> true if accepted
	// -----------------------------------------------------------------------
	env.AddFunction("select_face", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		t, f, err := faceArgs(d, parseArgs(args))
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("select-face: %w", err)
		}
		s.Push(selection.AddFaceEvent(t, f))
		return boolSexp(drain()), nil
	})

	// -----------------------------------------------------------------------
	// (deselect-face "plate" "top")
	// -----------------------------------------------------------------------
	env.AddFunction("deselect_face", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		t, f, err := faceArgs(d, parseArgs(args))
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("deselect-face: %w", err)
		}
		s.Push(selection.RemoveFaceEvent(brep.FaceKey(t, f)))
		return boolSexp(drain()), nil
	})

	// -----------------------------------------------------------------------
	// (edges "plate" "top") -> keys of the face's corner edges
	// -----------------------------------------------------------------------
	env.AddFunction("edges", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		t, f, err := faceArgs(d, parseArgs(args))
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("edges: %w", err)
		}
		drain()
		rec := s.Selection.Face(brep.FaceKey(t, f))
		if rec == nil {
			return zygo.SexpNull, fmt.Errorf("edges: face %q of %s is not selected", f.Label, t)
		}
		items := make([]zygo.Sexp, 0, len(rec.Edges))
		for _, k := range rec.Edges {
			items = append(items, &zygo.SexpStr{S: k})
		}
		return zygo.MakeList(items), nil
	})

	// -----------------------------------------------------------------------
	// (toggle-edge key)
	// -----------------------------------------------------------------------
	env.AddFunction("toggle_edge", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("toggle-edge requires an edge key")
		}
		k, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("toggle-edge: %w", err)
		}
		s.Push(selection.ToggleEdgeEvent(k))
		return boolSexp(drain()), nil
	})

	// -----------------------------------------------------------------------
	// (dogbone) -> number of reliefs placed
	// -----------------------------------------------------------------------
	env.AddFunction("dogbone", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 0 {
			return zygo.SexpNull, fmt.Errorf("dogbone takes no arguments")
		}
		drain()
		rep, err := s.Run()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("dogbone: %w", err)
		}
		res.Reports = append(res.Reports, rep)
		return &zygo.SexpInt{Val: int64(len(rep.Placements))}, nil
	})
}
