package script

import (
	"path/filepath"
	"testing"

	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/session"
	"github.com/it-ony/Dogbone/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"keyword", `(body "plate" :height 10)`, `(body "plate" "__kw_height" 10)`},
		{"kebab keyword", `:tool-diameter`, `"__kw_tool-diameter"`},
		{"kebab identifier", `(select-face "plate" "top")`, `(select_face "plate" "top")`},
		{"keyword in string preserved", `"occ :1"`, `"occ :1"`},
		{"assignment preserved", `(def x := 10)`, `(def x := 10)`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative number preserved", `(vec2 -5 3)`, `(vec2 -5 3)`},
		{"comment", `;; select :top`, `// select :top`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, preprocessSource(tt.input))
		})
	}
}

func evaluate(t *testing.T, src string, opts ...session.Option) *Result {
	t.Helper()
	opts = append([]session.Option{session.WithParams(dogbone.DefaultParams())}, opts...)
	res, evalErrs, err := NewEngine(zerolog.Nop(), opts...).Evaluate(src)
	require.NoError(t, err)
	require.Empty(t, evalErrs)
	require.NotNil(t, res)
	return res
}

const pocketPlate = `
(def plate (body "plate"
  :outline (rect 0 0 40 40)
  :height 10
  :pockets (list (pocket :outline (rect 10 10 30 30) :depth 5))))
`

func TestBodyAndPocket(t *testing.T) {
	res := evaluate(t, pocketPlate)
	b := res.Design.Root.Body("plate")
	require.NotNil(t, b)
	_, err := b.FaceByLabel("pocket0-floor")
	assert.NoError(t, err)
	assert.Len(t, b.Source().Pockets, 1)
}

func TestParamsBuiltin(t *testing.T) {
	res := evaluate(t, `
(params :tool-diameter 6 :tool-offset "0.1 mm" :type :mortise
        :minimal-percent 15 :from-top true :parametric false :long-side false
        :acute true :min-angle 60 :obtuse true :max-angle 120
        :benchmark true :log-level :debug)
`)
	p := res.Session.Params()
	assert.Equal(t, "6 mm", p.ToolDiameter)
	assert.Equal(t, "0.1 mm", p.ToolOffset)
	assert.Equal(t, dogbone.Mortise, p.Variant)
	assert.Equal(t, 15.0, p.MinimalPercent)
	assert.True(t, p.FromTop)
	assert.False(t, p.Parametric)
	assert.False(t, p.MortiseLongSide)
	assert.True(t, p.AcuteAngle)
	assert.Equal(t, 60.0, p.MinAngle)
	assert.True(t, p.ObtuseAngle)
	assert.Equal(t, 120.0, p.MaxAngle)
	assert.True(t, p.Benchmark)
	assert.Equal(t, dogbone.LogDebug, p.LogLevel)
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown parameter", `(params :colour "red")`},
		{"bad type", `(params :type :round)`},
		{"body without height", `(body "b" :outline (rect 0 0 1 1))`},
		{"duplicate body", `(body "b" :outline (rect 0 0 1 1) :height 1) (body "b" :outline (rect 0 0 1 1) :height 1)`},
		{"vec2 arity", `(vec2 1)`},
		{"unknown face", pocketPlate + `(select-face "plate" "nowhere")`},
		{"unknown body", `(select-face "nothing" "top")`},
		{"occurrence of missing component", `(occurrence "o" "nope")`},
		{"run without selection", pocketPlate + `(dogbone)`},
		{"edges of unselected face", pocketPlate + `(edges "plate" "top")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, evalErrs, err := NewEngine(zerolog.Nop()).Evaluate(tt.src)
			require.NoError(t, err)
			assert.Nil(t, res)
			assert.NotEmpty(t, evalErrs)
		})
	}
}

func TestSelectAndRun(t *testing.T) {
	store := settings.NewStore(filepath.Join(t.TempDir(), settings.FileName), zerolog.Nop())
	res := evaluate(t, pocketPlate+`
(params :tool-diameter "6 mm" :tool-offset "0 mm")
(select-face plate "top")
(def placed (dogbone))
(assert (== placed 4))
`, session.WithStore(store))

	require.Len(t, res.Reports, 1)
	rep := res.Reports[0]
	assert.Equal(t, "parametric", rep.Mode)
	assert.Len(t, rep.Placements, 4)
	for _, d := range rep.Placements {
		assert.InDelta(t, 2.1213, d.PrimaryOffset, 1e-3)
		assert.InDelta(t, 2.1213, d.SecondaryOffset, 1e-3)
	}
	assert.Len(t, res.Session.Timeline.Holes, 4)
	assert.Equal(t, "6 mm", store.ReadDefaults().ToolDiameter)
}

func TestToggleEdgeBuiltin(t *testing.T) {
	res := evaluate(t, pocketPlate+`
(params :tool-diameter "6 mm")
(select-face "plate" "top")
(def es (edges "plate" "top"))
(toggle-edge (first es))
(dogbone)
`)
	require.Len(t, res.Reports, 1)
	assert.Len(t, res.Reports[0].Placements, 3)
}

func TestDeselectFaceBuiltin(t *testing.T) {
	res := evaluate(t, pocketPlate+`
(select-face "plate" "top")
(deselect-face "plate" "top")
`)
	assert.Zero(t, res.Session.Selection.FaceCount())
}

func TestComponentsAndOccurrences(t *testing.T) {
	res := evaluate(t, `
(component "shelf")
(body "board" :component "shelf" :outline (rect 0 0 30 20) :height 8
      :pockets (list (pocket :outline (rect 5 5 15 15) :depth 3)))
(occurrence "shelf:1" "shelf")
(occurrence "shelf:2" "shelf")
(def first-ok (select-face "board" "top" :occurrence "shelf:1"))
(def second-ok (select-face "board" "top" :occurrence "shelf:2"))
(assert first-ok)
(assert (not second-ok))
(params :tool-diameter "4 mm" :parametric false)
(dogbone)
`)
	assert.Len(t, res.Rejected, 1)
	require.Len(t, res.Reports, 1)
	assert.Equal(t, "static", res.Reports[0].Mode)
	assert.Len(t, res.Reports[0].Placements, 4)
	assert.Len(t, res.Session.Cutter.Cuts, 1)
}
