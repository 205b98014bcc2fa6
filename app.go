package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"log"

	"github.com/it-ony/Dogbone/pkg/kernel"
	"github.com/it-ony/Dogbone/pkg/kernel/sdfx"
	"github.com/it-ony/Dogbone/pkg/preview"
	"github.com/it-ony/Dogbone/pkg/script"
	"github.com/it-ony/Dogbone/pkg/session"
	"github.com/it-ony/Dogbone/pkg/tessellate"
	"github.com/rs/zerolog"
)

// colorPalette is a default palette used to assign distinct colors to bodies.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	engine *script.Engine
	kernel kernel.Kernel

	// Preview enables PNG previews of the processed faces.
	Preview preview.Options
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	BodyName string    `json:"bodyName"`
	Cuts     int       `json:"cuts"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// PreviewData is a rendered face, PNG encoded in base64.
type PreviewData struct {
	Face string `json:"face"`
	PNG  string `json:"png"`
}

// RunResult is the full result returned to the frontend.
type RunResult struct {
	Meshes   []MeshData        `json:"meshes"`
	Reports  []*session.Report `json:"reports"`
	Previews []PreviewData     `json:"previews"`
	Rejected []string          `json:"rejected"`
	Errors   []EvalErrorData   `json:"errors"`
	Warnings []EvalErrorData   `json:"warnings"`
}

// NewApp creates an App with the sdfx kernel. Sessions started by scripts
// are configured with opts.
func NewApp(logger zerolog.Logger, opts ...session.Option) *App {
	return &App{
		engine: script.NewEngine(logger, opts...),
		kernel: sdfx.New(sdfx.DefaultMeshCells),
	}
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Run evaluates a dogbone script and returns the meshes of the resulting
// design, one report per dogbone call, and any errors.
// This is the primary binding called by the frontend editor.
func (a *App) Run(source string) RunResult {
	result := RunResult{
		Meshes:   []MeshData{},
		Reports:  []*session.Report{},
		Previews: []PreviewData{},
		Rejected: []string{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the script into a design and session.
	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Run fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	result.Reports = append(result.Reports, res.Reports...)
	result.Rejected = append(result.Rejected, res.Rejected...)
	for _, r := range res.Reports {
		result.Rejected = append(result.Rejected, r.Rejected...)
		if msg := r.Message(); msg != "" {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: msg})
		}
		for _, f := range r.Findings {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: f})
		}
	}

	// Step 3: Tessellate the design, with the static cuts removed.
	meshes, err := tessellate.Tessellate(res.Design, res.Session.Cutter, a.kernel)
	if err != nil {
		log.Printf("Tessellate error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	// Step 4: Convert kernel meshes to the frontend MeshData format.
	for i, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			BodyName: m.Name,
			Cuts:     m.Cuts,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}

	if a.Preview.Size > 0 {
		result.Previews = a.previews(res)
	}
	return result
}

// previews renders every selected face with the reliefs placed on it.
func (a *App) previews(res *script.Result) []PreviewData {
	out := []PreviewData{}
	if len(res.Reports) == 0 {
		return out
	}
	placed := res.Reports[len(res.Reports)-1].Placements
	sel := res.Session.Selection
	for _, occ := range sel.Occurrences() {
		for _, rec := range sel.Faces(occ) {
			b := rec.Ref.Target.Body
			f, err := b.Face(rec.Ref.ID)
			if err != nil {
				if f, err = b.FaceAt(rec.Ref.Point); err != nil {
					log.Printf("Preview: %s: %v", rec.Key, err)
					continue
				}
			}
			var buf bytes.Buffer
			if err := preview.WritePNG(&buf, rec.Ref.Target, f, placed, a.Preview); err != nil {
				log.Printf("Preview: %s: %v", rec.Key, err)
				continue
			}
			out = append(out, PreviewData{
				Face: rec.Key,
				PNG:  base64.StdEncoding.EncodeToString(buf.Bytes()),
			})
		}
	}
	return out
}
