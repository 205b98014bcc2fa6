package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/it-ony/Dogbone/pkg/kernel/sdfx"
	"github.com/it-ony/Dogbone/pkg/preview"
	"github.com/it-ony/Dogbone/pkg/session"
	"github.com/it-ony/Dogbone/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cliFlags holds the command line. Parameter flags only override the
// persisted defaults when given.
type cliFlags struct {
	defaults string
	logFile  string

	toolDiameter   string
	toolOffset     string
	variant        string
	minimalPercent float64
	fromTop        bool
	parametric     bool
	longSide       bool
	benchmark      bool
	logLevel       string

	jsonOut    bool
	previewDir string
	previewPx  int
	meshCells  int
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:           "dogbone",
		Short:         "Place dogbone reliefs in the inside corners of pockets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.defaults, "defaults", "", "defaults file (TOML, or JSON when named *.json)")
	root.PersistentFlags().StringVar(&f.logFile, "log-file", "", "write the session log to this file instead of stderr")

	run := &cobra.Command{
		Use:   "run <script>",
		Short: "Evaluate a dogbone script and report the placed reliefs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runScript(cmd, f, args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
			return err
		},
	}
	fl := run.Flags()
	fl.StringVar(&f.toolDiameter, "tool-diameter", "", "tool diameter, e.g. \"6 mm\" or \"0.25 in\"")
	fl.StringVar(&f.toolOffset, "tool-offset", "", "extra clearance added to the tool diameter")
	fl.StringVar(&f.variant, "type", "", "dogbone type: normal, minimal or mortise")
	fl.Float64Var(&f.minimalPercent, "minimal-percent", 0, "extra offset of minimal dogbones, in percent")
	fl.BoolVar(&f.fromTop, "from-top", false, "cut from the top face of the body")
	fl.BoolVar(&f.parametric, "parametric", true, "create parametric holes instead of static cuts")
	fl.BoolVar(&f.longSide, "long-side", true, "place mortise dogbones on the long side")
	fl.BoolVar(&f.benchmark, "benchmark", false, "report processing time")
	fl.StringVar(&f.logLevel, "log-level", "", "session log level: notset, debug or info")
	fl.BoolVar(&f.jsonOut, "json", false, "print the run reports as JSON")
	fl.StringVar(&f.previewDir, "preview", "", "write a PNG preview of every processed face to this directory")
	fl.IntVar(&f.previewPx, "preview-size", preview.DefaultOptions().Size, "preview image size in pixels")
	fl.IntVar(&f.meshCells, "mesh-cells", sdfx.DefaultMeshCells, "marching cubes resolution along the longest side")

	gui := &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := openLogger(f, cmd.ErrOrStderr(), dogbone.LogNotset)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			store, err := openStore(f, logger)
			if err != nil {
				return err
			}
			return runGUI(NewApp(logger, session.WithStore(store)))
		},
	}

	root.AddCommand(run, gui)
	return root
}

// openStore returns the defaults store named by --defaults, or the one in
// the user config directory.
func openStore(f *cliFlags, logger zerolog.Logger) (*settings.Store, error) {
	path := f.defaults
	if path == "" {
		var err error
		if path, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return settings.NewStore(path, logger), nil
}

// openLogger logs to --log-file when given, otherwise to w in console
// format.
func openLogger(f *cliFlags, w io.Writer, l dogbone.LogLevel) (zerolog.Logger, io.Closer, error) {
	if f.logFile != "" {
		return session.OpenLog(f.logFile, l)
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return session.NewLogger(out, l), nil, nil
}

// applyFlags overrides p with the parameter flags that were set.
func applyFlags(cmd *cobra.Command, f *cliFlags, p dogbone.Params) (dogbone.Params, error) {
	fl := cmd.Flags()
	if fl.Changed("tool-diameter") {
		p.ToolDiameter = f.toolDiameter
	}
	if fl.Changed("tool-offset") {
		p.ToolOffset = f.toolOffset
	}
	if fl.Changed("type") {
		v, err := dogbone.ParseVariant(f.variant)
		if err != nil {
			return p, err
		}
		p.Variant = v
	}
	if fl.Changed("minimal-percent") {
		p.MinimalPercent = f.minimalPercent
	}
	if fl.Changed("from-top") {
		p.FromTop = f.fromTop
	}
	if fl.Changed("parametric") {
		p.Parametric = f.parametric
	}
	if fl.Changed("long-side") {
		p.MortiseLongSide = f.longSide
	}
	if fl.Changed("benchmark") {
		p.Benchmark = f.benchmark
	}
	if fl.Changed("log-level") {
		l, err := dogbone.ParseLogLevel(f.logLevel)
		if err != nil {
			return p, err
		}
		p.LogLevel = l
	}
	return p, nil
}

func runScript(cmd *cobra.Command, f *cliFlags, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	store, err := openStore(f, zerolog.Nop())
	if err != nil {
		return err
	}
	p, err := applyFlags(cmd, f, store.ReadDefaults())
	if err != nil {
		return err
	}
	logger, closer, err := openLogger(f, cmd.ErrOrStderr(), p.LogLevel)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	store = settings.NewStore(store.Path, logger)

	app := NewApp(logger, session.WithStore(store), session.WithParams(p))
	app.kernel = sdfx.New(f.meshCells)
	if f.previewDir != "" {
		app.Preview = preview.Options{Size: f.previewPx, Margin: preview.DefaultOptions().Margin}
	}
	res := app.Run(string(src))

	out := cmd.OutOrStdout()
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			if e.Line > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %s\n", path, e.Line, e.Message)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, e.Message)
			}
		}
		return fmt.Errorf("%s: %d error(s)", path, len(res.Errors))
	}

	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Reports); err != nil {
			return err
		}
	} else {
		printReports(out, res)
	}

	if f.previewDir != "" {
		if err := writePreviews(f.previewDir, res.Previews); err != nil {
			return err
		}
	}
	return nil
}

func printReports(w io.Writer, res RunResult) {
	for _, r := range res.Rejected {
		fmt.Fprintf(w, "rejected: %s\n", r)
	}
	for i, r := range res.Reports {
		fmt.Fprintf(w, "run %d (%s): %d dogbones, %d skipped\n", i+1, r.Mode, len(r.Placements), r.Skipped)
		if msg := r.Message(); msg != "" {
			fmt.Fprintln(w, msg)
		}
		if msg := r.BenchmarkMessage(); msg != "" {
			fmt.Fprintln(w, msg)
		}
	}
}

// writePreviews stores each preview as <dir>/<n>-<face>.png.
func writePreviews(dir string, previews []PreviewData) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, p := range previews {
		data, err := base64.StdEncoding.DecodeString(p.PNG)
		if err != nil {
			return fmt.Errorf("preview %s: %w", p.Face, err)
		}
		name := fmt.Sprintf("%02d-%s.png", i, previewName(p.Face))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// previewName turns a face key into something usable as a file name.
func previewName(key string) string {
	body, _, _ := strings.Cut(key, "|")
	return strings.NewReplacer("/", "_", ":", "-").Replace(body)
}
