package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/pipeline"
	"github.com/conneroisu/folio/internal/renderer"
)

var (
	renderFlags    documentFlags
	renderOutput   string
	renderStage    string
	renderFragment bool
	renderStrict   bool
)

var renderCmd = &cobra.Command{
	Use:     "render <document.md|->",
	Aliases: []string{"r"},
	Short:   "Render a document once",
	Long: `Render a document through the full pipeline: template expansion, component
detection, image embedding and output rendering.

Problems never stop the render; they are reported on stderr and the output
degrades to the closest usable text.

Examples:
  folio render report.md                          # HTML page on stdout
  folio render report.md --vars data.yml -o out.html
  folio render report.md --var quarter=Q3 --format terminal
  folio render report.md --stage expanded         # text after variable expansion
  cat doc.md | folio render - --format markdown`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags.register(renderCmd, true)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write to file instead of stdout")
	renderCmd.Flags().StringVar(&renderStage, "stage", "output", "pipeline stage to emit: expanded, resolved or output")
	renderCmd.Flags().BoolVar(&renderFragment, "fragment", false, "emit an HTML fragment instead of a full page")
	renderCmd.Flags().BoolVar(&renderStrict, "strict", false, "exit with an error when any diagnostic is reported")
}

func runRender(cmd *cobra.Command, args []string) error {
	docPath := args[0]

	p, err := renderFlags.prepare(cmd, docPath, true)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if err := p.ingest(ctx); err != nil {
		return err
	}

	result := p.pipeline.Run(ctx, p.input())
	reportUploadFailures(cmd.ErrOrStderr(), p)
	reportDiagnostics(cmd.ErrOrStderr(), result)

	content, err := stageOutput(result, renderStage)
	if err != nil {
		return err
	}
	if renderStage == "output" && !renderFragment {
		content = wrapOutput(p.renderer, documentTitle(p.cfg, docPath), content)
	}

	if err := writeOutput(cmd, renderOutput, content); err != nil {
		return err
	}

	if renderStrict && result.HasDiagnostics() {
		return fmt.Errorf("%d diagnostic(s) reported", len(result.Diagnostics))
	}
	return nil
}

func stageOutput(result *pipeline.Result, stage string) (string, error) {
	switch stage {
	case "expanded":
		return result.Expanded, nil
	case "resolved":
		return renderer.Fallback(result.Resolved, result.Components), nil
	case "output", "":
		return result.Output, nil
	default:
		return "", fmt.Errorf("unknown stage %q (want expanded, resolved or output)", stage)
	}
}

func reportDiagnostics(w io.Writer, result *pipeline.Result) {
	for _, d := range result.Diagnostics {
		fmt.Fprintf(w, "warning: %s\n", formatDiagnostic(d))
	}
}

func reportUploadFailures(w io.Writer, p *prepared) {
	for _, f := range p.failures {
		fmt.Fprintf(w, "warning: image %s skipped: %v\n", f.Name, f.Err)
	}
}

func formatDiagnostic(d *errors.Diagnostic) string {
	msg := fmt.Sprintf("[%s] %s", d.Code, d.Message)
	if d.Span != nil {
		msg += fmt.Sprintf(" (bytes %d-%d)", d.Span.Start, d.Span.End)
	}
	return msg
}
