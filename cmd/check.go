package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/pipeline"
	"github.com/conneroisu/folio/internal/scanner"
	"github.com/conneroisu/folio/internal/variables"
)

var (
	checkFlags documentFlags
	checkJSON  bool
)

var (
	checkTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#007AFF"))
	checkLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8E8E93")).Width(12)
	checkOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#34C759")).Bold(true)
	checkWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9500")).Bold(true)
	checkPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#8E8E93")).
			Padding(0, 1)
)

var checkCmd = &cobra.Command{
	Use:     "check <document.md|->",
	Aliases: []string{"c"},
	Short:   "Report diagnostics, components and image matches without rendering",
	Long: `Run the pipeline up to image resolution and summarize what was found:
component counts per kind, declared variables, matched and unmatched local
images, and every diagnostic. Exits non-zero when there are problems.

Examples:
  folio check report.md --vars data.yml
  folio check report.md --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkFlags.register(checkCmd, false)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")
}

// checkReport is the machine readable form of a check.
type checkReport struct {
	Document    string         `json:"document"`
	Generation  uint64         `json:"generation"`
	Components  map[string]int `json:"components"`
	Variables   []string       `json:"variables"`
	Matched     int            `json:"images_matched"`
	Unmatched   int            `json:"images_unmatched"`
	Missing     []string       `json:"missing_images,omitempty"`
	Rejected    []string       `json:"rejected_images,omitempty"`
	Diagnostics []string       `json:"diagnostics"`
	// DiagnosticKinds counts diagnostics per kind, in kind order.
	DiagnosticKinds []kindCount `json:"diagnostic_kinds,omitempty"`
}

type kindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func (r *checkReport) problems() int {
	return len(r.Diagnostics) + r.Unmatched + len(r.Rejected)
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, err := checkFlags.prepare(cmd, args[0], false)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if err := p.ingest(ctx); err != nil {
		return err
	}

	result := p.pipeline.Run(ctx, p.input())
	report := buildCheckReport(args[0], p, result)

	if checkJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printCheckReport(cmd.OutOrStdout(), report)
	}

	if n := report.problems(); n > 0 {
		return fmt.Errorf("%d problem(s) found", n)
	}
	return nil
}

func buildCheckReport(doc string, p *prepared, result *pipeline.Result) *checkReport {
	report := &checkReport{
		Document:    doc,
		Generation:  result.Generation,
		Components:  make(map[string]int),
		Variables:   variables.Describe(p.vars.All()),
		Matched:     result.Images.Matched,
		Unmatched:   result.Images.Unmatched,
		Missing:     result.Images.Missing,
		Diagnostics: make([]string, 0, len(result.Diagnostics)),
	}
	for _, entry := range result.Components.Entries() {
		report.Components[string(entry.Descriptor.Kind)]++
	}
	for _, f := range p.failures {
		report.Rejected = append(report.Rejected, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	for _, d := range result.Diagnostics {
		report.Diagnostics = append(report.Diagnostics, formatDiagnostic(d))
	}

	collected := errors.NewCollector()
	collected.Add(result.Diagnostics...)
	counts := collected.Counts()
	for _, kind := range collected.Kinds() {
		report.DiagnosticKinds = append(report.DiagnosticKinds, kindCount{Kind: string(kind), Count: counts[kind]})
	}
	return report
}

func printCheckReport(w io.Writer, report *checkReport) {
	var lines []string
	lines = append(lines, checkTitleStyle.Render("folio check "+report.Document), "")

	var kinds []string
	for _, kind := range scanner.Kinds {
		if n := report.Components[string(kind)]; n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s ×%d", kind, n))
		}
	}
	if len(kinds) == 0 {
		kinds = append(kinds, "none")
	}
	lines = append(lines, checkLabelStyle.Render("Components")+strings.Join(kinds, ", "))

	vars := "none"
	if len(report.Variables) > 0 {
		vars = strings.Join(report.Variables, ", ")
	}
	lines = append(lines, checkLabelStyle.Render("Variables")+vars)

	imagesLine := fmt.Sprintf("%d matched, %d unmatched", report.Matched, report.Unmatched)
	if len(report.Missing) > 0 {
		imagesLine += " (" + strings.Join(report.Missing, ", ") + ")"
	}
	lines = append(lines, checkLabelStyle.Render("Images")+imagesLine)
	for _, r := range report.Rejected {
		lines = append(lines, checkLabelStyle.Render("")+checkWarnStyle.Render("rejected ")+r)
	}

	lines = append(lines, "")
	if n := report.problems(); n == 0 {
		lines = append(lines, checkOKStyle.Render("✓ no problems"))
	} else {
		lines = append(lines, checkWarnStyle.Render(fmt.Sprintf("⚠ %d problem(s)", n)))
		if len(report.DiagnosticKinds) > 0 {
			kinds := make([]string, len(report.DiagnosticKinds))
			for i, kc := range report.DiagnosticKinds {
				kinds[i] = fmt.Sprintf("%s ×%d", kc.Kind, kc.Count)
			}
			lines = append(lines, checkLabelStyle.Render("By kind")+strings.Join(kinds, ", "))
		}
		for _, d := range report.Diagnostics {
			lines = append(lines, "  • "+d)
		}
	}

	fmt.Fprintln(w, checkPanelStyle.Render(strings.Join(lines, "\n")))
}
