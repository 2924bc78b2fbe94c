package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/pipeline"
)

var (
	watchFlags  documentFlags
	watchOutput string
)

var watchCmd = &cobra.Command{
	Use:     "watch <document.md>",
	Aliases: []string{"w"},
	Short:   "Re-render a document whenever it or its inputs change",
	Long: `Watch a document, its variable files and its image directories, and
re-render after every change. Rapid edits are coalesced; only the newest
render is written.

Examples:
  folio watch report.md -o report.html
  folio watch report.md --vars data.yml --format terminal`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags.register(watchCmd, true)
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "file to rewrite after each render (default stdout)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if args[0] == "-" {
		return fmt.Errorf("watch needs a document file, not stdin")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := watchFlags.prepare(cmd, args[0], true)
	if err != nil {
		return err
	}

	title := documentTitle(p.cfg, args[0])
	write := func(result *pipeline.Result) {
		if err := writeOutput(cmd, watchOutput, wrapOutput(p.renderer, title, result.Output)); err != nil {
			p.logger.Error(ctx, err, "failed to write render")
			return
		}
		reportDiagnostics(cmd.ErrOrStderr(), result)
		fmt.Fprintf(cmd.ErrOrStderr(), "rendered generation %d in %s (%d diagnostics)\n",
			result.Generation, result.Duration.Round(time.Microsecond), len(result.Diagnostics))
	}

	live, err := startLive(ctx, &watchFlags, p)
	if err != nil {
		return err
	}
	defer live.Close()

	reportUploadFailures(cmd.ErrOrStderr(), p)
	if latest := live.session.Latest(); latest != nil {
		write(latest)
	}
	unsubscribe := live.session.Subscribe(write)
	defer unsubscribe()

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (Ctrl+C to stop)\n", args[0])
	<-ctx.Done()
	return ignoreCanceled(ctx.Err())
}

func ignoreCanceled(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}
