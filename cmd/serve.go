package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/server"
)

var serveFlags documentFlags

var serveCmd = &cobra.Command{
	Use:     "serve <document.md>",
	Aliases: []string{"s"},
	Short:   "Start the live preview server",
	Long: `Start a preview server for one document. The page reloads its content over
a websocket after every change to the document, its variable files or its
image directories.

Examples:
  folio serve report.md
  folio serve report.md --port 3000 --open
  folio serve report.md --vars data.yml --images ./assets`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags.register(serveCmd, false)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open the browser once the server is up")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if args[0] == "-" {
		return fmt.Errorf("serve needs a document file, not stdin")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The preview page is always HTML.
	serveFlags.format = "html"
	p, err := serveFlags.prepare(cmd, args[0], true)
	if err != nil {
		return err
	}
	if p.cfg.Render.Title == "" {
		p.cfg.Render.Title = documentTitle(p.cfg, args[0])
	}

	live, err := startLive(ctx, &serveFlags, p)
	if err != nil {
		return err
	}
	defer live.Close()
	reportUploadFailures(cmd.ErrOrStderr(), p)

	srv := server.New(p.cfg, live.session, p.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "previewing %s at http://%s (Ctrl+C to stop)\n", args[0], p.cfg.Server.Address())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
