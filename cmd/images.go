package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/pipeline"
)

var (
	imagesQuiet  bool
	imagesFormat string
)

var imagesCmd = &cobra.Command{
	Use:     "images",
	Aliases: []string{"img"},
	Short:   "Manage stored images",
	Long: `Stored images are embedded into every document alongside the images found
in its image directories. They are kept in the store directory as data URIs.`,
}

var imagesAddCmd = &cobra.Command{
	Use:   "add <file|dir>...",
	Short: "Embed and store images",
	Long: `Embed images and keep them in the store. Directories contribute every image
file directly inside them. Large images are scaled and recompressed; images
over the upload limit are rejected and the rest of the batch continues.

Examples:
  folio images add logo.png
  folio images add ./assets ./screenshots/run.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImagesAdd,
}

var imagesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored images",
	Args:    cobra.NoArgs,
	RunE:    runImagesList,
}

var imagesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every stored image",
	Args:  cobra.NoArgs,
	RunE:  runImagesReset,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
	imagesCmd.AddCommand(imagesAddCmd, imagesListCmd, imagesResetCmd)

	imagesAddCmd.Flags().BoolVarP(&imagesQuiet, "quiet", "q", false, "do not report progress")
	imagesListCmd.Flags().StringVarP(&imagesFormat, "format", "f", "table", "Output format (table, json)")
}

// openImageSession opens a session backed by the store so uploads persist.
func openImageSession(cfg *config.Config, logger logging.Logger) (*pipeline.Session, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewSession(pipeline.New(pipeline.WithLogger(logger)),
		pipeline.WithStore(store),
		pipeline.WithResolver(images.NewResolver(cfg.Images.ResolverConfig(), logger)),
		pipeline.WithBatchFloor(cfg.Images.BatchFloor),
		pipeline.WithSessionLogger(logger))
}

func runImagesAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	var assets []images.Asset
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if info.IsDir() {
			dirAssets, err := images.AssetsFromDir(path)
			if err != nil {
				return err
			}
			assets = append(assets, dirAssets...)
			continue
		}
		asset, err := images.AssetFromFile(path)
		if err != nil {
			return err
		}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return fmt.Errorf("no image files found")
	}

	session, err := openImageSession(cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	var progress func(images.Progress)
	if !imagesQuiet {
		progress = func(p images.Progress) {
			status := "ok"
			if p.Err != nil {
				status = p.Err.Error()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s: %s\n", p.Done, p.Total, p.Name, status)
		}
	}

	result, err := session.Upload(commandContext(cmd), assets, progress)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, img := range result.Images {
		note := ""
		if img.Recompressed {
			note = fmt.Sprintf(" (recompressed from %s, quality %d)", formatBytes(img.OriginalSize), img.Quality)
		}
		fmt.Fprintf(out, "stored %s %dx%d %s%s\n", img.Name, img.Width, img.Height, formatBytes(img.Size), note)
	}
	if n := len(result.Failures); n > 0 {
		for _, f := range result.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "rejected %s: %v\n", f.Name, f.Err)
		}
		return fmt.Errorf("%d image(s) rejected", n)
	}
	return nil
}

// imageListing is the listed form of a stored image.
type imageListing struct {
	Name   string `json:"name"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

func runImagesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	session, err := openImageSession(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer session.Close()

	stored := session.Images().Images()
	listings := make([]imageListing, len(stored))
	for i, img := range stored {
		listings[i] = imageListing{Name: img.Name, MIME: img.MIME, Width: img.Width, Height: img.Height, Size: img.Size}
	}
	return outputImages(cmd.OutOrStdout(), listings, imagesFormat)
}

func outputImages(w io.Writer, listings []imageListing, format string) error {
	switch format {
	case "table", "":
		if len(listings) == 0 {
			fmt.Fprintln(w, "No stored images.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tSIZE\tDIMENSIONS")
		for _, l := range listings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\n", l.Name, l.MIME, formatBytes(l.Size), l.Width, l.Height)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", format)
	}
}

func runImagesReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	session, err := openImageSession(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer session.Close()

	n := session.Images().Len()
	if err := session.ResetImages(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d image(s)\n", n)
	return nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
