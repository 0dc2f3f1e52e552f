package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/pipeline"
	"github.com/matzehuels/postcard/pkg/postcard"
)

// composeOpts holds the command-line flags for the compose command.
type composeOpts struct {
	output   string // output file; "-" writes to stdout
	caption  string // use this caption instead of generating one
	svgFile  string // sketch to draw with a supplied caption
	style    string // caption workflow style
	pick     bool   // choose the style interactively
	layout   string // postcard or card
	format   string // jpeg, png, webp or pdf
	encoding string // raw or base64 (data URI)
	upload   bool   // host the result on ImgBB
	refresh  bool   // bypass cached stage results
	noCache  bool   // disable caching entirely
}

// composeCommand creates the compose command.
//
// The source is an http(s) URL or a local file. Local files without a
// supplied caption are hosted first so the caption workflow can read them,
// which requires an ImgBB key.
func (c *CLI) composeCommand() *cobra.Command {
	var opts composeOpts

	cmd := &cobra.Command{
		Use:   "compose <image-url|file>",
		Short: "Caption a photo and render it as a postcard",
		Example: `  postcard compose https://example.com/beach.jpg
  postcard compose beach.jpg --style sarcastic -o beach-card.png
  postcard compose beach.jpg --caption "海风很咸" --svg-file wave.svg
  postcard compose https://example.com/cat.jpg --pick --upload`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompose(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default postcard-<id>.<ext>, - for stdout)")
	cmd.Flags().StringVarP(&opts.caption, "caption", "c", "", "caption text (skips generation)")
	cmd.Flags().StringVar(&opts.svgFile, "svg-file", "", "SVG sketch to draw below a supplied caption")
	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "caption style: mood (default), sarcastic")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose the caption style interactively")
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "layout: postcard (default), card")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: jpeg, png, webp, pdf (default from config)")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "output encoding: raw (default), base64")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "upload the postcard to ImgBB and print its URL")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runCompose(ctx context.Context, source string, opts *composeOpts) error {
	logger := loggerFromContext(ctx)

	enc, err := postcard.ParseEncoding(opts.encoding)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "%v", err)
	}
	popts := pipeline.Options{
		Caption: opts.caption,
		Style:   opts.style,
		Layout:  opts.layout,
		Format:  opts.format,
		Upload:  opts.upload,
		Refresh: opts.refresh,
		Logger:  logger,
	}
	if err := loadSource(source, &popts); err != nil {
		return err
	}
	if opts.svgFile != "" {
		data, err := readLocal(opts.svgFile)
		if err != nil {
			return err
		}
		popts.SVG = string(data)
	}
	if opts.pick && popts.NeedsCaption() {
		cfg, err := c.Config()
		if err != nil {
			return err
		}
		style, err := pickStyle(cfg.Coze.ConfiguredStyles(), true)
		if err != nil {
			return err
		}
		if style == "" {
			return nil
		}
		popts.Style = string(style)
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Preparing...")
	restore := followStages(spinner)
	spinner.Start()
	result, err := runner.Execute(ctx, popts)
	restore()
	if err != nil {
		spinner.StopWithError("Composition failed")
		return err
	}
	spinner.Stop()

	artifact := result.Artifact
	if opts.output == "-" {
		_, err := os.Stdout.Write(artifact.Encoded(enc))
		return err
	}
	path := opts.output
	if path == "" {
		path = defaultOutputPath(result.ID, artifact.Format, enc)
	}
	if err := os.WriteFile(path, artifact.Encoded(enc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	printSuccess("Postcard %s", StyleNumber.Render(fmt.Sprintf("%d×%d", artifact.Width, artifact.Height)))
	printFile(path)
	printStats(result.Stats, result.CacheInfo)
	printNewline()
	printKeyValue("Caption", result.Caption)
	if artifact.SVGFailed {
		printWarning("sketch could not be rendered: %s", artifact.SVGFailure())
	}
	if u := result.URL(); u != "" {
		printKeyValue("URL", StyleLink.Render(u))
		if result.Upload.DeleteURL != "" {
			printDetail("delete: %s", result.Upload.DeleteURL)
		}
	}
	return nil
}

// loadSource fills the photo fields of opts from an http(s) URL or a
// local file.
func loadSource(source string, opts *pipeline.Options) error {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		opts.ImageURL = source
		return nil
	}
	data, err := readLocal(source)
	if err != nil {
		return err
	}
	if err := errors.ValidateUploadSize(int64(len(data))); err != nil {
		return err
	}
	opts.Image = data
	return nil
}

func readLocal(path string) ([]byte, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return data, nil
}

// defaultOutputPath names an output file after the first block of the run
// ID, e.g. postcard-1b4e28ba.jpg.
func defaultOutputPath(id string, format postcard.Format, enc postcard.Encoding) string {
	short, _, _ := strings.Cut(id, "-")
	ext := format.Ext()
	if enc == postcard.EncodingBase64 {
		ext += ".b64"
	}
	return filepath.Clean(fmt.Sprintf("%s-%s.%s", appName, short, ext))
}
