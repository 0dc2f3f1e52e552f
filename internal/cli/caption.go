package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/integrations/coze"
)

// captionOpts holds the command-line flags for the caption command.
type captionOpts struct {
	style   string
	pick    bool
	svgOut  string // write the sketch here
	jsonOut bool   // print the reply as JSON
	refresh bool
	noCache bool
}

// captionCommand runs a caption workflow and prints the reply without
// composing anything. Photo styles take an image URL; poetry and story
// take text.
func (c *CLI) captionCommand() *cobra.Command {
	var opts captionOpts

	cmd := &cobra.Command{
		Use:   "caption <image-url|text>",
		Short: "Generate a caption and sketch with a workflow",
		Example: `  postcard caption https://example.com/cat.jpg
  postcard caption https://example.com/cat.jpg --style sarcastic --svg-out cat.svg
  postcard caption --style story "地铁上睡着的人"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCaption(cmd.Context(), strings.Join(args, " "), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "caption style: mood (default), sarcastic, poetry, story")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose the style interactively")
	cmd.Flags().StringVar(&opts.svgOut, "svg-out", "", "write the SVG sketch to this file")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the reply as JSON")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runCaption(ctx context.Context, input string, opts *captionOpts) error {
	logger := loggerFromContext(ctx)

	styleName := opts.style
	if opts.pick {
		cfg, err := c.Config()
		if err != nil {
			return err
		}
		picked, err := pickStyle(cfg.Coze.ConfiguredStyles(), false)
		if err != nil {
			return err
		}
		if picked == "" {
			return nil
		}
		styleName = string(picked)
	}
	style, err := coze.ParseStyle(styleName)
	if err != nil {
		return err
	}
	if !style.TextInput() {
		if err := errors.ValidateURL(input); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "style %q needs an image URL", style)
		}
	} else if err := errors.ValidateCaption(input); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Running %s workflow...", style))
	spinner.Start()
	reply, hit, err := runner.CaptionWithCacheInfo(ctx, style, input, opts.refresh)
	if err != nil {
		spinner.StopWithError("Caption failed")
		return err
	}
	spinner.Stop()
	prog.done("Caption ready", "style", style, "cached", hit)

	if opts.svgOut != "" && reply.SVG != "" {
		if err := os.WriteFile(opts.svgOut, []byte(reply.SVG), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.svgOut, err)
		}
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(reply)
	}

	printKeyValue("Style", string(style))
	printKeyValue("Caption", reply.Comment)
	switch {
	case reply.SVG == "":
		printDetail("no sketch returned")
	case opts.svgOut != "":
		printFile(opts.svgOut)
	default:
		printDetail("sketch: %d bytes (use --svg-out to save)", len(reply.SVG))
	}
	if reply.DebugURL != "" {
		printDetail("debug: %s", reply.DebugURL)
	}
	if !style.TextInput() {
		printNewline()
		printNextStep("Render it", fmt.Sprintf("%s compose %s --style %s", appName, input, style))
	}
	return nil
}
