package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postcard/pkg/postcard"
)

// poetryCommand turns a line of text into a poetry card. The configured
// chat provider writes the poem and sketch; without one the poetry
// workflow is used.
func (c *CLI) poetryCommand() *cobra.Command {
	var output string
	var noCache bool

	cmd := &cobra.Command{
		Use:     "poetry <text>",
		Short:   "Turn a line of text into a poetry card",
		Example: `  postcard poetry "秋天的第一杯奶茶" -o tea.png`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPoetry(cmd.Context(), strings.Join(args, " "), output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default postcard-<id>.<ext>, - for stdout)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runPoetry(ctx context.Context, text, output string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Writing poem...")
	spinner.Start()
	result, err := runner.Poetry(ctx, text)
	if err != nil {
		spinner.StopWithError("Poetry failed")
		return err
	}
	spinner.Stop()

	artifact := result.Artifact
	if output == "-" {
		_, err := os.Stdout.Write(artifact.Data)
		return err
	}
	if output == "" {
		output = defaultOutputPath(result.ID, artifact.Format, postcard.EncodingRaw)
	}
	if err := os.WriteFile(output, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSuccess("Poetry card %s", StyleNumber.Render(fmt.Sprintf("%d×%d", artifact.Width, artifact.Height)))
	printFile(output)
	printStats(result.Stats, result.CacheInfo)
	printNewline()
	for _, line := range artifact.Lines {
		printDetail("%s", line)
	}
	if artifact.SVGFailed {
		printWarning("sketch could not be rendered: %s", artifact.SVGFailure())
	}
	return nil
}
