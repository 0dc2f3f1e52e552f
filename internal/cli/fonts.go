package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postcard/pkg/fonts"
)

// fontsCommand shows the font the composer will use and the candidates it
// tried, so CJK rendering problems can be diagnosed without composing.
func (c *CLI) fontsCommand() *cobra.Command {
	var all bool
	var filter string

	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Show the resolved caption font",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.Config()
			if err != nil {
				return err
			}
			resolver := fonts.NewResolver(fonts.Options{
				OverridePath: cfg.Fonts.Path,
				Names:        cfg.Fonts.Names,
				Logger:       loggerFromContext(cmd.Context()),
			})

			src := resolver.Source()
			if src.Builtin {
				printWarning("No system font found; using %s", src)
				printDetail("Chinese captions will not render. Set [fonts] path or POSTCARD_FONT_PATH.")
			} else {
				printSuccess("Using %s", StyleValue.Render(src.String()))
			}
			printDetail("platform: %s", fonts.HostPlatform())

			printNewline()
			printInfo("Candidates")
			for _, p := range resolver.Paths() {
				mark := StyleDim.Render("missing")
				if _, err := os.Stat(p); err == nil {
					mark = StyleSuccess.Render("found")
				}
				printKeyValue(mark, p)
			}

			if all || filter != "" {
				printNewline()
				printInfo("Installed fonts")
				for _, p := range fonts.List() {
					if filter != "" && !strings.Contains(strings.ToLower(filepath.Base(p)), strings.ToLower(filter)) {
						continue
					}
					printFile(p)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list every installed font file")
	cmd.Flags().StringVar(&filter, "filter", "", "list installed fonts whose file name contains this text")

	return cmd
}
