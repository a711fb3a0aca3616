package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"tui"},
	Short:   "Browse the index interactively",
	Long: `Open an interactive terminal browser over the index.

Type a question to run a hybrid query, open any result to read its
context block and scores, or pick a workbook to restrict the scope.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

var browseTheme string

func init() {
	browseCmd.Flags().StringVar(&browseTheme, "theme", "auto", "Colour palette: auto, dark or light")
	rootCmd.AddCommand(browseCmd)
}

// newBrowser is replaced in tests so no terminal program is started.
var newBrowser = func(ports *tui.Ports, theme *styles.Theme) (browser, error) {
	return tui.NewApp(ports, tui.WithTheme(theme))
}

func resolveTheme(name string) (*styles.Theme, error) {
	switch name {
	case "", "auto":
		return styles.AutoTheme(), nil
	case "dark":
		return styles.DarkTheme(), nil
	case "light":
		return styles.LightTheme(), nil
	default:
		return nil, fmt.Errorf("unknown theme %q (want auto, dark or light)", name)
	}
}

type browser interface {
	Run() error
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	theme, err := resolveTheme(browseTheme)
	if err != nil {
		return err
	}
	app, err := newBrowser(tui.NewPorts(queryService, ingestService), theme)
	if err != nil {
		return err
	}
	if a, ok := app.(*tui.App); ok {
		a.WithContext(cmd.Context())
	}
	return app.Run()
}
