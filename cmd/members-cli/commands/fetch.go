package commands

import (
	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/spf13/cobra"
)

var (
	fetchRefresh bool
	fetchOutput  string
)

func init() {
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "Ignore the cached page and fetch it again.")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "-", "Where to write the page HTML.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--refresh] [-o <page.html>]",
	Short: "Fetches the about us page HTML from the site.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		var opts []content.GetOption
		if fetchRefresh {
			opts = append(opts, content.ForceRefresh())
		}
		html, err := app.Content.GetContent(cmd.Context(), stderrLog, opts...)
		if err != nil {
			return err
		}
		return writeOutput(fetchOutput, html)
	},
}
