package commands

import (
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/spf13/cobra"
)

var (
	rollHtml   string
	rollOutput string
)

func init() {
	rollYearCmd.Flags().StringVar(&rollHtml, "html", "", "Edit this file instead of the page fetched from the site.")
	rollYearCmd.Flags().StringVarP(&rollOutput, "output", "o", "-", "Where to write the edited HTML.")
	rootCmd.AddCommand(rollYearCmd)
}

var rollYearCmd = &cobra.Command{
	Use:   "roll-year <year> [--html <page.html>] [-o <out.html>]",
	Short: "Renames the board section and its badges to a new mandate, e.g. 2027-2028.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year := args[0]

		if rollHtml != "" {
			html, err := readInput(rollHtml)
			if err != nil {
				return err
			}
			doc, err := pagemodel.Parse(html)
			if err != nil {
				return err
			}
			err = doc.UpdateBoardYear(year)
			if err != nil {
				return err
			}
			return writeOutput(rollOutput, doc.Output())
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		out, err := app.Members.RollBoardYear(cmd.Context(), year, stderrLog)
		if err != nil {
			return err
		}
		return writeOutput(rollOutput, out)
	},
}
