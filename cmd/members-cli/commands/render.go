package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ESN-MoRe/members-manager/internal/members"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/spf13/cobra"
)

var (
	renderHtml   string
	renderState  string
	renderOutput string
)

func init() {
	renderCmd.Flags().StringVar(&renderHtml, "html", "", "The page to start from.")
	renderCmd.Flags().StringVar(&renderState, "state", "", "The JSON member state to apply.")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "-", "Where to write the regenerated HTML.")
	renderCmd.MarkFlagRequired("html")
	renderCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render --html <page.html> --state <members.json> [-o <out.html>]",
	Short: "Regenerates the sections of a page from a JSON member state.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		html, err := readInput(renderHtml)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(renderState)
		if err != nil {
			return err
		}
		var state pagemodel.State
		err = json.Unmarshal(raw, &state)
		if err != nil {
			return fmt.Errorf("decode state: %w", err)
		}

		out, err := members.GenerateHTMLFromJSON(html, state)
		if err != nil {
			return err
		}

		diff, err := members.Diff(cmd.Context(), html, out)
		if err != nil {
			return err
		}
		printDiff(diff)

		return writeOutput(renderOutput, out)
	},
}

func printDiff(diff members.Preview) {
	lines := []struct {
		label string
		items []string
	}{
		{"added", diff.Members.Added},
		{"removed", diff.Members.Removed},
		{"pictures to upload", diff.Images.ToUpload},
		{"pictures to delete", diff.Images.ToDelete},
	}
	for _, l := range lines {
		if len(l.items) == 0 {
			continue
		}
		stderrLog.Logf("%s: %s", l.label, strings.Join(l.items, ", "))
	}
}
