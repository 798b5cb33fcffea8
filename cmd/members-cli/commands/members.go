package commands

import (
	"encoding/json"
	"os"

	"github.com/ESN-MoRe/members-manager/internal/members"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	membersHtml string
	membersJson bool
)

func init() {
	membersCmd.Flags().StringVar(&membersHtml, "html", "", "Read the page from this file instead of the site.")
	membersCmd.Flags().BoolVar(&membersJson, "json", false, "Print the member state as JSON.")
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members [--html <page.html>] [--json]",
	Short: "Lists the members of every section of the page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var state pagemodel.State
		if membersHtml != "" {
			html, err := readInput(membersHtml)
			if err != nil {
				return err
			}
			state, err = members.ParseHTMLToJSON(html)
			if err != nil {
				return err
			}
		} else {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			state, err = app.Members.Current(cmd.Context(), stderrLog)
			if err != nil {
				return err
			}
		}

		if membersJson {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Section", "Name", "Role", "Image"})
		for _, section := range pagemodel.Sections {
			list, ok := state[section]
			if !ok {
				continue
			}
			for _, m := range list {
				t.AppendRow(table.Row{section, m.Name, m.Role, m.ImageFilename})
			}
			t.AppendSeparator()
		}
		t.Render()
		return nil
	},
}
