package commands

import (
	"path/filepath"

	"github.com/ESN-MoRe/members-manager/internal/drupal/images"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload <picture>...",
	Short: "Uploads member pictures to the site's members folder.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		files := make([]images.File, len(args))
		for i, path := range args {
			files[i] = images.File{Path: path, DisplayName: filepath.Base(path)}
		}

		results, err := app.Images.UploadImages(cmd.Context(), files, stderrLog)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"File", "Status", "Error"})
		for _, r := range results {
			t.AppendRow(table.Row{r.Filename, r.Status, r.Error})
		}
		t.Render()
		return nil
	},
}
