package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ESN-MoRe/members-manager/internal/application"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "members-cli",
	Short: "members-cli edits the members section of the about us page.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "Path to the json5 config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads the config and builds the application, the caller closes it.
func openApp(ctx context.Context) (*application.Application, error) {
	cfg, err := application.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return application.New(ctx, cfg, nil)
}

// stderrLog prints progress lines on stderr so stdout only carries results.
var stderrLog progress.LogFunc = func(line string) {
	fmt.Fprintln(os.Stderr, line)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// writeOutput writes to path, or stdout when path is empty or "-".
func writeOutput(path, content string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(os.Stdout, content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func readInput(path string) (string, error) {
	if path == "-" {
		buf, err := io.ReadAll(os.Stdin)
		return string(buf), err
	}
	buf, err := os.ReadFile(path)
	return string(buf), err
}
