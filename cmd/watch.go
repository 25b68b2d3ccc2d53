package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cydonia/internal/services"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Render the site and re-render on every change",
	Long: `Render the project in dir (default ".") and keep the output in sync with
posts, templates, the theme, the public directory and the favicon until
interrupted. Errors after the first render are logged and watching continues.

Examples:
  cydonia watch
  cydonia watch blog --out /tmp/site`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("out", "", "Output directory (overrides the manifest)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	manifest, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return services.NewWatchService(manifest, nil, nil, logger).Run(ctx)
}
