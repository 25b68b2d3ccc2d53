package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cydonia/internal/services"
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Render the site once",
	Long: `Render every post, the index, the theme, the public directory and the
favicon of the project in dir (default ".") into the output directory.

Examples:
  cydonia build                  # Build the project in the current directory
  cydonia build blog --out dist  # Build blog into blog/dist
  cydonia build --clean          # Remove the output directory first`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var buildClean bool

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("out", "", "Output directory (overrides the manifest)")
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "Remove the output directory before building")
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	manifest, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}

	result, err := services.NewBuildService(manifest, logger, nil).Build(cmd.Context(), services.BuildOptions{
		Clean: buildClean,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %d posts into %s in %v\n",
		result.PostCount, manifest.Out, result.Duration.Round(time.Millisecond))
	return nil
}
