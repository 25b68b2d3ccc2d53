package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/services"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new project",
	Long: `Create a project in dir (default "."): a minimal cydonia.toml and a
starter post dated today. An existing cydonia.toml is never overwritten.

Examples:
  cydonia init                      # Initialize the current directory
  cydonia init blog --title "Notes" # Create blog/ titled "Notes"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initTitle string

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initTitle, "title", "t", config.DefaultTitle, "Title of the site")
}

func runInit(cmd *cobra.Command, args []string) error {
	result, err := services.NewInitService().InitProject(services.InitOptions{
		ProjectDir: projectDir(args),
		Title:      initTitle,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", result.Manifest)
	if result.Post != "" {
		fmt.Fprintf(out, "Created %s\n", result.Post)
	}
	return nil
}
