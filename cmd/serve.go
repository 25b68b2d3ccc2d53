package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/cydonia/internal/server"
	"github.com/conneroisu/cydonia/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Preview the site with live reload",
	Long: `Render and watch the project in dir (default ".") and serve the output.
Open pages reload whenever a change has been rendered. When the port is taken
the next free one is used.

Examples:
  cydonia serve
  cydonia serve blog --port 8080
  cydonia serve --address 0.0.0.0 --open`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", server.DefaultPort, "Port to serve on")
	serveCmd.Flags().String("address", server.DefaultAddress, "Address to bind to")
	serveCmd.Flags().String("out", "", "Output directory (overrides the manifest)")
	serveCmd.Flags().Bool("open", false, "Open the site in a browser")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
}

func runServe(cmd *cobra.Command, args []string) error {
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

	svc := services.NewServeService(manifest, logger)
	result, err := svc.Start(ctx, services.ServeOptions{
		Address: viper.GetString("server.address"),
		Port:    viper.GetInt("server.port"),
		Open:    viper.GetBool("server.open"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", manifest.Title, result.ServerURL)

	<-ctx.Done()
	return svc.Stop(cmd.Context())
}
