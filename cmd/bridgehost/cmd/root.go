package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bridgekit/internal/app"
)

var rootCmd = &cobra.Command{
	Use:           "bridgehost",
	Short:         "Blob storage and message bus host",
	Long:          "Host for the bridge capabilities: a file or sqlite backed blob store with archiving, and a named-topic message bus.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "./bridgehost.yaml", "config file (yaml or json; missing file uses defaults)")
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

// withApp builds the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) (err error) {
	a, err := app.New(configPath(cmd))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
