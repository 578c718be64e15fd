// KreativPoster CLI — инструмент командной строки для управления
// запланированными постами через HTTP API.
//
// Использование:
//
//	kreativposter [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	post       Управление постами
//	scheduler  Управление планировщиком
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kreativ/KreativPoster/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "kreativposter",
		Short:         "KreativPoster CLI — social media post scheduling tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPostCmd(clientFn, outputFn),
		cli.NewSchedulerCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
