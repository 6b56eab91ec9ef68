// Prospector CLI — инструмент оператора поверх HTTP API.
//
// Использование:
//
//	prospector [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	task      Очередь задач скрейпера
//	delivery  Доставки в CRM
//	lead      Лиды, кампании и касания
//	webhook   Отправка входящих событий
//	schedule  Расписания discover
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Prospector/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "prospector",
		Short:         "Prospector CLI — lead sourcing and outreach operator tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("PROSPECTOR_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewDeliveryCmd(clientFn, outputFn),
		cli.NewLeadCmd(clientFn, outputFn),
		cli.NewWebhookCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
