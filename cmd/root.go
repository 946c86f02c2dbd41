package cmd

import (
	"github.com/carousell/ct-go/pkg/logger/log"
	"github.com/executehouse/limpopo-connect/internal/app"
	"github.com/executehouse/limpopo-connect/internal/server"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "limpopo-connect-sync",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
