package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "researchctl",
	Short: "researchctl is a command line tool for the researchplane service",
	Long: `researchctl is the command-line interface for researchplane, the
research-to-podcast orchestration service.

researchplane runs research queries through a browser-driven session,
exports the findings as documents, generates audio overviews and tracks
every produced artifact under short human-legible IDs.

Common workflows:

  Submit a full research-to-podcast pipeline:
    researchctl submit "history of container shipping" --type research_to_podcast

  Ask a quick grounded question:
    researchctl submit "what is the busiest port in europe" --type query

  Check a job:
    researchctl status <job-id>

  List recent jobs:
    researchctl jobs --status failed

  Trace an artifact back to its session:
    researchctl lineage XKR-01-A

  Queue remote audio generations:
    researchctl audio queue --notebook "Research XKR" --source "Findings"

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    RESEARCHPLANE_API_URL    API endpoint (default: http://localhost:6262)
    RESEARCHPLANE_TOKEN      API token for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".researchctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".researchctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "RESEARCHPLANE_VARNAME"
	viper.SetEnvPrefix("RESEARCHPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.researchctl.yaml)")

	rootCmd.PersistentFlags().String("api_url", "http://localhost:6262", "researchplane API URL")
	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api_url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "API token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
