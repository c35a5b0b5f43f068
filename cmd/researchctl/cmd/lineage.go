package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage [artifact_id]",
	Short: "Trace an artifact back to its session",
	Long: `Print the ancestor chain of an artifact: the artifact itself, then its
parents up to the root session.

Example:
  researchctl lineage XKR-01-A`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("api_url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RESEARCHPLANE_TOKEN environment variable")
			return
		}

		chain, err := NewClient(url, token).GetLineage(args[0])
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Lineage failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Lineage failed: %v\n", err)
			}
			return
		}

		for i, a := range chain {
			indent := strings.Repeat("  ", i)
			arrow := ""
			if i > 0 {
				arrow = "└─ "
			}
			title := a.Title
			if title == "" {
				title = "(untitled)"
			}
			cmd.Printf("%s%s%s  %s[%s]%s %s\n", indent, arrow, a.ID, colorDim, a.Type, colorReset, title)
		}
	},
}

func init() {
	rootCmd.AddCommand(lineageCmd)
}
