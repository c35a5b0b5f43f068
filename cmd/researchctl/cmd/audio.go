package cmd

import (
	"researchplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Manage remote audio generations",
}

var audioQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Queue remote audio generations",
	Long: `Dispatch one remote audio generation per source document.

Example:
  researchctl audio queue --notebook "Research XKR" --source "Findings" --source "Summary"`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		notebook, _ := flags.GetString("notebook")
		sources, _ := flags.GetStringSlice("source")
		prompt, _ := flags.GetString("prompt")

		url := viper.GetString("api_url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RESEARCHPLANE_TOKEN environment variable")
			return
		}
		if notebook == "" {
			cmd.Println("Error: --notebook is required")
			return
		}
		if len(sources) == 0 {
			cmd.Println("Error: --source is required")
			return
		}

		result, err := NewClient(url, token).QueueAudio(api.QueueAudioRequest{
			NotebookTitle: notebook,
			Sources:       sources,
			CustomPrompt:  prompt,
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Queue failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Queue failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Queued %d audio generations (%d failed)\n", len(result.Queued), len(result.Failed))
		for _, pa := range result.PendingAudios {
			cmd.Printf("  %s  %s  %s\n", pa.ID, pa.Status, snippet(pa.Sources[0], 40))
		}
	},
}

var audioStatusCmd = &cobra.Command{
	Use:   "status [pending_audio_id]",
	Short: "Get status of a pending audio generation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("api_url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RESEARCHPLANE_TOKEN environment variable")
			return
		}

		pa, err := NewClient(url, token).GetPendingAudio(args[0])
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Status failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Status failed: %v\n", err)
			}
			return
		}

		cmd.Printf("%sID:%s        %s\n", colorDim, colorReset, pa.ID)
		cmd.Printf("%sNotebook:%s  %s\n", colorDim, colorReset, pa.NotebookTitle)
		cmd.Printf("%sStatus:%s    %s\n", colorDim, colorReset, pa.Status)
		if pa.RemoteJobID != "" {
			cmd.Printf("%sRemote:%s    %s\n", colorDim, colorReset, pa.RemoteJobID)
		}
		if pa.ResultAudioID != "" {
			cmd.Printf("%sAudio:%s     %s\n", colorDim, colorReset, pa.ResultAudioID)
		}
		if pa.Error != "" {
			cmd.Printf("%sError:%s     %s%s%s\n", colorDim, colorReset, colorRed, pa.Error, colorReset)
		}
	},
}

func init() {
	flags := audioQueueCmd.Flags()
	flags.String("notebook", "", "Target notebook title (required)")
	flags.StringSlice("source", []string{}, "Source document title, repeatable (required)")
	flags.String("prompt", "", "Custom prompt for the generation (optional)")

	audioCmd.AddCommand(audioQueueCmd)
	audioCmd.AddCommand(audioStatusCmd)
	rootCmd.AddCommand(audioCmd)
}
