package cmd

import (
	"researchplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit [query]",
	Short: "Submit a research job",
	Long: `Queue a research job. The job runs asynchronously; use 'researchctl
status <job-id>' to follow it.

Job types:
  query                fast grounded answer
  deep_research        long-form deep research
  research_to_podcast  full pipeline: research, document export, audio overview
  audio_generation     dispatch remote audio generation for existing sources
  sync_conversations   import the session's conversation history

Example:
  researchctl submit "history of container shipping" --type research_to_podcast
  researchctl submit "what is the busiest port in europe"
  researchctl submit "nightly digest" --type research_to_podcast --dry-run`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		jobType, _ := flags.GetString("type")
		dryRun, _ := flags.GetBool("dry-run")
		prompt, _ := flags.GetString("prompt")
		sources, _ := flags.GetStringSlice("source")
		wait, _ := flags.GetBool("wait-for-audio")

		url := viper.GetString("api_url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RESEARCHPLANE_TOKEN environment variable")
			return
		}

		client := NewClient(url, token)

		result, err := client.SubmitJob(api.SubmitJobRequest{
			Type:  jobType,
			Query: args[0],
			Options: api.JobOptions{
				DryRun:       dryRun,
				CustomPrompt: prompt,
				Sources:      sources,
				WaitForAudio: wait,
			},
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Job submitted!\nJob ID: %s\n", result.JobID)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.String("type", "query", "Job type (query, deep_research, research_to_podcast, audio_generation, sync_conversations)")
	flags.Bool("dry-run", false, "Validate the pipeline without generating or downloading audio")
	flags.String("prompt", "", "Custom prompt for audio generation (optional)")
	flags.StringSlice("source", []string{}, "Source document titles for audio_generation jobs")
	flags.Bool("wait-for-audio", false, "Keep the job running until remote audio generation finishes")

	rootCmd.AddCommand(submitCmd)
}
