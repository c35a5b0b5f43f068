package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent jobs",
	Long: `List jobs, newest first.

Example:
  researchctl jobs
  researchctl jobs --status failed --limit 10`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		status, _ := flags.GetString("status")
		limit, _ := flags.GetInt("limit")

		url := viper.GetString("api_url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RESEARCHPLANE_TOKEN environment variable")
			return
		}

		jobs, err := NewClient(url, token).ListJobs(status, limit)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("List failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("List failed: %v\n", err)
			}
			return
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs found")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		w.Write([]byte("ID\tTYPE\tSTATUS\tQUERY\tCREATED\n"))
		for _, job := range jobs {
			w.Write([]byte(job.ID + "\t" + job.Type + "\t" + job.Status + "\t" +
				snippet(job.Query, 40) + "\t" + job.CreatedAt.Format("2006-01-02 15:04") + "\n"))
		}
	},
}

func init() {
	flags := jobsCmd.Flags()
	flags.String("status", "", "Filter by status (queued, running, completed, failed)")
	flags.Int("limit", 0, "Maximum number of jobs to return")

	rootCmd.AddCommand(jobsCmd)
}
