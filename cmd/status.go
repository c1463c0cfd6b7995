package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or a specific job",
	Long: `Queries the comparison server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listServerJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}

	jobID := args[0]
	return getServerJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		config, _ := job["config"].(map[string]interface{})

		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if config != nil {
			fmt.Printf("  Sources: %s vs %s\n", config["sourceA"], config["sourceB"])
			fmt.Printf("  Grid: %vx%v\n", config["xSegments"], config["ySegments"])
		}
		if job["state"] == "completed" {
			fmt.Printf("  Score: %.4f\n", job["score"])
		}
		fmt.Println()
	}

	return nil
}

func getServerJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Source A: %s\n", config["sourceA"])
		fmt.Printf("  Source B: %s\n", config["sourceB"])
		fmt.Printf("  Grid: %vx%v\n", config["xSegments"], config["ySegments"])
		if config["align"] == true {
			fmt.Printf("  Align: iters=%v pop=%v\n", config["iters"], config["popSize"])
		}
		fmt.Println()
	}

	fmt.Println("Result:")
	fmt.Printf("  Score: %.6f\n", status["score"])
	if backend, _ := status["backend"].(string); backend != "" {
		fmt.Printf("  Backend: %s\n", backend)
	}
	if offsetX, ok := status["offsetX"].(float64); ok && offsetX != 0 {
		fmt.Printf("  Offset: (%v, %v)\n", status["offsetX"], status["offsetY"])
	}

	if elapsed, ok := status["elapsed"].(float64); ok {
		d := time.Duration(elapsed * float64(time.Second))
		fmt.Printf("  Elapsed: %s\n", d.Round(time.Millisecond))
	}

	if errMsg, _ := status["error"].(string); errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}

	return nil
}
