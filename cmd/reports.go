package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockdiff/internal/store"
)

var (
	reportDataDir string
	olderThanDays int
	forceClean    bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage persisted comparison reports",
	Long: `Manage comparison reports saved by the compare command or the server,
including listing, showing, and cleaning old reports.`,
}

var listReportsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all persisted reports",
	RunE:  runListReports,
}

var showReportCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print one report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowReport,
}

var deleteReportCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Delete one report",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteReport,
}

var cleanReportsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old reports",
	Long:  `Delete reports older than the given age.`,
	RunE:  runCleanReports,
}

func init() {
	rootCmd.AddCommand(reportsCmd)

	reportsCmd.AddCommand(listReportsCmd)
	reportsCmd.AddCommand(showReportCmd)
	reportsCmd.AddCommand(deleteReportCmd)
	reportsCmd.AddCommand(cleanReportsCmd)

	reportsCmd.PersistentFlags().StringVar(&reportDataDir, "data-dir", "./data", "Base directory for report storage")

	cleanReportsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete reports older than N days")
	cleanReportsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListReports(cmd *cobra.Command, args []string) error {
	reportStore, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	infos, err := reportStore.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No reports found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIMESTAMP\tGRID\tSCORE\tSOURCES")
	fmt.Fprintln(w, "--\t---------\t----\t-----\t-------")

	for _, info := range infos {
		displayID := info.ID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%.4f\t%s vs %s\n",
			displayID,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.XSegments,
			info.YSegments,
			info.Score,
			info.SourceA,
			info.SourceB,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal reports: %d\n", len(infos))
	return nil
}

func runShowReport(cmd *cobra.Command, args []string) error {
	reportStore, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	report, err := reportStore.LoadReport(args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("report not found: %s", args[0])
		}
		return fmt.Errorf("failed to load report: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

// selectReportsForDeletion picks reports older than the retention window.
func selectReportsForDeletion(infos []store.ReportInfo, olderThanDays int, now time.Time) []store.ReportInfo {
	cutoff := now.AddDate(0, 0, -olderThanDays)

	var toDelete []store.ReportInfo
	for _, info := range infos {
		if info.Timestamp.Before(cutoff) {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

func runDeleteReport(cmd *cobra.Command, args []string) error {
	reportStore, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	if err := reportStore.DeleteReport(args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("report not found: %s", args[0])
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}

	fmt.Printf("Deleted report %s\n", args[0])
	return nil
}

func runCleanReports(cmd *cobra.Command, args []string) error {
	if olderThanDays <= 0 {
		return fmt.Errorf("must specify --older-than with a positive number of days")
	}

	reportStore, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	infos, err := reportStore.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	toDelete := selectReportsForDeletion(infos, olderThanDays, time.Now())

	if len(toDelete) == 0 {
		fmt.Println("No reports match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d report(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s)\n", info.ID, info.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := reportStore.DeleteReport(info.ID); err != nil {
			failed++
		} else {
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d report(s), %d failed.\n", deleted, failed)
	return nil
}
