package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/store"
)

var (
	jobsSeniority      string
	jobsIncludeApplied bool
	jobsPerCompany     bool
	jobsLimit          int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List ranked postings",
	Long:  "Prints the ranked listing: non-stale primary postings ordered by score.",
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsSeniority, "seniority", "", "only postings with this seniority")
	jobsCmd.Flags().BoolVar(&jobsIncludeApplied, "include-applied", false, "include postings already marked applied")
	jobsCmd.Flags().BoolVar(&jobsPerCompany, "per-company", false, "one posting per employer first, remainder after")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 25, "maximum rows (0 = unlimited)")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	records, err := sqlStore.RankedListings(model.ListingOptions{
		Seniority:      jobsSeniority,
		IncludeApplied: jobsIncludeApplied,
		PerCompany:     jobsPerCompany,
		Limit:          jobsLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list postings: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No postings yet — run `jobhunter run` first.")
		return nil
	}

	fmt.Printf("%-6s %-34s %-20s %-18s %-9s %s\n", "Score", "Title", "Company", "Location", "Seniority", "Applied")
	fmt.Println(strings.Repeat("─", 99))
	for _, rec := range records {
		applied := ""
		if rec.AppliedAt != nil {
			applied = rec.AppliedAt.Format("2006-01-02")
		}
		fmt.Printf("%-6.2f %-34s %-20s %-18s %-9s %s\n",
			rec.Score,
			truncate(rec.Title, 34),
			truncate(rec.Company, 20),
			truncate(rec.Location, 18),
			rec.Seniority,
			applied,
		)
	}
	fmt.Printf("\nTotal: %d postings\n", len(records))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
