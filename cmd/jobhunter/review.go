package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/review"
	"github.com/dozie/my-job-hunter/internal/store"
)

var (
	reviewSeniority      string
	reviewIncludeApplied bool
	reviewPerCompany     bool
	reviewLimit          int
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse ranked postings interactively (TUI)",
	Long:  "Opens the ranked-posting browser; postings can be opened in the browser and marked applied.",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewSeniority, "seniority", "", "only postings with this seniority")
	reviewCmd.Flags().BoolVar(&reviewIncludeApplied, "include-applied", false, "include postings already marked applied")
	reviewCmd.Flags().BoolVar(&reviewPerCompany, "per-company", false, "one posting per employer first, remainder after")
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 0, "maximum postings (0 = unlimited)")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
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
		Seniority:      reviewSeniority,
		IncludeApplied: reviewIncludeApplied,
		PerCompany:     reviewPerCompany,
		Limit:          reviewLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list postings: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No postings to review — run `jobhunter run` first.")
		return nil
	}

	if err := review.RunReviewTUI(records, sqlStore); err != nil {
		fmt.Printf("TUI error: %v\n", err)
	}
	return nil
}
