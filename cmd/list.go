package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/config"
	"github.com/spf13/cobra"
)

var (
	listToday bool
	listSince string
	listJSON  bool
	listToon  bool
)

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List cached renderings",
	Long: `List the images in a cache directory, newest first.

Examples:
  texmath list ./cache
  texmath list --today
  texmath list --since 2025-10-01 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listToday, "today", false, "Show only images rendered today")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show images rendered since date (YYYY-MM-DD)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listToon, "toon", false, "Output in LLM-friendly toon format")
}

func runList(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dir, err := cacheDirArg(args, 0, settings)
	if err != nil {
		return err
	}

	var since time.Time
	if listSince != "" {
		since, err = time.ParseInLocation("2006-01-02", listSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since date format (use YYYY-MM-DD): %w", err)
		}
	}

	store, cleanup, err := openStore(settings, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}

	today := time.Now().Format("2006-01-02")
	var matched []cache.Entry
	for _, e := range entries {
		if listToday && e.ModTime.Format("2006-01-02") != today {
			continue
		}
		if !since.IsZero() && e.ModTime.Before(since) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ModTime.After(matched[j].ModTime)
	})

	if done, err := printStructured(matched, listJSON, listToon); done {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No cached images found")
		return nil
	}
	if len(matched) == 0 {
		fmt.Println("No cached images match the filter criteria")
		return nil
	}

	fmt.Printf("Found %d image(s):\n\n", len(matched))
	for _, e := range matched {
		fmt.Printf("  %s\n", filepath.Base(e.Path))
		fmt.Printf("    Baseline: %d px\n", e.Baseline)
		fmt.Printf("    Size:     %s\n", formatBytes(e.Size))
		fmt.Printf("    Created:  %s\n", e.ModTime.Format("2006-01-02 15:04"))
		fmt.Println()
	}

	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
