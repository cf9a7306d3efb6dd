package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pders01/texmath/internal/config"
	"github.com/spf13/cobra"
)

var (
	statsJSON bool
	statsToon bool
)

var statsCmd = &cobra.Command{
	Use:   "stats [dir]",
	Short: "Show cache statistics",
	Long: `Display statistics about a cache directory including:
  - Image count and total size
  - Baseline range and distribution
  - Identities cached more than once
  - Timeline distribution

Examples:
  texmath stats ./cache
  texmath stats --json
  texmath stats --toon`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&statsToon, "toon", false, "Output in LLM-friendly toon format")
}

type cacheStats struct {
	TotalImages   int             `json:"total_images"`
	TotalBytes    int64           `json:"total_bytes"`
	MinBaseline   int             `json:"min_baseline"`
	MaxBaseline   int             `json:"max_baseline"`
	AvgBaseline   float64         `json:"avg_baseline"`
	Duplicates    int             `json:"duplicates"`
	OldestImage   *time.Time      `json:"oldest_image,omitempty"`
	NewestImage   *time.Time      `json:"newest_image,omitempty"`
	Baselines     []baselineStat  `json:"baselines"`
	DailyActivity []dailyActivity `json:"daily_activity"`
}

type baselineStat struct {
	Baseline int `json:"baseline"`
	Count    int `json:"count"`
}

type dailyActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func runStats(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dir, err := cacheDirArg(args, 0, settings)
	if err != nil {
		return err
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

	if len(entries) == 0 && !statsJSON && !statsToon {
		fmt.Println("No cached images found")
		return nil
	}

	stats := &cacheStats{TotalImages: len(entries)}
	byBaseline := make(map[int]int)
	byDate := make(map[string]int)
	byIdentity := make(map[string]int)
	sum := 0

	for i, e := range entries {
		stats.TotalBytes += e.Size
		sum += e.Baseline
		if i == 0 || e.Baseline < stats.MinBaseline {
			stats.MinBaseline = e.Baseline
		}
		if i == 0 || e.Baseline > stats.MaxBaseline {
			stats.MaxBaseline = e.Baseline
		}

		if stats.OldestImage == nil || e.ModTime.Before(*stats.OldestImage) {
			t := e.ModTime
			stats.OldestImage = &t
		}
		if stats.NewestImage == nil || e.ModTime.After(*stats.NewestImage) {
			t := e.ModTime
			stats.NewestImage = &t
		}

		byBaseline[e.Baseline]++
		byDate[e.ModTime.Format("2006-01-02")]++
		byIdentity[e.Identity]++
	}
	if len(entries) > 0 {
		stats.AvgBaseline = float64(sum) / float64(len(entries))
	}

	for _, n := range byIdentity {
		if n > 1 {
			stats.Duplicates += n - 1
		}
	}

	for b, n := range byBaseline {
		stats.Baselines = append(stats.Baselines, baselineStat{Baseline: b, Count: n})
	}
	sort.Slice(stats.Baselines, func(i, j int) bool {
		return stats.Baselines[i].Baseline < stats.Baselines[j].Baseline
	})

	for date, n := range byDate {
		stats.DailyActivity = append(stats.DailyActivity, dailyActivity{Date: date, Count: n})
	}
	sort.Slice(stats.DailyActivity, func(i, j int) bool {
		return stats.DailyActivity[i].Date > stats.DailyActivity[j].Date
	})

	if done, err := printStructured(stats, statsJSON, statsToon); done {
		return err
	}

	fmt.Println("Cache Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Directory:    %s\n", dir)
	fmt.Printf("Total Images: %d (%s)\n", stats.TotalImages, formatBytes(stats.TotalBytes))
	if stats.OldestImage != nil && stats.NewestImage != nil {
		fmt.Printf("Date Range:   %s to %s\n",
			stats.OldestImage.Format("2006-01-02"),
			stats.NewestImage.Format("2006-01-02"))
	}
	if stats.Duplicates > 0 {
		fmt.Printf("Duplicates:   %d (remove with: texmath prune --duplicates --force)\n", stats.Duplicates)
	}
	fmt.Println()

	fmt.Println("Baselines:")
	fmt.Printf("  min %d  max %d  avg %.1f px\n", stats.MinBaseline, stats.MaxBaseline, stats.AvgBaseline)
	for _, b := range stats.Baselines {
		fmt.Printf("  %4d px  %3d  %s\n", b.Baseline, b.Count, strings.Repeat("█", min(b.Count, 20)))
	}
	fmt.Println()

	if len(stats.DailyActivity) > 0 {
		fmt.Println("Recent Activity:")
		for _, da := range stats.DailyActivity[:min(len(stats.DailyActivity), 7)] {
			fmt.Printf("  %s  %3d  %s\n", da.Date, da.Count, strings.Repeat("█", min(da.Count, 20)))
		}
	}

	return nil
}
