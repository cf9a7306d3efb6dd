package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/config"
	"github.com/spf13/cobra"
)

var (
	pruneDryRun     bool
	pruneForce      bool
	pruneDays       int
	pruneDuplicates bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune [dir]",
	Short: "Remove old cached images based on retention policy",
	Long: `Remove cached images older than the retention period.

The retention policy is configured in ~/.config/texmath/config.toml:
  [retention]
  days = 90

A retention of 0 days keeps images forever. With --duplicates, images of an
identity that is cached more than once are removed too; the smallest
filename that survives the retention check is kept.

Example:
  texmath prune ./cache                # Show what would be pruned
  texmath prune ./cache --force        # Actually prune images
  texmath prune --duplicates --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", true, "Show what would be pruned without deleting")
	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Actually delete images (overrides dry-run)")
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "Retention period in days (default retention.days)")
	pruneCmd.Flags().BoolVar(&pruneDuplicates, "duplicates", false, "Also remove duplicate images of an identity")
}

type pruneCandidate struct {
	Entry  cache.Entry
	Age    time.Duration
	Reason string
}

func runPrune(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dir, err := cacheDirArg(args, 0, settings)
	if err != nil {
		return err
	}

	retentionDays := settings.Retention.Days
	if pruneDays > 0 {
		retentionDays = pruneDays
	}

	store, cleanup, err := openStore(settings, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	entries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}

	if retentionDays > 0 {
		fmt.Printf("Retention policy: %d days\n", retentionDays)
		fmt.Printf("Cutoff date: %s\n\n", time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02"))
	} else {
		fmt.Print("Retention policy: keep forever\n\n")
	}

	if len(entries) == 0 {
		fmt.Println("No cached images found")
		return nil
	}

	toPrune := selectPrune(entries, retentionDays, pruneDuplicates, time.Now())
	if len(toPrune) == 0 {
		fmt.Println("No images to prune")
		return nil
	}

	fmt.Printf("Images to prune (%d):\n\n", len(toPrune))
	for _, c := range toPrune {
		fmt.Printf("  %s\n", filepath.Base(c.Entry.Path))
		fmt.Printf("    Age:    %s\n", formatDuration(c.Age))
		fmt.Printf("    Reason: %s\n", c.Reason)
		fmt.Println()
	}

	if pruneForce && !pruneDryRun {
		fmt.Println("Pruning images...")
		removed := 0
		for _, c := range toPrune {
			if err := store.Remove(ctx, c.Entry); err != nil {
				fmt.Printf("  Error: %v\n", err)
				continue
			}
			removed++
		}
		fmt.Printf("\n✓ Pruned %d image(s)\n", removed)
	} else {
		fmt.Println("This is a dry run. Use --force to actually prune images.")
	}

	return nil
}

// selectPrune picks the entries to remove. entries must be ordered by
// filename so the first kept entry of each identity is the one lookups
// return after pruning.
func selectPrune(entries []cache.Entry, retentionDays int, duplicates bool, now time.Time) []pruneCandidate {
	cutoff := now.AddDate(0, 0, -retentionDays)
	seen := make(map[string]bool)

	var out []pruneCandidate
	for _, e := range entries {
		c := pruneCandidate{Entry: e, Age: now.Sub(e.ModTime)}

		switch {
		case retentionDays > 0 && e.ModTime.Before(cutoff):
			c.Reason = fmt.Sprintf("older than %d days", retentionDays)
		case duplicates && seen[e.Identity]:
			c.Reason = "duplicate of an identity already cached"
		default:
			// only a surviving image makes later ones duplicates
			seen[e.Identity] = true
			continue
		}
		out = append(out, c)
	}
	return out
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 0 {
		return "< 1 day"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
