package cleaner

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

func size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func (s *Service) printClean(r CleanReport) {
	w := s.out
	fmt.Fprintf(w, "Config file: %s\n", r.ConfigPath)
	fmt.Fprintf(w, "Images directory: %s\n", r.ImagesDir)
	fmt.Fprintf(w, "Original file size: %s\n", size(r.OriginalSize))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Items cleaned: %d\n", r.Stats.ItemsCleaned)
	fmt.Fprintf(w, "Images extracted: %d\n", r.Stats.ImagesExtracted)
	fmt.Fprintf(w, "Total size removed: %s\n", size(r.Stats.TotalRemovedSize))

	if !r.Changed() {
		fmt.Fprintln(w, "No images found to clean.")
		if r.BackupPath == "" {
			fmt.Fprintln(w, "Backup removed (no changes made).")
		}
		return
	}

	fmt.Fprintf(w, "Backup saved to: %s\n", r.BackupPath)
	if r.Stats.ImagesExtracted > 0 {
		fmt.Fprintf(w, "%d images preserved in %s\n", r.Stats.ImagesExtracted, r.ImagesDir)
	}
	fmt.Fprintf(w, "New file size: %s\n", size(r.FinalSize))
	fmt.Fprintf(w, "Size reduction: %.1f%%\n", r.Reduction())
}

func (s *Service) printRecover(r RecoverReport) {
	w := s.out
	fmt.Fprintln(w, "Recovery completed.")
	fmt.Fprintf(w, "  Backup file: %s (%s)\n", r.BackupPath, size(r.BackupSize))
	fmt.Fprintf(w, "  Images recovered: %d\n", r.Result.Stats.ImagesExtracted)
	fmt.Fprintf(w, "  New projects added: %d\n", len(r.Result.Diff.NewProjects))
	fmt.Fprintf(w, "  Projects with new history: %d\n", len(r.Result.Diff.NewHistory))
	if r.Result.Diff.Empty() {
		fmt.Fprintln(w, "  No new history since the backup.")
	}
	fmt.Fprintf(w, "  Final file size: %s\n", size(r.FinalSize))
	fmt.Fprintf(w, "  Images location: %s\n", r.ImagesDir)
	fmt.Fprintf(w, "  Recovery backup: %s\n", r.SafetyCopyPath)
}
