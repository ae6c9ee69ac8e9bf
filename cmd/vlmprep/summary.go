package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"vlmprep/internal/services"
)

// printSkipped renders the items a stage left out of its output.
func printSkipped(out io.Writer, skipped []services.SkippedItem) {
	if len(skipped) == 0 {
		return
	}
	rows := make([][]string, 0, len(skipped))
	for _, item := range skipped {
		rows = append(rows, []string{item.Name, item.Reason})
	}
	title := fmt.Sprintf("Skipped %s", pluralize(len(skipped), "item"))
	fmt.Fprintln(out, renderTable(title, []string{"File", "Reason"}, rows, nil))
}

// totalSize sums the sizes of names under dir, ignoring files that vanished.
func totalSize(dir string, names []string) uint64 {
	var total uint64
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		total += uint64(info.Size())
	}
	return total
}

func formatBytes(n uint64) string {
	return humanize.Bytes(n)
}

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
