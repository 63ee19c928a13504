package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/config"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached documentation sets",
		Long: `List shows every documentation set in the local cache with its page
count, size on disk, discovery source, and fetch time.

Examples:
  # List all cached documentation
  docdex list

  # Machine-readable listing
  docdex list --json`,
		Args: cobra.NoArgs,
		RunE: runListCmd,
	}

	cmd.Flags().String("cache-dir", "", "Cache root directory (default: XDG cache directory)")
	cmd.Flags().BoolP("json", "j", false, "Output the listing in JSON format")

	return cmd
}

// runListCmd executes the list command.
func runListCmd(cmd *cobra.Command, _ []string) error {
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	store := cache.New(resolveCacheDir(cacheDir))
	entries, err := store.Entries()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	return writeListing(cmd.OutOrStdout(), entries, jsonOut)
}

// writeListing renders the cache entries as a table or JSON.
func writeListing(w io.Writer, entries []cache.Entry, jsonOut bool) error {
	if jsonOut {
		indexes := make([]cache.Index, 0, len(entries))
		for _, e := range entries {
			indexes = append(indexes, e.Index)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(indexes)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached documentation found.")
		fmt.Fprintln(w, "\nUse 'docdex fetch <url>' to cache a documentation site.")
		return nil
	}

	fmt.Fprintf(w, "Cached documentation (%d entries):\n\n", len(entries))
	fmt.Fprintf(w, "  %-20s  %-10s  %6s  %8s  %-8s  %s\n",
		"NAME", "VERSION", "PAGES", "SIZE", "SOURCE", "FETCHED")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 72))

	for _, e := range entries {
		fmt.Fprintf(w, "  %-20s  %-10s  %6d  %8s  %-8s  %s\n",
			e.Name,
			e.Version,
			e.Index.PageCount,
			humanBytes(e.Index.TotalBytes),
			e.Index.SourceType,
			e.Index.FetchedAt.Format("2006-01-02 15:04"),
		)
	}
	return nil
}

// resolveCacheDir maps an empty --cache-dir to the XDG default.
func resolveCacheDir(flag string) string {
	if flag != "" {
		return flag
	}
	return config.XDGCacheDir()
}

// humanBytes renders a byte count with a binary unit suffix.
func humanBytes(n int64) string {
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
