package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/config"
	"github.com/docdex/docdex/internal/crawler"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <name[@version]>",
		Short: "Show the state of a cached documentation set",
		Long: `Status inspects one cache entry and reports whether its last run
completed. An interrupted run leaves a checkpoint behind; rerunning
'docdex fetch' resumes from it.

Examples:
  # Check whether the last fetch completed
  docdex status fastapi

  # Check a pinned version
  docdex status fastapi@0.115`,
		Args: cobra.ExactArgs(1),
		RunE: runStatusCmd,
	}

	cmd.Flags().String("cache-dir", "", "Cache root directory (default: XDG cache directory)")
	cmd.Flags().BoolP("json", "j", false, "Output the status in JSON format")

	return cmd
}

// statusView is the JSON shape of a status report.
type statusView struct {
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Cached      bool         `json:"cached"`
	Interrupted bool         `json:"interrupted"`
	Reason      string       `json:"reason,omitempty"`
	Index       *cache.Index `json:"index,omitempty"`
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, args []string) error {
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	name, version := parseTarget(args[0])
	store := cache.New(resolveCacheDir(cacheDir))

	view := statusView{Name: name, Version: version, Cached: true}

	idx, err := store.ReadIndex(name, version)
	switch {
	case err == nil:
		view.Index = idx
	case errors.Is(err, cache.ErrNotCached):
		view.Cached = false
	default:
		return fmt.Errorf("failed to read cache index: %w", err)
	}

	interruption, err := crawler.DetectInterruption(store, name, version, config.DefaultCheckpointMaxAge)
	if err != nil {
		return fmt.Errorf("failed to inspect cache entry: %w", err)
	}
	view.Interrupted = interruption.Interrupted
	view.Reason = interruption.Reason

	return writeStatus(cmd.OutOrStdout(), &view, jsonOut)
}

// writeStatus renders one status report.
func writeStatus(w io.Writer, view *statusView, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	target := view.Name + "@" + view.Version

	if !view.Cached && !view.Interrupted {
		fmt.Fprintf(w, "%s is not cached.\n", target)
		fmt.Fprintln(w, "\nUse 'docdex fetch <url>' to cache it.")
		return nil
	}

	fmt.Fprintf(w, "Status of %s:\n\n", target)
	if view.Index != nil {
		fmt.Fprintf(w, "  Source:     %s (%s)\n", view.Index.SourceURL, view.Index.SourceType)
		fmt.Fprintf(w, "  Pages:      %d (%s)\n", view.Index.PageCount, humanBytes(view.Index.TotalBytes))
		fmt.Fprintf(w, "  Fetched at: %s\n", view.Index.FetchedAt.Format("2006-01-02 15:04:05"))
	}

	if view.Interrupted {
		fmt.Fprintf(w, "  State:      interrupted (%s)\n", view.Reason)
		fmt.Fprintf(w, "\nRerun 'docdex fetch' or 'docdex sync' for %s to resume.\n", target)
	} else {
		fmt.Fprintln(w, "  State:      complete")
	}
	return nil
}
