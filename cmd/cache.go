package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the compiled template cache",
	Long: `Compiled templates are kept under backend.cache_dir, keyed by a hash of
the generated module, so unchanged templates skip the Go toolchain.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and entry count",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached template binary",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cacheFlags *OutputFlags

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)

	cacheFlags = addOutputFlags(cacheStatsCmd)
}

func openCache() (*build.ArtifactCache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cache, err := build.NewArtifactCache(cfg.Backend.CacheDir, cfg.Backend.CacheSize, 0)
	if err != nil {
		return nil, err
	}
	if _, err := cache.Load(); err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	return cache, nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	if err := cacheFlags.Validate(); err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	return writeCacheStats(cmd.OutOrStdout(), cache.Dir(), cache.Stats(), cacheFlags.Format)
}

type cacheView struct {
	Dir     string `json:"dir" yaml:"dir"`
	Entries int    `json:"entries" yaml:"entries"`
	Size    int64  `json:"size" yaml:"size"`
	MaxSize int64  `json:"max_size" yaml:"max_size"`
}

func writeCacheStats(w io.Writer, dir string, stats build.CacheStats, format string) error {
	view := cacheView{Dir: dir, Entries: stats.Entries, Size: stats.Size, MaxSize: stats.MaxSize}
	if format == "json" || format == "yaml" {
		return encodeStructured(w, view, format)
	}
	fmt.Fprintf(w, "Directory: %s\n", view.Dir)
	fmt.Fprintf(w, "Entries:   %d\n", view.Entries)
	fmt.Fprintf(w, "Size:      %s / %s\n", formatBytes(view.Size), formatBytes(view.MaxSize))
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cache, err := openCache()
	if err != nil {
		return err
	}
	stats := cache.Stats()
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	successColor.Fprint(cmd.OutOrStdout(), "Cleared ")
	fmt.Fprintf(cmd.OutOrStdout(), "%d entries (%s)\n", stats.Entries, formatBytes(stats.Size))
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
