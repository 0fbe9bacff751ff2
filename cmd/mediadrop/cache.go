package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memohai/mediadrop/internal/boot"
	"github.com/memohai/mediadrop/internal/idcache"
	"github.com/memohai/mediadrop/internal/media"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the uploaded file id cache",
	}
	cmd.AddCommand(newCacheListCmd(root))
	return cmd
}

func newCacheListCmd(root *rootOptions) *cobra.Command {
	var kindFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached file ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			var only *media.Kind
			if kindFilter != "" {
				kind, err := media.ParseKind(kindFilter)
				if err != nil {
					return err
				}
				only = &kind
			}
			cache, err := idcache.Open(filepath.Join(boot.ResolveCacheDir(cfg), idcache.FileName))
			if err != nil {
				return err
			}
			return listCache(cmd, cache, only)
		},
	}
	cmd.Flags().StringVar(&kindFilter, "kind", "", "only list `audio` or `video` entries")
	return cmd
}

func listCache(cmd *cobra.Command, cache *idcache.Cache, only *media.Kind) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tURI\tFILE ID")
	for _, entry := range cache.Snapshot() {
		if only != nil && entry.Kind != *only {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Kind, entry.URI, entry.ID)
	}
	return w.Flush()
}
