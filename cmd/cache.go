package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberwatch/burnsight/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the imagery cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired imagery cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		tiffCache := cache.NewFileCache[[]byte](
			cfg.Cache.Dir,
			time.Duration(cfg.Cache.TTLHours)*time.Hour,
			nil,
		)
		removed, err := tiffCache.Sweep()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired entries from %s\n", removed, cfg.Cache.Dir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheSweepCmd)
	rootCmd.AddCommand(cacheCmd)
}
