package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emberwatch/burnsight/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "burnsight",
	Short: "Wildfire burn severity mapping from satellite imagery",
	Long:  "Fetches pre- and post-fire satellite composites, computes spectral index differences, classifies burn severity and aggregates per-class area statistics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func printBanner() {
	banner := figure.NewFigure("BurnSight", "isometric1", true)
	bannercolor.Cyan(banner.String())
	fmt.Println()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
