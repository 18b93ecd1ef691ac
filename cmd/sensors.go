package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/emberwatch/burnsight/internal/sensor"
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "List the supported sensors",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := sensor.DefaultCatalog()
		for id, spec := range cfg.Sensors {
			spec.ID = id
			catalog[id] = spec
		}
		for _, id := range catalog.IDs() {
			spec := catalog[id]
			color.Cyan("%s", id)
			fmt.Printf("  collection: %s\n", spec.Collection)
			fmt.Printf("  resolution: %.0f m\n", spec.Resolution)
			for _, role := range []sensor.Role{sensor.RoleNIR, sensor.RoleRed, sensor.RoleGreen, sensor.RoleSWIR2, sensor.RoleQA} {
				if name, ok := spec.BandName(role); ok {
					fmt.Printf("  %-6s -> %s\n", role, name)
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sensorsCmd)
}
