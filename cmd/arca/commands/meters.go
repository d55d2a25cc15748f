package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/pkg/config"
)

// metersCmd represents the meters command
var metersCmd = &cobra.Command{
	Use:   "meters",
	Short: "Show the meter taxonomy",
	Long: `Loads and validates the meter taxonomy, then prints the catalog.

Uses METERS_PATH when set, the builtin taxonomy otherwise. A taxonomy
file that fails validation makes this command fail, so it doubles as a
check before deploying an edited file.

Example:
  go run ./cmd/arca meters
  METERS_PATH=config/meters.yaml go run ./cmd/arca meters`,
	RunE: runMeters,
}

func init() {
	rootCmd.AddCommand(metersCmd)
}

func runMeters(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, hash, err := meters.LoadOrDefault(cfg.MetersPath)
	if err != nil {
		return fmt.Errorf("load meter taxonomy: %w", err)
	}

	source := "builtin"
	if cfg.MetersPath != "" {
		source = cfg.MetersPath
	}

	PrintHeader("Meter Taxonomy")
	fmt.Printf("  Source : %s\n", source)
	fmt.Printf("  Hash   : %s\n", hash[:12])
	fmt.Printf("  Meters : %d\n", len(registry.All()))

	for _, groupID := range meters.GroupIDs {
		fmt.Println()
		fmt.Printf("%s\n", strings.ToUpper(string(groupID)))
		PrintSeparator()
		for _, def := range registry.Group(groupID) {
			fmt.Printf("  %-12s tier %d   governor %-8s  weight %.1f\n",
				def.ID, def.Tier, def.Governor, def.Weight)
		}
	}
	fmt.Println()

	return nil
}
