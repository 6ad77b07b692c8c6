// Package cli implements the bankwatch command-line interface.
// Commands are thin adapters over the driving ports; services are
// injected at startup via SetServices.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/clearline-labs/bankwatch/internal/core/ports/driving"
	"github.com/clearline-labs/bankwatch/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Injected services. Commands check for nil so the CLI degrades with a
// clear error instead of panicking when wiring is incomplete.
var (
	collectorService driving.Collector
	catalogService   driving.Catalog
	schedulerService driving.Scheduler
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "bankwatch",
	Short: "Track reputation events for US banks",
	Long: `bankwatch collects reputation-damaging events for US banking
institutions from regulatory and media sources, normalises them into a
canonical catalog, and answers queries over it.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
}

// Services bundles the driving ports the commands depend on.
type Services struct {
	Collector driving.Collector
	Catalog   driving.Catalog
	Scheduler driving.Scheduler
}

// SetServices injects the services used by the commands.
// Must be called before Execute.
func SetServices(s Services) {
	collectorService = s.Collector
	catalogService = s.Catalog
	schedulerService = s.Scheduler
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
