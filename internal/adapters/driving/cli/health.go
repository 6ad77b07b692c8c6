package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check source connector health",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if collectorService == nil {
		return errors.New("collector service not configured")
	}

	statuses, err := collectorService.HealthCheck(context.Background())
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	unhealthy := 0
	for _, name := range names {
		status := statuses[name]
		if status.Healthy {
			cmd.Printf("  %-12s ok\n", name)
			continue
		}
		unhealthy++
		cmd.Printf("  %-12s FAIL: %s\n", name, status.Message)
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d connectors unhealthy", unhealthy, len(statuses))
	}
	cmd.Printf("All %d connectors healthy.\n", len(statuses))
	return nil
}
