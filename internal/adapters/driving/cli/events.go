package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the event catalog",
	Long:  `List, inspect, and summarise stored reputation events.`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events matching filters",
	RunE:  runEventsList,
}

var eventsGetCmd = &cobra.Command{
	Use:   "get [event-id]",
	Short: "Show one event in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsGet,
}

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the stored catalog",
	RunE:  runEventsStats,
}

// Filter flags for the list command.
var (
	eventsCategory    string
	eventsInstitution string
	eventsFrom        string
	eventsTo          string
	eventsLimit       int
)

func init() {
	eventsListCmd.Flags().StringVarP(&eventsCategory, "category", "c", "", "Filter by category")
	eventsListCmd.Flags().StringVarP(&eventsInstitution, "institution", "i", "", "Filter by institution key")
	eventsListCmd.Flags().StringVar(&eventsFrom, "from", "", "Earliest event date (2006-01-02)")
	eventsListCmd.Flags().StringVar(&eventsTo, "to", "", "Latest event date (2006-01-02)")
	eventsListCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Maximum events to list")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsGetCmd)
	eventsCmd.AddCommand(eventsStatsCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsList(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	query, err := buildEventQuery()
	if err != nil {
		return err
	}

	events, err := catalogService.Query(context.Background(), query)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}

	if len(events) == 0 {
		cmd.Println("No events found.")
		return nil
	}

	for i := range events {
		printEventSummary(cmd, &events[i])
		cmd.Println()
	}
	cmd.Printf("Total: %d events\n", len(events))
	return nil
}

func runEventsGet(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	event, err := catalogService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}

	printEventSummary(cmd, event)
	cmd.Printf("    Summary: %s\n", event.Summary)
	cmd.Printf("    Confidence: %s\n", event.Confidence())

	if len(event.Amounts) > 0 {
		cmd.Println("    Amounts:")
		for _, kind := range []domain.AmountKind{domain.AmountPenalty, domain.AmountSettlement, domain.AmountCustomersAffected} {
			amt, ok := event.Amounts[kind]
			if !ok {
				continue
			}
			if amt.Currency != "" {
				cmd.Printf("      %s: $%d (from %s)\n", kind, amt.Value, amt.Source)
			} else {
				cmd.Printf("      %s: %d (from %s)\n", kind, amt.Value, amt.Source)
			}
		}
	}

	cmd.Println("    Sources:")
	for _, src := range event.Sources {
		line := fmt.Sprintf("      %s", src.SourceName)
		if src.ExternalID != "" {
			line += " " + src.ExternalID
		}
		if src.URL != "" {
			line += " " + src.URL
		}
		cmd.Println(line)
	}
	return nil
}

func runEventsStats(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	stats, err := catalogService.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	cmd.Printf("Events: %d\n", stats.TotalEvents)
	if stats.TotalEvents == 0 {
		return nil
	}

	cmd.Printf("Date range: %s to %s\n", stats.EarliestEventDate, stats.LatestEventDate)
	cmd.Printf("Total penalties: $%d\n", stats.TotalPenaltiesUSD)
	cmd.Printf("Events with unresolved institutions: %d\n", stats.UnresolvedEvents)

	cmd.Println("\nBy category:")
	for _, category := range sortedCategoryKeys(stats.CategoryDistribution) {
		cmd.Printf("  %-22s %d\n", category, stats.CategoryDistribution[category])
	}

	cmd.Println("\nBy confidence:")
	for _, level := range []domain.Confidence{domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow} {
		if n, ok := stats.ConfidenceBreakdown[level]; ok {
			cmd.Printf("  %-22s %d\n", level, n)
		}
	}
	return nil
}

func buildEventQuery() (driven.EventQuery, error) {
	query := driven.EventQuery{
		InstitutionKey: eventsInstitution,
		Limit:          eventsLimit,
	}

	if eventsCategory != "" {
		category := domain.Category(eventsCategory)
		if !category.Valid() {
			return driven.EventQuery{}, fmt.Errorf("unknown category %q", eventsCategory)
		}
		query.Categories = []domain.Category{category}
	}

	if eventsFrom != "" {
		from, err := time.Parse("2006-01-02", eventsFrom)
		if err != nil {
			return driven.EventQuery{}, fmt.Errorf("invalid --from date %q", eventsFrom)
		}
		query.From = from
	}
	if eventsTo != "" {
		to, err := time.Parse("2006-01-02", eventsTo)
		if err != nil {
			return driven.EventQuery{}, fmt.Errorf("invalid --to date %q", eventsTo)
		}
		query.To = to
	}
	return query, nil
}

func printEventSummary(cmd *cobra.Command, event *domain.Event) {
	cmd.Printf("  %s\n", event.ID)
	cmd.Printf("    Date: %s  Materiality: %d/5\n", event.EventDate.Format("2006-01-02"), event.MaterialityScore)
	cmd.Printf("    Title: %s\n", event.Title)
	cmd.Printf("    Institutions: %s\n", formatInstitutions(event.Institutions))
	cmd.Printf("    Categories: %s\n", formatCategories(event.Categories))
}

func formatInstitutions(refs []domain.InstitutionRef) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = fmt.Sprintf("%s (%s)", ref.Name, ref.Key)
		if ref.Unresolved {
			parts[i] += " [unresolved]"
		}
	}
	return strings.Join(parts, ", ")
}

func formatCategories(categories []domain.Category) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func sortedCategoryKeys(m map[domain.Category]int) []domain.Category {
	keys := make([]domain.Category, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
