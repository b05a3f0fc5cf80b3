package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"fsguard/internal/config"
	"fsguard/internal/database"
	"fsguard/internal/exitcodes"
	"fsguard/internal/output"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	recent     int
	offset     int
	since      string
	stats      bool
	reason     string
	action     string
	pathFilter string
	operation  string
	largest    int
	days       int
	prune      int
	info       bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "fsguard-query",
	Short: "Query the fsguard audit history",
	Example: `  fsguard-query --recent 10            # 10 most recent events
  fsguard-query --recent 10 --offset 10 # the next page
  fsguard-query --since 2026-01-01
  fsguard-query --stats                # statistics for the last 30 days
  fsguard-query --reason protected-name
  fsguard-query --action REJECT
  fsguard-query --path '/srv/data/%'   # SQL LIKE pattern
  fsguard-query --operation <id>       # every event of one operation
  fsguard-query --largest 10
  fsguard-query --prune 90             # drop events older than 90 days
  fsguard-query --info                 # database size and record count`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&dbPath, "db", "", "audit database (default: database_path from the config)")
	f.IntVar(&recent, "recent", 0, "show the N most recent events")
	f.IntVar(&offset, "offset", 0, "skip this many events with --recent")
	f.StringVar(&since, "since", "", "show events since a date (YYYY-MM-DD)")
	f.BoolVar(&stats, "stats", false, "show statistics")
	f.StringVar(&reason, "reason", "", "filter by rejection or skip reason")
	f.StringVar(&action, "action", "", "filter by action (DELETE, MOVE, CLEANUP, PREVIEW, REJECT, ERROR)")
	f.StringVar(&pathFilter, "path", "", "filter by path pattern (SQL LIKE syntax)")
	f.StringVar(&operation, "operation", "", "show every event recorded for one operation ID")
	f.IntVar(&largest, "largest", 0, "show the N largest deletions")
	f.IntVar(&days, "days", 30, "number of days for statistics")
	f.IntVar(&prune, "prune", 0, "delete events older than N days and vacuum")
	f.BoolVar(&info, "info", false, "show database statistics")
	f.BoolVar(&jsonOutput, "json", false, "output JSON")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(exitcodes.FromError(err))
	}
}

func run(cmd *cobra.Command, _ []string) error {
	path := dbPath
	if path == "" {
		path = config.Default(config.DefaultPath()).DatabasePath
		if cfg, err := config.Load(config.DefaultPath()); err == nil {
			path = cfg.DatabasePath
		}
	}
	if _, err := os.Stat(path); err != nil {
		return exitcodes.Wrap(exitcodes.InvalidConfig, fmt.Errorf("audit database %s: %w", path, err))
	}

	db, err := database.Open(path)
	if err != nil {
		return fmt.Errorf("open database %s: %w", filepath.Clean(path), err)
	}
	defer db.Close()

	w := cmd.OutOrStdout()
	switch {
	case prune > 0:
		return pruneRecords(w, db, prune)
	case info:
		return showInfo(w, db)
	case stats:
		return showStats(w, db, days)
	case recent > 0 && offset > 0:
		return showPage(w, db, recent, offset)
	case recent > 0:
		return show(w, "", func() ([]database.Operation, error) { return db.GetRecentOperations(recent) })
	case since != "":
		start, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return exitcodes.Wrap(exitcodes.InvalidConfig, fmt.Errorf("--since: %w", err))
		}
		return show(w, "Events since "+since, func() ([]database.Operation, error) {
			return db.GetOperationsByDateRange(start, time.Now())
		})
	case reason != "":
		return show(w, "Events with reason: "+reason, func() ([]database.Operation, error) { return db.GetOperationsByReason(reason) })
	case action != "":
		return show(w, "Events with action: "+action, func() ([]database.Operation, error) { return db.GetOperationsByAction(action) })
	case pathFilter != "":
		return show(w, "Events matching path pattern: "+pathFilter, func() ([]database.Operation, error) { return db.GetOperationsByPath(pathFilter) })
	case operation != "":
		return show(w, "Operation "+operation, func() ([]database.Operation, error) { return db.GetOperation(operation) })
	case largest > 0:
		return show(w, fmt.Sprintf("Largest %d deletions", largest), func() ([]database.Operation, error) { return db.GetLargestDeletions(largest) })
	default:
		return exitcodes.Wrap(exitcodes.InvalidConfig, errors.New("no query given, see --help"))
	}
}

func show(w io.Writer, title string, query func() ([]database.Operation, error)) error {
	records, err := query()
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if jsonOutput {
		return output.JSON(w, records)
	}
	if title != "" {
		fmt.Fprintf(w, "%s\n\n", title)
	}
	printRecords(w, records)
	return nil
}

func showPage(w io.Writer, db *database.OperationDB, limit, skip int) error {
	records, total, err := db.GetRecentOperationsPaginated(limit, skip)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if jsonOutput {
		return output.JSON(w, map[string]any{"total": total, "offset": skip, "events": records})
	}
	fmt.Fprintf(w, "Events %d-%d of %d\n\n", skip+1, skip+len(records), total)
	printRecords(w, records)
	return nil
}

func pruneRecords(w io.Writer, db *database.OperationDB, olderThan int) error {
	n, err := db.DeleteOldRecords(olderThan)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if jsonOutput {
		return output.JSON(w, map[string]int64{"deleted": n})
	}
	fmt.Fprintf(w, "Deleted %d events older than %d days\n", n, olderThan)
	return nil
}

func showInfo(w io.Writer, db *database.OperationDB) error {
	s, err := db.GetDatabaseStats()
	if err != nil {
		return fmt.Errorf("database statistics: %w", err)
	}
	if jsonOutput {
		return output.JSON(w, s)
	}
	pairs := [][2]string{
		{"Records", strconv.FormatInt(s.TotalRecords, 10)},
		{"Size", output.Bytes(s.SizeBytes)},
	}
	if s.TotalRecords > 0 {
		pairs = append(pairs,
			[2]string{"Oldest", s.OldestRecord.Format("2006-01-02 15:04:05")},
			[2]string{"Newest", s.NewestRecord.Format("2006-01-02 15:04:05")},
		)
	}
	output.SimpleTable(w, pairs)
	return nil
}

func showStats(w io.Writer, db *database.OperationDB, days int) error {
	s, err := db.GetStats(days)
	if err != nil {
		return fmt.Errorf("statistics: %w", err)
	}
	if jsonOutput {
		return output.JSON(w, s)
	}

	fmt.Fprintf(w, "Statistics (last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
	output.SimpleTable(w, [][2]string{
		{"Deletions", strconv.Itoa(s.TotalDeletions)},
		{"Moves", strconv.Itoa(s.TotalMoves)},
		{"Rejections", strconv.Itoa(s.TotalRejections)},
		{"Errors", strconv.Itoa(s.TotalErrors)},
		{"Space freed", output.Bytes(s.TotalSpaceFreed)},
	})

	printCounts(w, "By reason", s.ByReason)
	printCounts(w, "By action", s.ByAction)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s:\n", title)
	table := output.NewTableData(title, "Count")
	for _, k := range keys {
		table.AddRow(k, strconv.Itoa(counts[k]))
	}
	output.PrintTable(w, table)
}

func printRecords(w io.Writer, records []database.Operation) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}

	table := output.NewTableData("ID", "Timestamp", "Operation", "Action", "Reason", "Size", "Path")
	for _, r := range records {
		path := r.Path
		if r.Destination != "" {
			path += " -> " + r.Destination
		}
		table.AddRow(
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Operation,
			r.Action,
			r.Reason,
			output.Bytes(r.Size),
			path,
		)
	}
	output.PrintTable(w, table)
}
