package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x6d61/sqlif/internal/session"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scan runs",
		Long: `History reads the run database given by --session (or session.path in
the config file) and lists past runs, newest first.`,
		Args: cobra.NoArgs,
		RunE: runHistoryList,
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than --older-than",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPrune,
	}
	prune.Flags().Duration("older-than", 30*24*time.Hour, "Age above which runs are deleted")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show the findings of one run",
			Args:  cobra.ExactArgs(1),
			RunE:  runHistoryShow,
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one run",
			Args:  cobra.ExactArgs(1),
			RunE:  runHistoryDelete,
		},
		prune,
	)
	return cmd
}

// openStore opens the run database named by --session or the config file.
func openStore(cmd *cobra.Command) (*session.SQLiteStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Session.Path == "" {
		return nil, fmt.Errorf("no session database (use --session)")
	}
	return session.NewSQLiteStore(cfg.Session.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFINISHED\tTARGETS\tFINDINGS\tQUERY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.FinishedAt.Local().Format(time.DateTime), r.Targets, r.Findings, r.Query)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.LoadByID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", args[0])
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Duration: %.1fs\n", run.FinishedAt.Sub(run.StartedAt).Seconds())
	if run.Query != "" {
		fmt.Fprintf(w, "Query:    %s (%s)\n", run.Query, run.Engine)
	}
	fmt.Fprintf(w, "Targets:  %d\n", len(run.Targets))
	fmt.Fprintf(w, "Payloads: %d (%d failed)\n", run.Payloads, run.Failed)
	fmt.Fprintf(w, "Findings: %d\n", len(run.Findings))
	for _, f := range run.Findings {
		fmt.Fprintf(w, "\n  [%s] %s %s\n", f.DBMS, f.Method, f.URL)
		fmt.Fprintf(w, "  parameter %q, injection %q\n", f.Parameter, f.Injection)
		if f.Data != "" {
			fmt.Fprintf(w, "  data: %s\n", f.Data)
		}
	}
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	maxAge, _ := cmd.Flags().GetDuration("older-than")
	n, err := store.Cleanup(cmd.Context(), maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", n)
	return nil
}
