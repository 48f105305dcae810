package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/watch"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Report parse errors and outline sizes as files change",
		Long: `Watch a directory tree and report, for every changed supported file, its
parse-error count and outline size. Changes are batched. Files ignored by
.gitignore or .riceignore are skipped.

With --detach the watcher runs in the background; see "rice-syntax watchers".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detach, _ := cmd.Flags().GetBool("detach")
			delay, _ := cmd.Flags().GetDuration("delay")
			noScan, _ := cmd.Flags().GetBool("no-scan")
			server, _ := cmd.Flags().GetString("server")

			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			if detach {
				pid, err := watch.StartDaemon(root, server)
				if err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started watcher for %s (pid %d)\n", root, pid)
				return nil
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			state := &watch.WatcherState{
				PID:       os.Getpid(),
				Path:      root,
				Server:    server,
				StartedAt: time.Now(),
			}
			if err := watch.SaveState(state); err != nil {
				s.log.Warn("Failed to save watcher state", "error", err)
			}
			defer func() { _ = watch.RemoveState(state.PID) }()

			w, err := watch.NewWatcher(watch.WatcherConfig{
				Path:        root,
				Analyzer:    s.caller,
				BatchDelay:  delay,
				InitialScan: !noScan,
				Logger:      s.log,
				OnBatch: func(b watch.Batch) {
					printBatch(s, b)
					state.Record(b)
					if err := watch.SaveState(state); err != nil {
						s.log.Debug("Failed to update watcher state", "error", err)
					}
				},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = w.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Bool("detach", false, "run the watcher in the background")
	cmd.Flags().Duration("delay", 500*time.Millisecond, "batch debounce delay")
	cmd.Flags().Bool("no-scan", false, "skip the initial scan")
	return cmd
}

func printBatch(s *session, b watch.Batch) {
	if s.format == "json" {
		if err := jsonLine(s.out, b); err != nil {
			s.log.Warn("Failed to write batch", "error", err)
		}
		return
	}
	for _, f := range b.Files {
		switch {
		case f.Removed:
			fmt.Fprintf(s.out, "%s\tremoved\n", f.Path)
		case f.Error != "":
			fmt.Fprintf(s.out, "%s\terror: %s\n", f.Path, f.Error)
		default:
			fmt.Fprintf(s.out, "%s\t%d errors\t%d nodes\n", f.Path, f.ParseErrors, f.OutlineSize)
		}
	}
}

func watchersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchers",
		Short: "Manage background watchers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List running watchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := watch.ListStates()
			if err != nil {
				return err
			}
			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				return jsonLine(cmd.OutOrStdout(), states)
			}
			if len(states) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No watchers running")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PID\tPATH\tFILES\tWITH ERRORS\tLAST SYNC")
			for _, st := range states {
				last := "-"
				if !st.LastSync.IsZero() {
					last = st.LastSync.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", st.PID, st.Path, st.FileCount, st.FilesWithErrors, last)
			}
			return tw.Flush()
		},
	})

	stop := &cobra.Command{
		Use:   "stop [pid]",
		Short: "Stop one watcher, or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all {
				n, err := watch.StopAllDaemons()
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped %d watchers\n", n)
				return err
			}
			if len(args) == 0 {
				return fmt.Errorf("pass a pid or --all")
			}
			var pid int
			if _, err := fmt.Sscanf(args[0], "%d", &pid); err != nil {
				return fmt.Errorf("invalid pid %q", args[0])
			}
			if err := watch.StopDaemon(pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped watcher %d\n", pid)
			return nil
		},
	}
	stop.Flags().Bool("all", false, "stop every watcher")
	cmd.AddCommand(stop)
	return cmd
}
