package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SEARO1/Hand-Track/internal/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id]",
	Short: "List journal sessions, or show the gestures of one session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.New(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()

		if len(args) == 1 {
			return printSession(cmd.OutOrStdout(), st, args[0])
		}
		return printSessions(cmd.OutOrStdout(), st, sessionsLimit)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "number of sessions to list (0 lists all)")
}

func printSessions(w io.Writer, st *store.Store, limit int) error {
	sessions, err := st.Sessions().List(limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tFRAMES\tSET\tSOURCE")
	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.StartedAt.Local().Format(time.DateTime), duration, s.Frames, s.GestureSet, s.Source)
	}
	return tw.Flush()
}

func printSession(w io.Writer, st *store.Store, id string) error {
	sess, err := st.Sessions().GetByID(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	counts, err := st.Events().CountByLabel(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Session %s (%s, %d frames)\n\n", sess.ID, sess.Source, sess.Frames)

	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GESTURE\tCHANGES")
	for _, l := range labels {
		fmt.Fprintf(tw, "%s\t%d\n", l, counts[l])
	}
	return tw.Flush()
}
