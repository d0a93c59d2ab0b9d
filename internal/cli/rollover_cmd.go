package cli

import (
	"fmt"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/cli/formatter"
	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/service"
	"github.com/spf13/cobra"
)

func newRolloverCmd(rt *runtime) *cobra.Command {
	var chatID int64
	var date string

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Carry unfinished checklist items into today's note now",
		Long: "Runs one rollover pass. Without --chat every registered chat whose\n" +
			"rollover is behind is processed; with --chat that chat is rolled over\n" +
			"regardless of its cursor. Carried items are never duplicated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			now := a.LocalNow()
			if date != "" {
				d, err := domain.ParseDate(date)
				if err != nil {
					return err
				}
				now = middayOf(d, a.Location)
			}

			var report *service.RolloverReport
			if cmd.Flags().Changed("chat") {
				res, err := a.Rollover.RolloverChat(cmd.Context(), chatID, now)
				if err != nil {
					return err
				}
				report = &service.RolloverReport{Today: domain.DateOf(now), Chats: []service.ChatRolloverResult{*res}}
			} else {
				report, err = a.Rollover.Run(cmd.Context(), now)
				if err != nil {
					return err
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRolloverReport(report))
			if n := report.Failed(); n > 0 {
				return fmt.Errorf("rollover failed for %d chat(s)", n)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat", 0, "Roll over a single chat")
	cmd.Flags().StringVar(&date, "date", "", "Treat this date (YYYY-MM-DD) as today")

	return cmd
}

// middayOf returns noon of d in loc, safely inside the day across DST shifts.
func middayOf(d domain.Date, loc *time.Location) time.Time {
	t := d.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
}
