package cli

import (
	"fmt"

	"github.com/alexanderramin/trilium-bot/internal/cli/formatter"
	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/spf13/cobra"
)

func newChecklistCmd(rt *runtime) *cobra.Command {
	var chatID int64
	var date string

	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Print the checklist of a day note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			day := domain.DateOf(a.LocalNow())
			if date != "" {
				if day, err = domain.ParseDate(date); err != nil {
					return err
				}
			}

			c, err := a.Store.Peek(cmd.Context(), chatID, day)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatChecklist(day, c))
			return nil
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat", 0, "Chat whose day note to read (required)")
	cmd.Flags().StringVar(&date, "date", "", "Day to read (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("chat")

	return cmd
}
