package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-chat statistics",
	Long:  `List archived chats with message, outgoing and media counts, most recently active first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		summaries, err := st.ChatSummaries(statsLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No chats archived yet. Run \"wachat sync-full\" to start.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAT\tTYPE\tMESSAGES\tSENT\tMEDIA\tLAST ACTIVITY")
		for _, s := range summaries {
			last := "-"
			if s.LastActivity.Valid {
				last = s.LastActivity.String
			}
			name := s.DisplayName
			if s.Archived {
				name += " (archived)"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				name, s.Type, s.MessageCount, s.OutgoingCount, s.MediaCount, last)
		}
		return w.Flush()
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 0, "max chats to list (0 = all)")
	rootCmd.AddCommand(statsCmd)
}
