package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quiz-ledger-service/internal/config"
	"quiz-ledger-service/internal/domain"
)

// NewLeaderboardCmd prints the ranked leaderboard of one quiz.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		quizID  string
		asJSON  bool
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard for a quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.Context(), cmd.OutOrStdout(), cfg, quizID, asJSON, summary)
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&summary, "summary", false, "print the mentor summary line too")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}

func printLeaderboard(ctx context.Context, out io.Writer, cfg config.Config, quizID string, asJSON, withSummary bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := wire(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()

	lb, err := rt.services.Leaderboards.Leaderboard(ctx, quizID)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(lb)
	}
	writeTable(out, lb)

	if withSummary {
		s, err := rt.services.Leaderboards.Summary(ctx, quizID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s: %d students, %d attempts, average best %.2f/%d\n",
			s.Subject, s.TotalStudents, s.TotalAttempts, s.AverageBestScore, lb.TotalPossible)
	}
	return nil
}

func writeTable(out io.Writer, lb domain.Leaderboard) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTUDENT\tBEST\tATTEMPT\tATTEMPTS\tAVG\tCOMPLETION")
	for _, r := range lb.Rows {
		fmt.Fprintf(tw, "%d\t%s %s\t%d/%d\t#%d\t%d\t%.2f\t%.0f%%\n",
			r.Rank, r.FirstName, r.LastName, r.BestScore, lb.TotalPossible,
			r.BestAttemptNumber, r.TotalAttempts, r.AverageScore, r.CompletionRate)
	}
	_ = tw.Flush()
	if lb.Excluded > 0 {
		fmt.Fprintf(out, "(%d unreadable attempt records skipped)\n", lb.Excluded)
	}
}
