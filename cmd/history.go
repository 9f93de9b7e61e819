package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spigell/interviewd/internal/store"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List archived evaluations or print one of them",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		history(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "number of evaluations to list")
}

func history(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	log, config := setup(false)

	path := strings.TrimSpace(config.Output.Database)
	if path == "" {
		log.Fatal("opening the archive", zap.Error(errNoArchive))
	}

	archive, err := store.Open(path)
	if err != nil {
		log.Fatal("opening the archive", zap.Error(err))
	}
	defer archive.Close()

	if len(args) == 1 {
		rec, err := archive.Get(ctx, args[0])
		if err != nil {
			log.Fatal("getting the evaluation", zap.String("session_id", args[0]), zap.Error(err))
		}
		fmt.Println(string(rec.Detailed))
		return
	}

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := archive.List(ctx, limit)
	if err != nil {
		log.Fatal("listing evaluations", zap.Error(err))
	}

	if len(records) == 0 {
		log.Info("no archived evaluations", zap.String("database", path))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPLETED\tCANDIDATE\tROLE\tOVERALL\tRECOMMENDATION\tSESSION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%s\n",
			r.CompletedAt.Format("2006-01-02 15:04"), r.Candidate, r.Role, r.Overall, r.Recommendation, r.SessionID)
	}
	w.Flush()
}
