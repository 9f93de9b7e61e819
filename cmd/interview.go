package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/interviewd/internal/dialog"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"go.uber.org/zap"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run an interactive interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().StringP("candidate", "c", "", "candidate name (asked interactively when empty)")
	interviewCmd.Flags().StringP("role", "r", "", "target role (asked interactively when empty)")
	interviewCmd.Flags().String("difficulty", "", "starting difficulty: easy, medium or hard")

	viper.BindPFlag("interview.starting-difficulty", interviewCmd.Flags().Lookup("difficulty"))
}

// setup builds the logger and the validated config. Configuration errors are fatal.
func setup(quiet bool) (*zap.Logger, *Config) {
	log, err := logger.Build(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		Quiet: quiet,
	})
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Debug("configuration loaded",
		zap.String("provider", config.AI.Provider),
		zap.String("starting_difficulty", config.Interview.StartingDifficulty),
		zap.Int("max_questions", config.Interview.MaxQuestions),
		zap.String("output_dir", config.Output.Dir),
	)
	return log, config
}

func runInterview(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, config := setup(true)
	log.Info("starting the interviewd", zap.String("version", version))

	c, err := build(ctx, config, log)
	if err != nil {
		log.Fatal("building components", zap.Error(err))
	}
	defer c.Close()

	candidate, err := askIfEmpty(cmd.Flag("candidate").Value.String(), "Your name")
	if err != nil {
		log.Fatal("exiting", zap.Error(err))
	}
	role, err := askIfEmpty(cmd.Flag("role").Value.String(), "Target role")
	if err != nil {
		log.Fatal("exiting", zap.Error(err))
	}

	session, reply := c.orchestrator.Start(ctx, candidate, role)
	show(reply)

	input := promptui.Prompt{Label: "You"}
	for !reply.Complete {
		text, err := input.Run()
		if err != nil {
			if !errors.Is(err, promptui.ErrInterrupt) && !errors.Is(err, promptui.ErrEOF) {
				log.Fatal("reading input", zap.Error(err))
			}
			// Ctrl-C and Ctrl-D end the interview the same way "quit" does.
			text = "quit"
		}

		reply = c.orchestrator.Process(context.WithoutCancel(ctx), session, text)
		show(reply)
	}

	if err := c.persist(context.WithoutCancel(ctx), session); err != nil {
		log.Error("saving the interview", zap.Error(err))
		return
	}
	log.Info("interview finished", zap.String("session_id", session.ID))
}

func askIfEmpty(value, label string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}

	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("must not be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

func show(reply dialog.Reply) {
	fmt.Printf("\n[%s] Interviewer: %s\n\n", strings.ToUpper(string(reply.Stage)), reply.Text)
	if reply.Evaluation != nil {
		printScoreCard(reply.Evaluation)
	}
}

func printScoreCard(card *interview.ScoreCard) {
	fmt.Printf("Overall score: %.1f/5.0 (%s)\n", card.Overall, card.Rating)
	fmt.Printf("Recommendation: %s\n", card.Decision)
	fmt.Printf("  technical %d, communication %d, problem approach %d, collaboration %d\n\n",
		card.Scores.Technical, card.Scores.Communication, card.Scores.ProblemApproach, card.Scores.Collaboration)
}
