package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/orchestrator"
	"github.com/mf-advisor-core/server/internal/agent/subagents"
	errx "github.com/mf-advisor-core/server/internal/core/error"
)

var summarySections = []model.Section{
	model.SectionUserProfile,
	model.SectionInvestorClassification,
	model.SectionInvestmentGoal,
	model.SectionSelectedFund,
	model.SectionSIPCalculatorOutput,
	model.SectionInvestmentStatus,
}

func newChatCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the advisor in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return chat(ctx, a.advisor, userID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli-user", "user id the session belongs to")
	return cmd
}

func chat(ctx context.Context, o *orchestrator.Orchestrator, userID string, out io.Writer) error {
	started, err := o.Start(ctx, userID)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	sessionID := started.SessionID

	fmt.Fprintln(out, "Mutual Fund Advisor. Type 'exit' or 'quit' to leave, '/clear' to start over.")
	if started.Resumed {
		fmt.Fprintf(out, "Resuming session %s.\n", sessionID)
	} else {
		fmt.Fprintf(out, "Advisor: %s\n", started.Greeting)
	}

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "You: ",
		HistoryFile:            filepath.Join(homeDir, ".mf-advisor-history"),
		// Lines are saved after the turn so credentials can be masked first.
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		Stdout:                 out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			printSummary(ctx, o, userID, sessionID, out)
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "/clear":
			res, err := o.Clear(ctx, userID)
			if err != nil {
				fmt.Fprintf(out, "Advisor: %s\n", errx.UserMessage(err))
				continue
			}
			sessionID = res.SessionID
			fmt.Fprintf(out, "Advisor: %s\n", res.Greeting)
			continue
		}

		res, err := o.Send(ctx, userID, sessionID, input)
		if err != nil {
			_ = rl.SaveHistory(subagents.MaskSecrets(input))
			fmt.Fprintf(out, "Advisor: %s\n", errx.UserMessage(err))
			continue
		}
		_ = rl.SaveHistory(res.Message)
		fmt.Fprintf(out, "Advisor: %s\n", res.Reply)
		if res.Terminated {
			fmt.Fprintln(out, "Session complete.")
			return nil
		}
	}

	printSummary(ctx, o, userID, sessionID, out)
	fmt.Fprintln(out, "Goodbye!")
	return nil
}

func printSummary(ctx context.Context, o *orchestrator.Orchestrator, userID, sessionID string, out io.Writer) {
	state, err := o.State(ctx, userID, sessionID)
	if err != nil {
		return
	}
	b, err := json.MarshalIndent(state.View(summarySections...), "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(out, "\nWhere we left off:\n%s\n", b)
}
