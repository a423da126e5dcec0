package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"answerd/internal/config"
	"answerd/internal/logging"
)

type queryFlags struct {
	configPath string
	sessionID  string
	jsonOut    bool
	verbose    bool
}

func newQueryCmd() *cobra.Command {
	f := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a single query and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(strings.Join(args, " "), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Config file path (YAML)")
	flags.StringVar(&f.sessionID, "session", "", "Session id to continue a conversation")
	flags.BoolVar(&f.jsonOut, "json", false, "Print the full result as JSON")
	flags.BoolVar(&f.verbose, "verbose", false, "Log pipeline progress to stderr")

	return cmd
}

func runQuery(text string, f *queryFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return exitError(3, "load config: %v", err)
	}

	log := zap.NewNop()
	if f.verbose {
		log, err = logging.New("debug", "console")
		if err != nil {
			return exitError(3, "build logger: %v", err)
		}
		defer log.Sync()
	}

	orch, _, err := buildPipeline(cfg, log)
	if err != nil {
		return exitError(4, "build pipeline: %v", err)
	}

	ans, err := orch.Process(context.Background(), text, f.sessionID)
	if err != nil {
		return exitError(4, "query failed: %v", err)
	}

	if f.jsonOut {
		out := map[string]any{
			"content":            ans.Content,
			"session_id":         ans.SessionID,
			"query_category":     string(ans.Category),
			"iterations_used":    ans.Iterations,
			"degraded":           ans.Degraded,
			"processing_time_ms": ans.Duration.Milliseconds(),
		}
		if ans.Score != nil {
			out["verification_score"] = ans.Score.Overall
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println(ans.Content)
	if ans.Degraded {
		fmt.Fprintln(os.Stderr, "note: answer did not pass verification; returning best attempt")
	}
	return nil
}
