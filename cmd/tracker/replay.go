package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nextedit/tracker/internal/config"
	"github.com/nextedit/tracker/internal/diffstats"
	"github.com/nextedit/tracker/internal/events"
	"github.com/nextedit/tracker/internal/sink"
	"github.com/nextedit/tracker/internal/tracker"
)

var (
	replayDBPath     string
	replayConfigPath string
	replayEmitJSON   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [trace-file]",
	Short: "Replay a JSONL lifecycle trace through the tracker",
	Long: `Replay reads one operation per line from a JSONL trace file
("-" for stdin), drives a tracker instance with it, and prints a
summary of the emitted events.

Each line is an object with an "op" field (create, contextLoaded,
loaded, hotStreak, postProcessed, readyToBeRendered, suggested, read,
accepted, rejected, discarded, error, feedback) plus op-specific
fields. The "id" field is a trace-local alias; the tracker mints the
real request IDs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(args[0])
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayDBPath, "db", "", "also persist events into this SQLite database")
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "", "tracker config YAML file (default: environment + defaults)")
	replayCmd.Flags().BoolVar(&replayEmitJSON, "events", false, "write emitted events to stdout as JSONL")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(path string) error {
	var in io.Reader
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open trace: %w", err)
		}
		defer f.Close()
		in = f
	}

	cfg, err := loadReplayConfig()
	if err != nil {
		return err
	}

	memory := sink.NewMemory()
	sinks := []events.Sink{memory}
	if replayEmitJSON {
		sinks = append(sinks, sink.NewJSONL(os.Stdout))
	}

	var db *sink.SQLite
	if replayDBPath != "" {
		db, err = sink.NewSQLite(replayDBPath, cfg.SinkQueueSize)
		if err != nil {
			return fmt.Errorf("failed to open event database: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	trk, err := tracker.New(tracker.Options{
		Config: &cfg,
		Sink:   sink.NewMulti(sinks...),
	})
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	applied, failed, err := replayTrace(trk, in)
	if err != nil {
		return err
	}

	printReplaySummary(memory, applied, failed)
	return nil
}

func loadReplayConfig() (config.Config, error) {
	if replayConfigPath != "" {
		return config.LoadFile(replayConfigPath)
	}
	return config.FromEnv()
}

// traceOp is one line of a replay trace. The ID field is a trace-local
// alias for the request; unknown fields are ignored.
type traceOp struct {
	Op string `json:"op"`
	ID string `json:"id,omitempty"`

	FilePath string                 `json:"filePath,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`

	ContextSummary map[string]interface{} `json:"contextSummary,omitempty"`

	Prompt          string            `json:"prompt,omitempty"`
	Prediction      string            `json:"prediction,omitempty"`
	Source          string            `json:"source,omitempty"`
	IsFuzzyMatch    bool              `json:"isFuzzyMatch,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`

	HotStreakID    string `json:"hotStreakId,omitempty"`
	FullPrediction string `json:"fullPrediction,omitempty"`

	CacheID       string `json:"cacheId,omitempty"`
	CodeToReplace string `json:"codeToReplace,omitempty"`

	InsertText    string   `json:"insertText,omitempty"`
	AddedLines    []string `json:"addedLines,omitempty"`
	RemovedLines  []string `json:"removedLines,omitempty"`
	ModifiedLines []string `json:"modifiedLines,omitempty"`

	Reason  string                 `json:"reason,omitempty"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// replayTrace drives trk with every line of in. Alias IDs map to the
// request IDs the tracker mints. A false return from a phase operation
// is not a replay failure: the tracker already emitted its diagnostic.
func replayTrace(trk *tracker.Tracker, in io.Reader) (applied, failed int, err error) {
	ids := make(map[string]string)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var op traceOp
		if unmarshalErr := json.Unmarshal(raw, &op); unmarshalErr != nil {
			return applied, failed, fmt.Errorf("trace line %d: %w", line, unmarshalErr)
		}
		ok, applyErr := applyTraceOp(trk, ids, op)
		if applyErr != nil {
			return applied, failed, fmt.Errorf("trace line %d: %w", line, applyErr)
		}
		if ok {
			applied++
		} else {
			failed++
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return applied, failed, fmt.Errorf("failed to read trace: %w", scanErr)
	}
	return applied, failed, nil
}

// applyTraceOp applies one operation. The bool reports whether the
// tracker applied it; an error means the trace itself is malformed.
func applyTraceOp(trk *tracker.Tracker, ids map[string]string, op traceOp) (bool, error) {
	requestID := ids[op.ID]

	switch op.Op {
	case "create":
		if op.ID == "" {
			return false, errors.New(`create requires an "id" alias`)
		}
		ids[op.ID] = trk.CreateRequest(tracker.CreateParams{
			FilePath: op.FilePath,
			Payload:  op.Payload,
		})
		return true, nil

	case "contextLoaded":
		return trk.MarkAsContextLoaded(requestID, tracker.ContextLoadedParams{
			ContextSummary: op.ContextSummary,
		}), nil

	case "loaded":
		return trk.MarkAsLoaded(requestID, tracker.LoadedParams{
			Prompt:          op.Prompt,
			Prediction:      op.Prediction,
			Source:          op.Source,
			IsFuzzyMatch:    op.IsFuzzyMatch,
			ResponseHeaders: op.ResponseHeaders,
		}), nil

	case "hotStreak":
		trk.RecordHotStreakLoaded(requestID, op.HotStreakID, tracker.HotStreakChunkParams{
			Prediction:     op.Prediction,
			FullPrediction: op.FullPrediction,
		})
		return true, nil

	case "postProcessed":
		return trk.MarkAsPostProcessed(requestID, tracker.PostProcessedParams{
			CacheID:           op.CacheID,
			HotStreakID:       op.HotStreakID,
			CodeToReplaceData: op.CodeToReplace,
		}), nil

	case "readyToBeRendered":
		params := tracker.ReadyParams{
			Decoration: diffstats.DecorationInfo{
				AddedLines:    op.AddedLines,
				RemovedLines:  op.RemovedLines,
				ModifiedLines: op.ModifiedLines,
			},
			Prediction: op.Prediction,
		}
		if op.InsertText != "" {
			params.Render.InlineCompletionItems = []tracker.InlineCompletionItem{
				{InsertText: op.InsertText},
			}
		}
		return trk.MarkAsReadyToBeRendered(requestID, params), nil

	case "suggested":
		return trk.MarkAsSuggested(requestID) != nil, nil

	case "read":
		return trk.MarkAsRead(requestID), nil

	case "accepted":
		return trk.MarkAsAccepted(requestID, op.Reason), nil

	case "rejected":
		return trk.MarkAsRejected(requestID, op.Reason), nil

	case "discarded":
		return trk.MarkAsDiscarded(requestID, op.Reason, op.Prediction), nil

	case "error":
		if op.Message == "" {
			return false, errors.New(`error requires a "message"`)
		}
		trk.LogError(errors.New(op.Message))
		return true, nil

	case "feedback":
		trk.LogFeedback(op.Data)
		return true, nil

	default:
		return false, fmt.Errorf("unknown op %q", op.Op)
	}
}

func printReplaySummary(memory *sink.Memory, applied, failed int) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(os.Stderr, "\n%s\n\n", cyan("=== Replay Summary ==="))
	fmt.Fprintf(os.Stderr, "  Operations applied:  %s\n", green(fmt.Sprintf("%d", applied)))
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "  Operations rejected: %s\n", red(fmt.Sprintf("%d", failed)))
	} else {
		fmt.Fprintf(os.Stderr, "  Operations rejected: %s\n", gray("0"))
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", yellow("Emitted events:"))
	counts := memory.CountByAction()
	if len(counts) == 0 {
		fmt.Fprintf(os.Stderr, "  %s\n", gray("none"))
		return
	}
	for _, action := range []events.Action{
		events.ActionSuggested,
		events.ActionAccepted,
		events.ActionDiscarded,
		events.ActionError,
		events.ActionFeedback,
		events.ActionInvalidTransition,
	} {
		if n := counts[action]; n > 0 {
			fmt.Fprintf(os.Stderr, "  %-18s %d\n", action, n)
		}
	}
	fmt.Fprintln(os.Stderr)
}
