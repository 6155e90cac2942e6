package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/runlog"
	"github.com/kajovo/cascade/internal/supervisor"
)

var (
	runMode        string
	runProject     string
	runModel       string
	runPrompt      string
	runInputRoot   string
	runOutputRoot  string
	runVersioning  bool
	runBatchPaths  []string
	runTemperature float64

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute a single GENERATE/MODIFY/QA/QFILE/C request to completion",
		Run:   runRunCommand,
	}
)

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "GENERATE|MODIFY|QA|QFILE|C (required)")
	runCmd.Flags().StringVar(&runProject, "project", "default", "project label, used for ledger grouping")
	runCmd.Flags().StringVar(&runModel, "model", "", "model name (required)")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "prompt text")
	runCmd.Flags().StringVar(&runInputRoot, "input", "", "input root (MODIFY only)")
	runCmd.Flags().StringVar(&runOutputRoot, "output", "", "output root")
	runCmd.Flags().BoolVar(&runVersioning, "versioning", false, "snapshot output root before writing")
	runCmd.Flags().StringSliceVar(&runBatchPaths, "path", nil, "target path(s) for C mode (repeatable)")
	runCmd.Flags().Float64Var(&runTemperature, "temperature", 0.2, "sampling temperature")
	runCmd.MarkFlagRequired("mode")
	runCmd.MarkFlagRequired("model")
}

func runRunCommand(cmd *cobra.Command, args []string) {
	d, err := buildDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	if runPrompt == "" {
		runPrompt = readPromptFromStdin()
	}

	req := model.RunRequest{
		Mode:           model.Mode(strings.ToUpper(runMode)),
		Project:        runProject,
		Model:          runModel,
		Prompt:         runPrompt,
		InputRoot:      runInputRoot,
		OutputRoot:     runOutputRoot,
		Versioning:     runVersioning,
		DiagnosticsIn:  runBatchPaths,
		Temperature:    runTemperature,
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	paths, err := runlog.NewPaths(d.Config.LogDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create run log dirs: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "cancelling...")
		cancel()
	}()

	handle := d.Supervisor.Start(ctx, runID, func(runCtx context.Context, h *supervisor.Handle) (model.RunState, error) {
		return d.Engine.Execute(runCtx, runID, req, h, paths)
	})
	<-handle.Done()

	state := handle.State()
	out, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(out))

	if handle.Err() != nil {
		os.Exit(1)
	}
}

// readPromptFromStdin reads a --prompt-less invocation's prompt from stdin,
// showing an interactive cue only when stdin is actually a terminal rather
// than a pipe.
func readPromptFromStdin() string {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		fmt.Fprint(os.Stderr, "prompt> ")
	}
	scanner := bufio.NewScanner(os.Stdin)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return strings.Join(lines, "\n")
}
