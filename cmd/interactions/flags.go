// ABOUTME: CLI flag parsing using the stdlib flag package
// ABOUTME: Flags override config file values; remaining arguments form the prompt

package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"
)

type cliArgs struct {
	model       string
	agent       string
	system      string
	previous    string
	thinking    string
	temperature *float64
	maxTokens   int

	output   string
	thoughts bool

	resume      string
	lastEventID string
	reconnects  int

	baseURL     string
	apiVersion  string
	idleTimeout time.Duration

	background bool
	verbose    bool
	version    bool

	prompt []string
}

const defaultReconnects = 3

func parseFlags(argv []string, errOut io.Writer) (cliArgs, error) {
	var args cliArgs

	fs := flag.NewFlagSet("interactions", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprintln(errOut, "usage: interactions [flags] <prompt>")
		fmt.Fprintln(errOut, "       interactions -resume <interaction-id> [-last-event-id <id>]")
		fs.PrintDefaults()
	}

	fs.StringVar(&args.model, "model", "", "Model to use, optionally with a thinking level (e.g. gemini-2.5-pro:high)")
	fs.StringVar(&args.agent, "agent", "", "Agent to run instead of a model (e.g. deep-research-pro-preview-12-2025)")
	fs.StringVar(&args.system, "system", "", "System instruction")
	fs.StringVar(&args.previous, "previous", "", "Continue from a previous interaction id")
	fs.StringVar(&args.thinking, "thinking", "", "Thinking level: minimal, low, medium, high")
	fs.Func("temperature", "Sampling temperature", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		args.temperature = &f
		return nil
	})
	fs.IntVar(&args.maxTokens, "max-tokens", 0, "Maximum output tokens")

	fs.StringVar(&args.output, "output", "", "Output: text, json, stream-json, or tui (default tui on a terminal, else text)")
	fs.BoolVar(&args.thoughts, "thoughts", false, "Show thought summaries")

	fs.StringVar(&args.resume, "resume", "", "Reattach to an interaction id, or \"last\" for the latest interrupted one")
	fs.StringVar(&args.lastEventID, "last-event-id", "", "With -resume, replay only events after this id")
	fs.IntVar(&args.reconnects, "reconnects", defaultReconnects, "Automatic resume attempts after a dropped stream")

	fs.StringVar(&args.baseURL, "base-url", "", "Custom API base URL")
	fs.StringVar(&args.apiVersion, "api-version", "", "API version path segment (default v1beta)")
	fs.DurationVar(&args.idleTimeout, "idle-timeout", 0, "Fail a stream after this long without data (0 disables)")

	fs.BoolVar(&args.background, "background", false, "Run the interaction in the background")
	fs.BoolVar(&args.verbose, "verbose", false, "Debug logging to stderr")
	fs.BoolVar(&args.version, "version", false, "Show version and exit")

	if err := fs.Parse(argv); err != nil {
		return args, err
	}
	args.prompt = fs.Args()

	if args.model != "" && args.agent != "" {
		return args, fmt.Errorf("-model and -agent are mutually exclusive")
	}
	if args.lastEventID != "" && args.resume == "" {
		return args, fmt.Errorf("-last-event-id requires -resume")
	}
	if args.reconnects < 0 {
		return args, fmt.Errorf("-reconnects must not be negative")
	}
	return args, nil
}
