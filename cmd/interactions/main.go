// ABOUTME: CLI entry point for streaming Gemini interactions
// ABOUTME: Loads config, creates or reattaches a stream, and renders it headless or in the TUI

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	// termfix presets the terminal background for lipgloss.
	_ "github.com/mauromedda/genai-go/internal/termfix"

	"go.opentelemetry.io/otel"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/mauromedda/genai-go/internal/config"
	genlog "github.com/mauromedda/genai-go/internal/log"
	"github.com/mauromedda/genai-go/internal/render"
	"github.com/mauromedda/genai-go/internal/session"
	"github.com/mauromedda/genai-go/internal/tui"
	"github.com/mauromedda/genai-go/pkg/interactions"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const outputTUI = "tui"

// env is the process surface run depends on.
type env struct {
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	stdinTTY  bool
	stdoutTTY bool
	cwd       string
	journal   *session.Journal
}

// reportedError marks an error the output formatter already printed.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func main() {
	args, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if args.version {
		fmt.Printf("interactions %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: getting working directory: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, args, env{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdinTTY:  term.IsTerminal(int(os.Stdin.Fd())),
		stdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
		cwd:       cwd,
		journal:   session.OpenDefault(),
	})
	stop()

	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run performs the full initialization sequence and renders one stream.
func run(ctx context.Context, args cliArgs, e env) error {
	settings, err := config.Load(e.cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := applyLogLevel(settings.LogLevel, args.verbose); err != nil {
		return err
	}

	output, err := resolveOutput(firstNonEmpty(args.output, settings.Output), e.stdoutTTY)
	if err != nil {
		return err
	}

	client, err := newClient(settings, args)
	if err != nil {
		return err
	}

	var stream *interactions.Stream
	if args.resume != "" {
		id, last, rerr := resolveResume(args, e.journal)
		if rerr != nil {
			return rerr
		}
		stream, err = client.GetStream(ctx, id, &interactions.GetStreamParams{LastEventID: last})
	} else {
		prompt, perr := readPrompt(args.prompt, e.stdin, e.stdinTTY)
		if perr != nil {
			return perr
		}
		params, perr := buildParams(settings, args, prompt)
		if perr != nil {
			return perr
		}
		stream, err = client.Create(ctx, params)
	}
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}

	src := newReconnector(ctx, client, stream, args.reconnects)
	defer src.Close()

	if output != outputTUI {
		f := render.New(render.Format(output), e.stdout, e.stderr, render.Options{Thoughts: args.thoughts})
		err := runHeadless(src, f)
		recordOutcome(e.journal, src, err != nil, err)
		return err
	}

	m, err := tui.Run(ctx, src, tui.Options{Output: e.stdout, Thoughts: args.thoughts})
	if err != nil {
		return err
	}
	recordOutcome(e.journal, src, m.Cancelled() || m.Err() != nil, m.Err())
	if err := m.Err(); err != nil {
		if hint := render.ResumeHint(src.Cursor()); hint != "" && errors.Is(err, interactions.ErrIncomplete) {
			fmt.Fprintf(e.stderr, "resume with: %s\n", hint)
		}
		return reportedError{err: err}
	}
	return nil
}

const resumeLast = "last"

// resolveResume maps -resume to an interaction id and replay point. The
// special id "last" picks the latest interrupted interaction from the journal.
func resolveResume(args cliArgs, j *session.Journal) (id, lastEventID string, err error) {
	if args.resume != resumeLast {
		return args.resume, args.lastEventID, nil
	}
	if j == nil {
		return "", "", errors.New("-resume last: no journal available")
	}
	d, ok, err := j.LastInterrupted()
	if err != nil {
		return "", "", fmt.Errorf("-resume last: %w", err)
	}
	if !ok {
		return "", "", fmt.Errorf("-resume last: no interrupted interaction in %s", j.Path())
	}
	return d.InteractionID, firstNonEmpty(args.lastEventID, d.LastEventID), nil
}

// recordOutcome journals where the stream stopped so a later run can resume it.
func recordOutcome(j *session.Journal, src *reconnector, interrupted bool, streamErr error) {
	if j == nil {
		return
	}
	pos := src.Cursor()
	if pos.InteractionID == "" {
		return
	}
	data := session.CursorData{Position: pos}
	if final := src.Interaction(); final != nil {
		data.Model = firstNonEmpty(final.Model, final.Agent)
	}
	typ := session.RecordCompleted
	if interrupted {
		typ = session.RecordInterrupted
		if streamErr != nil {
			data.Error = streamErr.Error()
		}
	}
	if err := j.Append(typ, data); err != nil {
		genlog.Warn("journal: %v", err)
	}
}

// eventSource is the part of a stream the headless loop needs.
type eventSource interface {
	Recv() (interactions.Event, error)
	Interaction() *interactions.Interaction
	Cursor() interactions.Position
}

// runHeadless feeds every event to f until the stream ends.
func runHeadless(src eventSource, f render.Formatter) error {
	for {
		ev, err := src.Recv()
		if err != nil {
			if ferr := f.Finish(src.Interaction(), src.Cursor(), err); ferr != nil {
				return fmt.Errorf("writing output: %w", ferr)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return reportedError{err: err}
		}
		if err := f.Event(ev); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
}

func newClient(s *config.Settings, args cliArgs) (*interactions.Client, error) {
	baseURL := firstNonEmpty(args.baseURL, s.BaseURL)
	apiKey := config.ResolveAPIKey(s)
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("no API key: set api_key in the config file, GEMINI_API_KEY, or GOOGLE_API_KEY")
	}

	idle := args.idleTimeout
	if idle == 0 {
		d, err := s.Idle()
		if err != nil {
			return nil, err
		}
		idle = d
	}

	opts := []interactions.Option{
		interactions.WithAPIKey(apiKey),
		interactions.WithIdleTimeout(idle),
		interactions.WithTracer(otel.Tracer("github.com/mauromedda/genai-go/cmd/interactions")),
	}
	if baseURL != "" {
		opts = append(opts, interactions.WithBaseURL(baseURL))
	}
	if v := firstNonEmpty(args.apiVersion, s.APIVersion); v != "" {
		opts = append(opts, interactions.WithAPIVersion(v))
	}
	if s.RateLimit > 0 {
		opts = append(opts, interactions.WithRateLimit(rate.Limit(s.RateLimit), 1))
	}
	for k, v := range s.Headers {
		opts = append(opts, interactions.WithHeader(k, v))
	}
	return interactions.NewClient(opts...), nil
}

// buildParams merges flags over settings into a create request.
func buildParams(s *config.Settings, args cliArgs, prompt string) (*interactions.CreateParams, error) {
	modelSpec, agent := s.Model, s.Agent
	switch {
	case args.model != "":
		modelSpec, agent = args.model, ""
	case args.agent != "":
		modelSpec, agent = "", args.agent
	}

	p := &interactions.CreateParams{
		Input:                 prompt,
		SystemInstruction:     firstNonEmpty(args.system, s.SystemInstruction),
		PreviousInteractionID: args.previous,
		Background:            args.background,
	}

	var model *interactions.Model
	thinking := args.thinking
	if agent != "" {
		p.Agent = agent
		p.Background = true
	} else {
		id, level := config.ParseModelSpec(modelSpec)
		m, err := config.ResolveModel(id)
		if err != nil {
			return nil, err
		}
		model = m
		if m.Agent {
			p.Agent = m.ID
			p.Background = true
		} else {
			p.Model = m.ID
		}
		thinking = firstNonEmpty(thinking, level)
	}
	thinking = firstNonEmpty(thinking, s.ThinkingLevel)

	if thinking != "" {
		if _, lvl := config.ParseModelSpec("x:" + thinking); lvl == "" {
			return nil, fmt.Errorf("invalid thinking level %q (want minimal, low, medium, or high)", thinking)
		}
		if model != nil && !model.SupportsThinking {
			genlog.Warn("model %s does not document thinking support; sending thinking_level anyway", model.ID)
		}
	}

	maxTokens := args.maxTokens
	if maxTokens == 0 {
		maxTokens = s.MaxOutputTokens
	}
	if model != nil && model.MaxOutputTokens > 0 && maxTokens > model.MaxOutputTokens {
		return nil, fmt.Errorf("max output tokens %d exceeds %s limit of %d", maxTokens, model.ID, model.MaxOutputTokens)
	}

	temp := args.temperature
	if temp == nil {
		temp = s.Temperature
	}

	if temp != nil || maxTokens > 0 || thinking != "" {
		p.GenerationConfig = &interactions.GenerationConfig{
			Temperature:     temp,
			MaxOutputTokens: maxTokens,
			ThinkingLevel:   strings.ToLower(thinking),
		}
	}
	return p, nil
}

// readPrompt joins positional arguments, falling back to piped stdin.
func readPrompt(argv []string, stdin io.Reader, stdinTTY bool) (string, error) {
	prompt := strings.TrimSpace(strings.Join(argv, " "))
	if prompt == "" && !stdinTTY && stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", errors.New("no prompt: pass it as arguments or on stdin")
	}
	return prompt, nil
}

// resolveOutput picks the output mode; an empty name means tui on a
// terminal and text otherwise.
func resolveOutput(name string, stdoutTTY bool) (string, error) {
	switch name {
	case "":
		if stdoutTTY {
			return outputTUI, nil
		}
		return string(render.FormatText), nil
	case outputTUI:
		return outputTUI, nil
	}
	f, err := render.ParseFormat(name)
	return string(f), err
}

func applyLogLevel(name string, verbose bool) error {
	if verbose {
		genlog.SetLevel(genlog.LevelDebug)
		return nil
	}
	if name == "" {
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	genlog.SetLevel(lvl)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
