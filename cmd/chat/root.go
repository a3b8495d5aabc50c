package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"site-assistant/internal/assistant"
)

type chatOptions struct {
	pageURL       string
	endpoint      string
	contextText   string
	skipProbe     bool
	retryInterval time.Duration
	tick          time.Duration
	markdown      bool
	verbose       bool
}

func newRootCmd() *cobra.Command {
	opts := chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the site assistant from a terminal",
		Long: "chat resolves the assistant endpoint the way the website widget does, waits for it\n" +
			"to answer a readiness probe, and reveals every reply character by character.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.pageURL, "page-url", "http://localhost:3000/", "URL of the page hosting the widget; decides local or deployed endpoint")
	f.StringVar(&opts.endpoint, "endpoint", "", "call this endpoint instead of resolving one from --page-url")
	f.StringVar(&opts.contextText, "context", "", "extra context appended to the system prompt")
	f.BoolVar(&opts.skipProbe, "skip-probe", false, "assume the endpoint is ready instead of probing it")
	f.DurationVar(&opts.retryInterval, "retry-interval", assistant.DefaultRetryInterval, "delay between readiness probes")
	f.DurationVar(&opts.tick, "tick", assistant.DefaultTick, "delay between revealed characters")
	f.BoolVar(&opts.markdown, "markdown", false, "render replies as markdown before revealing them")
	f.BoolVar(&opts.verbose, "verbose", false, "log debug output to stderr")

	cmd.AddCommand(newAuditCmd())
	return cmd
}

func runChat(ctx context.Context, opts chatOptions, in io.Reader, out, errOut io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	ep, err := resolveEndpoint(opts)
	if err != nil {
		return err
	}
	logger.Info("endpoint resolved", "mode", ep.Mode, "url", ep.URL)

	client, err := assistant.NewHTTPClient(ep)
	if err != nil {
		return err
	}
	gateOpts := []assistant.GateOption{
		assistant.WithRetryInterval(opts.retryInterval),
		assistant.WithGateLogger(logger),
	}
	if opts.skipProbe {
		gateOpts = append(gateOpts, assistant.WithoutProbe())
	}
	gate, err := assistant.NewGate(client, client, gateOpts...)
	if err != nil {
		return err
	}
	defer gate.Close()
	gate.Start(ctx)

	streamer := assistant.NewStreamer(assistant.WithTick(opts.tick), assistant.WithStreamLogger(logger))
	var sessionOpts []assistant.SessionOption
	if opts.markdown {
		sessionOpts = append(sessionOpts, assistant.WithFormatter(assistant.Markdown))
	}
	session, err := assistant.NewSession(gate, streamer, opts.contextText, sessionOpts...)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Connected to %s (%s). Type a message, Ctrl-D to quit.\n", ep.URL, ep.Mode)
	lines := readLines(ctx, in)

	for {
		_, _ = fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(out)
				return nil
			}
			line = l
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if gate.State() != assistant.StateReady {
			_, _ = fmt.Fprintln(out, "(waiting for the assistant to come online...)")
		}

		target := newTerminalTarget(out, isTerminal(out))
		_, stream, err := session.Ask(ctx, line, target)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				_, _ = fmt.Fprintln(out)
				return nil
			}
			target.Finish()
			continue
		}
		if !stream.Wait(ctx.Done()) {
			stream.Stop()
			_, _ = fmt.Fprintln(out)
			return nil
		}
		target.Finish()
	}
}

// readLines scans in on its own goroutine. The channel is closed at EOF or
// once ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func resolveEndpoint(opts chatOptions) (assistant.Endpoint, error) {
	if opts.endpoint != "" {
		loc, err := assistant.ParseLocation(opts.endpoint)
		if err != nil {
			return assistant.Endpoint{}, err
		}
		mode := assistant.ModeDeployed
		if loc.IsLocal() {
			mode = assistant.ModeLocal
		}
		return assistant.Endpoint{Mode: mode, URL: opts.endpoint}, nil
	}
	return assistant.ResolvePage(opts.pageURL, assistant.DefaultEndpoints())
}
