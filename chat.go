package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/abhirockzz/langchaingo-trip-planner/client"
	"github.com/abhirockzz/langchaingo-trip-planner/logging"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/abhirockzz/langchaingo-trip-planner/store"
	"github.com/abhirockzz/langchaingo-trip-planner/terminal"
	"github.com/spf13/cobra"
)

type chatOptions struct {
	serverURL     string
	sessionID     string
	historyDir    string
	itineraryPath string
	logLevel      string

	budget    float64
	pace      string
	interests []string
	mobility  bool
	dietary   []string
}

func chatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running plan server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return chat(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.serverURL, "url", "http://localhost:8080", "Plan server base URL")
	f.StringVar(&opts.sessionID, "session", "", "Session id to resume (default: new session)")
	f.StringVar(&opts.historyDir, "history-dir", "", "Keep the local transcript in this directory")
	f.StringVar(&opts.itineraryPath, "itinerary", "", "JSON file with the current itinerary")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	f.Float64Var(&opts.budget, "budget", 150, "Daily budget")
	f.StringVar(&opts.pace, "pace", string(plan.PaceModerate), "Pace (relaxed, moderate, packed)")
	f.StringSliceVar(&opts.interests, "interests", nil, "Interests, comma separated")
	f.BoolVar(&opts.mobility, "mobility", false, "Prefer step-free, low walking plans")
	f.StringSliceVar(&opts.dietary, "dietary", nil, "Dietary needs, comma separated")

	return cmd
}

func (o chatOptions) preferences() (plan.UserPreferences, error) {
	prefs := plan.UserPreferences{
		Budget:    o.budget,
		Pace:      plan.Pace(o.pace),
		Interests: o.interests,
		Accessibility: plan.Accessibility{
			Mobility: o.mobility,
			Dietary:  o.dietary,
		},
	}
	if prefs.Interests == nil {
		prefs.Interests = []string{}
	}
	if prefs.Accessibility.Dietary == nil {
		prefs.Accessibility.Dietary = []string{}
	}
	if !prefs.Pace.Valid() {
		return prefs, fmt.Errorf("unknown pace %q", o.pace)
	}
	if prefs.Budget < 0 {
		return prefs, fmt.Errorf("budget must not be negative")
	}
	return prefs, nil
}

func loadItinerary(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read itinerary: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("itinerary %s is not valid JSON", path)
	}
	return data, nil
}

func chat(ctx context.Context, opts chatOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	prefs, err := opts.preferences()
	if err != nil {
		return err
	}
	itinerary, err := loadItinerary(opts.itineraryPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, opts.logLevel, "text")
	sessOpts := []client.SessionOption{client.WithSessionLogger(logger)}
	if opts.sessionID != "" {
		sessOpts = append(sessOpts, client.WithSessionID(opts.sessionID))
	}
	if opts.historyDir != "" {
		local, err := store.NewFile(opts.historyDir, logger)
		if err != nil {
			return err
		}
		sessOpts = append(sessOpts, client.WithStore(local))
	}

	sess := client.NewSession(client.New(opts.serverURL, nil), sessOpts...)
	if err := sess.Restore(ctx); err != nil {
		return fmt.Errorf("restore history: %w", err)
	}

	display := terminal.New(os.Stdout)
	display.Welcome(opts.serverURL, sess.ID())

	// Ctrl-C stops the reply in flight; when idle it ends the session.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if sess.Streaming() {
				sess.Stop()
				continue
			}
			fmt.Println()
			os.Exit(0)
		}
	}()

	return repl(ctx, os.Stdin, display, sess, prefs, itinerary)
}

// repl reads one line at a time until EOF or /exit.
func repl(ctx context.Context, in io.Reader, display *terminal.Display, sess *client.Session, prefs plan.UserPreferences, itinerary json.RawMessage) error {
	scanner := bufio.NewScanner(in)
	for {
		display.Prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			display.History(sess.Messages())
			continue
		case "/clear":
			if err := sess.Clear(ctx); err != nil {
				display.Error(err)
				continue
			}
			display.Notice("history cleared")
			continue
		}

		display.StartReply()
		out, err := sess.SendMessage(ctx, line, prefs, itinerary, client.Handlers{
			OnDelta:  func(delta, _ string) { display.Delta(delta) },
			OnAction: display.Action,
		})
		if err != nil {
			display.Error(err)
			continue
		}
		display.Finish(out)
	}
}
