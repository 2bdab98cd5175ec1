// cmd/moodle-assistant/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"moodle-assistant/internal/app"
	"moodle-assistant/internal/common/config"
	apperrors "moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/session"

	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

var errNotLoggedIn = errors.New("not logged in; run 'moodle-assistant login' first")

type command struct {
	name    string
	args    string
	summary string
	// auth commands need a restored session before they run
	auth bool
	run  func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{name: "login", args: "[--url URL] [-u USER] [-p PASSWORD]", summary: "Connect to a Moodle site", run: cmdLogin},
	{name: "logout", summary: "End the current session", run: cmdLogout},
	{name: "status", summary: "Show the locally cached session", run: cmdStatus},
	{name: "validate", summary: "Check the session with the backend", auth: true, run: cmdValidate},
	{name: "session", summary: "Show the server-side session record", auth: true, run: cmdSession},
	{name: "courses", args: "[--search TERM]", summary: "List enrolled courses", auth: true, run: cmdCourses},
	{name: "course", args: "<id>", summary: "Show one course", auth: true, run: cmdCourse},
	{name: "contents", args: "<id>", summary: "Show course sections and modules", auth: true, run: cmdContents},
	{name: "files", args: "<id> [--type EXT]", summary: "List downloadable course files", auth: true, run: cmdFiles},
	{name: "dashboard", summary: "Summary of courses and suggestions", auth: true, run: cmdDashboard},
	{name: "chat", args: "[message]", summary: "Ask the assistant; interactive without a message", auth: true, run: cmdChat},
	{name: "suggestions", summary: "Show suggested chat prompts", auth: true, run: cmdSuggestions},
	{name: "health", summary: "Backend liveness probe", run: cmdHealth},
	{name: "api-status", summary: "Backend status and capabilities", run: cmdAPIStatus},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

type globalFlags struct {
	configPath string
	apiURL     string
	storage    string
	logLevel   string
	mock       bool
	json       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("moodle-assistant", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)

	var g globalFlags
	fs.StringVarP(&g.configPath, "config", "c", "", "path to config.yaml")
	fs.StringVar(&g.apiURL, "api-url", "", "assistant backend URL (overrides api.base_url)")
	fs.StringVar(&g.storage, "storage", "", "session storage driver: file, redis or memory")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&g.mock, "mock", false, "answer chat locally with prototype replies")
	fs.BoolVar(&g.json, "json", false, "print results as JSON")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs)
		return exitUsage
	}

	cmd, ok := lookup(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		printUsage(stderr, fs)
		return exitUsage
	}

	cfg, err := loadConfig(g)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	e := &env{stdin: stdin, stdout: stdout, stderr: stderr, json: g.json}
	nav := &cliNavigator{w: stderr}

	a, err := app.New(ctx, cfg, app.Options{Navigator: nav})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer a.Close()
	e.app = a

	state := a.Session.Initialize(ctx)
	if cmd.auth && !state.Authenticated {
		fmt.Fprintf(stderr, "Error: %v\n", errNotLoggedIn)
		return exitError
	}

	if err := cmd.run(ctx, e, rest[1:]); err != nil {
		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "Error: %s\nUsage: moodle-assistant %s %s\n", uerr.msg, cmd.name, cmd.args)
			return exitUsage
		}
		fmt.Fprintf(stderr, "Error: %s\n", describe(err))
		return exitError
	}
	return exitOK
}

func loadConfig(g globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if g.apiURL != "" {
		cfg.API.BaseURL = strings.TrimSuffix(g.apiURL, "/")
	}
	if g.storage != "" {
		cfg.Storage.Driver = g.storage
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.mock {
		cfg.Chat.Mock = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// describe turns err into the line shown to the user.
func describe(err error) string {
	if errors.Is(err, session.ErrLoginSuperseded) {
		return "login was cancelled by a logout that happened while it was in progress"
	}
	stdErr, ok := apperrors.As(err)
	if !ok {
		return err.Error()
	}
	if stdErr.Code == apperrors.ErrCodeValidationFailed && stdErr.Details != "" {
		return stdErr.Message + ": " + stdErr.Details
	}
	return stdErr.Message
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: moodle-assistant [global flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	sorted := append([]command(nil), commands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
