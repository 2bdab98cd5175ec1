package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"moodle-assistant/internal/app"
	"moodle-assistant/internal/chat"
	"moodle-assistant/internal/common/config"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/validation"
	"moodle-assistant/internal/models"

	"github.com/spf13/pflag"
)

type env struct {
	app    *app.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	json   bool
}

// cliNavigator tells the user to log in again. It speaks once per process.
type cliNavigator struct {
	w    io.Writer
	once sync.Once
}

func (n *cliNavigator) RedirectToLogin(context.Context) {
	n.once.Do(func() {
		fmt.Fprintln(n.w, "Your session has ended. Run 'moodle-assistant login' to sign in again.")
	})
}

func parseCourseID(args []string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, usagef("missing course id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, nil, usagef("course id must be a number, got %q", args[0])
	}
	return id, args[1:], nil
}

func noArgs(args []string) error {
	if len(args) > 0 {
		return usagef("unexpected arguments: %s", strings.Join(args, " "))
	}
	return nil
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	moodleURL := fs.String("url", "", "Moodle site URL, e.g. moodle.example.edu")
	username := fs.StringP("username", "u", "", "Moodle username")
	password := fs.StringP("password", "p", "", "Moodle password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if err := noArgs(fs.Args()); err != nil {
		return err
	}

	creds, err := newPrompter(e.stdin, e.stderr).complete(models.LoginRequest{
		MoodleURL: *moodleURL,
		Username:  *username,
		Password:  *password,
	})
	if err != nil {
		return err
	}

	state, err := e.app.Session.Login(ctx, creds)
	if err != nil {
		return err
	}

	if e.json {
		return writeJSON(e.stdout, state.User)
	}
	fmt.Fprintf(e.stdout, "Successfully connected to Moodle as %s (%s)\n", state.User.DisplayName(), state.User.MoodleURL)
	return nil
}

func cmdLogout(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	e.app.Session.Logout(ctx)
	fmt.Fprintln(e.stdout, "Logged out successfully")
	return nil
}

func cmdStatus(_ context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	state := e.app.Session.State()

	if e.json {
		return writeJSON(e.stdout, map[string]interface{}{
			"authenticated": state.Authenticated,
			"user":          state.User,
		})
	}
	if !state.Authenticated {
		fmt.Fprintln(e.stdout, "Not logged in")
		return nil
	}

	tw := newTable(e.stdout)
	fmt.Fprintf(tw, "User:\t%s (%s)\n", state.User.DisplayName(), state.User.Username)
	fmt.Fprintf(tw, "Site:\t%s\n", state.User.MoodleURL)
	if state.User.Sitename != "" {
		fmt.Fprintf(tw, "Site name:\t%s\n", state.User.Sitename)
	}
	fmt.Fprintf(tw, "Session:\t%s\n", logger.Mask(state.SessionID))
	return tw.Flush()
}

func cmdValidate(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	valid, err := e.app.Session.Validate(ctx)
	if err != nil {
		return err
	}

	if e.json {
		return writeJSON(e.stdout, map[string]bool{"valid": valid})
	}
	if valid {
		fmt.Fprintln(e.stdout, "Session is valid")
	} else {
		fmt.Fprintln(e.stdout, "Session is no longer valid; you have been logged out")
	}
	return nil
}

func cmdSession(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	info, err := e.app.API.SessionInfo(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, info)
	}

	tw := newTable(e.stdout)
	fmt.Fprintf(tw, "Session:\t%s\n", logger.Mask(info.SessionID))
	fmt.Fprintf(tw, "User:\t%s\n", info.UserInfo.DisplayName())
	fmt.Fprintf(tw, "Site:\t%s\n", info.MoodleURL)
	if t, ok := info.Created(); ok {
		fmt.Fprintf(tw, "Created:\t%s\n", formatTime(t))
	}
	if t, ok := info.LastAccess(); ok {
		fmt.Fprintf(tw, "Last accessed:\t%s\n", formatTime(t))
	}
	return tw.Flush()
}

func cmdCourses(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("courses", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	search := fs.StringP("search", "s", "", "only list courses whose name contains TERM")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if err := noArgs(fs.Args()); err != nil {
		return err
	}

	list, err := e.app.Courses.Search(ctx, *search)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, list)
	}
	if len(list) == 0 {
		if term := strings.TrimSpace(*search); term != "" {
			fmt.Fprintf(e.stdout, "No courses match %q. Try a different search term.\n", term)
			return nil
		}
		fmt.Fprintln(e.stdout, "No courses found")
		return nil
	}
	return writeCourseTable(e.stdout, list)
}

func cmdCourse(ctx context.Context, e *env, args []string) error {
	id, rest, err := parseCourseID(args)
	if err != nil {
		return err
	}
	if err := noArgs(rest); err != nil {
		return err
	}

	course, err := e.app.Courses.Course(ctx, id)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, course)
	}

	tw := newTable(e.stdout)
	fmt.Fprintf(tw, "ID:\t%d\n", course.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", course.Fullname)
	fmt.Fprintf(tw, "Short name:\t%s\n", course.Shortname)
	fmt.Fprintf(tw, "Visible:\t%s\n", yesNo(course.IsVisible()))
	if course.Format != "" {
		fmt.Fprintf(tw, "Format:\t%s\n", course.Format)
	}
	if summary := plainText(course.Summary); summary != "" {
		fmt.Fprintf(tw, "Summary:\t%s\n", truncate(summary, 120))
	}
	return tw.Flush()
}

func cmdContents(ctx context.Context, e *env, args []string) error {
	id, rest, err := parseCourseID(args)
	if err != nil {
		return err
	}
	if err := noArgs(rest); err != nil {
		return err
	}

	sections, err := e.app.Courses.Contents(ctx, id)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, sections)
	}
	writeContents(e.stdout, sections)
	return nil
}

func cmdFiles(ctx context.Context, e *env, args []string) error {
	id, rest, err := parseCourseID(args)
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("files", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fileType := fs.StringP("type", "t", "", "only list files with this extension, e.g. pdf")
	if err := fs.Parse(rest); err != nil {
		return usagef("%v", err)
	}
	if err := noArgs(fs.Args()); err != nil {
		return err
	}

	info, err := e.app.Courses.Files(ctx, id, *fileType)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, info)
	}
	return writeFiles(e.stdout, info)
}

func cmdDashboard(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	user := e.app.Session.State().User

	ov, err := e.app.Courses.Overview(ctx, user)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, ov)
	}

	fmt.Fprintf(e.stdout, "Welcome back, %s!\n", user.FirstName())
	if user.MoodleURL != "" {
		fmt.Fprintf(e.stdout, "Connected to %s\n", validation.ExtractDomain(user.MoodleURL))
	}
	fmt.Fprintf(e.stdout, "\nTotal courses: %d (%d visible)\n\n", ov.CourseCount, ov.VisibleCount)
	if ov.CourseCount > 0 {
		if err := writeCourseTable(e.stdout, ov.Courses); err != nil {
			return err
		}
	}
	if len(ov.Suggestions) > 0 {
		fmt.Fprintln(e.stdout, "\nTry asking:")
		for _, s := range ov.Suggestions {
			fmt.Fprintf(e.stdout, "  - %s\n", s)
		}
	}
	return nil
}

func cmdChat(ctx context.Context, e *env, args []string) error {
	conv := e.app.Assistant.NewConversation(e.app.Session.State().User)

	if len(args) > 0 {
		reply, err := conv.Send(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if e.json {
			return writeJSON(e.stdout, reply)
		}
		fmt.Fprintln(e.stdout, reply.Content)
		return nil
	}

	e.app.ServeMetrics(ctx)
	e.app.Session.StartValidation(ctx, config.GetDuration(e.app.Config.Session.ValidateInterval))
	return chatLoop(ctx, e, conv)
}

func chatLoop(ctx context.Context, e *env, conv *chat.Conversation) error {
	greeting := conv.Messages()[0]
	fmt.Fprintf(e.stdout, "%s\n(type 'exit' to leave)\n", greeting.Content)

	scanner := bufio.NewScanner(e.stdin)
	for {
		fmt.Fprint(e.stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(e.stdout)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reply, err := conv.Send(ctx, line)
		if err != nil {
			if !e.app.Session.State().Authenticated {
				return err
			}
			fmt.Fprintf(e.stderr, "Error: %s\n", describe(err))
			continue
		}
		fmt.Fprintf(e.stdout, "%s\n", reply.Content)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func cmdSuggestions(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	list, err := e.app.Assistant.Suggestions(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, list)
	}
	for _, s := range list {
		fmt.Fprintf(e.stdout, "- %s\n", s)
	}
	return nil
}

func cmdHealth(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	health, err := e.app.API.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, health)
	}
	fmt.Fprintf(e.stdout, "Backend %s at %s (%d active sessions)\n", health.Status, e.app.Config.API.BaseURL, health.ActiveSessions)
	return nil
}

func cmdAPIStatus(ctx context.Context, e *env, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	status, err := e.app.API.APIStatus(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.stdout, status)
	}

	tw := newTable(e.stdout)
	fmt.Fprintf(tw, "Status:\t%s\n", status.Status)
	fmt.Fprintf(tw, "Active sessions:\t%d\n", status.ActiveSessions)
	fmt.Fprintf(tw, "Cleaned sessions:\t%d\n", status.CleanedSessions)
	if len(status.Capabilities) > 0 {
		fmt.Fprintf(tw, "Capabilities:\t%s\n", strings.Join(status.Capabilities, ", "))
	}
	return tw.Flush()
}
