// Package commands implements the rollbook command tree. Every command opens
// a session (config, token store, API client, restored sign-in), sends its
// action through the attendance dispatcher and prints the resulting view.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"rollbook/internal/apiclient"
	"rollbook/internal/attendance"
	"rollbook/internal/cli"
	"rollbook/internal/config"
	"rollbook/internal/logging"
	"rollbook/internal/render"
	"rollbook/internal/tokenstore"
	"rollbook/internal/validation"
)

var errNotSignedIn = errors.New("not signed in; run 'rollbook login' first")

// exitError carries a process exit code out of a command.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int  { return e.code }

// withExitCode maps validation and usage mistakes to exit status 2.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(interface{ ExitCode() int }); ok {
		return err
	}
	var usage *cli.UsageError
	if validation.IsValidation(err) || errors.As(err, &usage) {
		return &exitError{err: err, code: 2}
	}
	return err
}

// App holds the global flags and the process streams.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Now overrides the clock of every opened session.
	Now func() time.Time

	// stdin buffers Stdin across prompts; stdinSource is the reader it wraps.
	stdin       *bufio.Reader
	stdinSource io.Reader

	configPath string
	server     string
	class      string
	date       string
	logLevel   string
}

// NewApp creates an App over the given streams.
func NewApp(stdin io.Reader, stdout, stderr io.Writer) *App {
	return &App{Stdin: stdin, Stdout: stdout, Stderr: stderr}
}

// Execute runs the command tree against args.
func (a *App) Execute(args []string) error {
	return withExitCode(a.Root().Execute(args))
}

// flags returns a flag set carrying the global flags plus whatever extra adds.
// Defining the flags resets the bound fields.
func (a *App) flags(name string, extra func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		fs.StringVar(&a.configPath, "config", "", "path to a YAML config file")
		fs.StringVar(&a.server, "server", "", "attendance server URL")
		fs.StringVar(&a.class, "class", "", "class to select, by id or name")
		fs.StringVar(&a.date, "date", "", "attendance date (YYYY-MM-DD), default today")
		fs.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
		if extra != nil {
			extra(fs)
		}
		return fs
	}
}

// session is one opened client: a service with its restored sign-in.
type session struct {
	svc      *attendance.Service
	view     render.View
	restored bool
	logger   *slog.Logger

	registry    *prometheus.Registry
	metricsFile string
	closers     []io.Closer
}

func (a *App) open(ctx context.Context) (*session, error) {
	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.server != "" {
		cfg.ServerURL = a.server
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger, err := logging.New(a.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, &exitError{err: err, code: 2}
	}

	s := &session{logger: logger, registry: prometheus.NewRegistry(), metricsFile: cfg.MetricsFile}
	client := apiclient.New(cfg.ServerURL, cfg.RequestTimeout, logger)
	client.Metrics = apiclient.NewMetrics(s.registry)

	tokens, err := s.tokenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.svc = attendance.NewService(client, tokens, logger)
	if a.Now != nil {
		s.svc.SetClock(a.Now)
	}

	restore := &attendance.RestoreSession{}
	s.view, err = s.svc.Dispatch(ctx, restore)
	s.restored = restore.Restored
	if err != nil {
		// A failed restore leaves the user signed out; commands that need a
		// session report that themselves.
		logger.Warn("restoring session failed", "error", err)
	}

	if a.date != "" {
		if s.view, err = s.svc.Dispatch(ctx, attendance.SetDate{Date: a.date}); err != nil {
			return nil, withExitCode(err)
		}
	}
	if a.class != "" && s.restored {
		selectClass := attendance.SelectClass{Name: a.class}
		if id, parseErr := strconv.ParseInt(a.class, 10, 64); parseErr == nil {
			selectClass = attendance.SelectClass{ID: id}
		}
		if s.view, err = s.svc.Dispatch(ctx, selectClass); err != nil {
			return nil, withExitCode(err)
		}
	}
	return s, nil
}

func (s *session) tokenStore(ctx context.Context, cfg config.Client) (*tokenstore.Store, error) {
	var sessionTier tokenstore.Tier = tokenstore.NewMemoryTier()
	sessionPath := cfg.SessionTokenPath
	if sessionPath == "" {
		sessionPath = tokenstore.SessionPath()
	}
	if sessionPath != "" {
		sessionTier = tokenstore.NewFileTier(sessionPath)
	}

	switch cfg.TokenBackend {
	case "", "file":
		path := cfg.TokenPath
		if path == "" {
			path = tokenstore.DurablePath()
		}
		return tokenstore.New(tokenstore.NewFileTier(path), sessionTier), nil
	case "redis":
		redisTier := tokenstore.NewRedisTier(cfg.RedisAddr, cfg.RedisKey)
		if !redisTier.Healthy(ctx) {
			_ = redisTier.Close()
			return nil, fmt.Errorf("redis token backend at %s is unreachable", cfg.RedisAddr)
		}
		s.closers = append(s.closers, redisTier)
		return tokenstore.New(redisTier, sessionTier), nil
	default:
		return nil, &exitError{err: fmt.Errorf("unknown token backend %q", cfg.TokenBackend), code: 2}
	}
}

// requireSession fails unless a stored sign-in was restored.
func (s *session) requireSession() error {
	if !s.restored {
		return errNotSignedIn
	}
	return nil
}

func (s *session) dispatch(ctx context.Context, cmd attendance.Command) error {
	view, err := s.svc.Dispatch(ctx, cmd)
	s.view = view
	return err
}

// close writes the metrics textfile when configured and releases the token
// backend.
func (s *session) close() {
	if s.metricsFile != "" {
		if err := prometheus.WriteToTextfile(s.metricsFile, s.registry); err != nil {
			s.logger.Warn("writing metrics textfile failed", "path", s.metricsFile, "error", err)
		}
	}
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			s.logger.Debug("closing token backend failed", "error", err)
		}
	}
}

// run opens a session, runs fn and maps the error to an exit code.
func (a *App) run(fn func(ctx context.Context, s *session) error) error {
	ctx := context.Background()
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return withExitCode(fn(ctx, s))
}

// authed is run for commands that need a signed-in user.
func (a *App) authed(fn func(ctx context.Context, s *session) error) error {
	return a.run(func(ctx context.Context, s *session) error {
		if err := s.requireSession(); err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

// readSecret prompts for a value without echo when stdin is a terminal and
// reads one line otherwise.
func (a *App) readSecret(prompt string) (string, error) {
	fmt.Fprint(a.Stderr, prompt)
	if f, ok := a.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.Stderr)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(prompt, ": "), err)
		}
		return string(secret), nil
	}
	if a.stdin == nil || a.stdinSource != a.Stdin {
		a.stdin, a.stdinSource = bufio.NewReader(a.Stdin), a.Stdin
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
