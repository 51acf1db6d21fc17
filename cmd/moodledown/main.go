// Command moodledown downloads course materials from a Moodle deployment.
//
// Configuration comes from the environment (optionally via a .env file):
//
//	MOODLE_BASE_URL  deployment root including year, e.g. https://moodle.example.edu/2024-25
//	MOODLE_USERNAME  login email
//	MOODLE_PASSWORD  login password
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	moodafero "github.com/orenbm/moodledown/afero"
	"github.com/orenbm/moodledown/goquery"
	"github.com/orenbm/moodledown/rod"
	moodslog "github.com/orenbm/moodledown/slog"
	"github.com/orenbm/moodledown/zip"
	"github.com/spf13/afero"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Path to the shared download-history ledger. Set before calling Run().
	LedgerPath string

	// BaseURL of the Moodle deployment. Set before calling Run().
	BaseURL string
}

// NewMain returns a new instance of Main with defaults from the
// environment. A .env file in the working directory is honored.
func NewMain() *Main {
	_ = godotenv.Load()
	return &Main{
		LedgerPath: defaultLedgerPath(),
		BaseURL:    os.Getenv("MOODLE_BASE_URL"),
	}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	logger := newLogger(stderr)
	fsys := afero.NewOsFs()

	classifier := goquery.NewClassifier(logger)
	deps := &Dependencies{
		Ctx:       ctx,
		Stdout:    stdout,
		Stderr:    stderr,
		Logger:    logger,
		FS:        fsys,
		Ledger:    moodafero.Open(fsys, m.LedgerPath, logger),
		Extractor: moodslog.NewLoggingExtractor(classifier, logger),
		Resolver:  goquery.NewResolver(logger),
		Title:     classifier.CourseTitle,
		Unzip:     zip.NewExtractor(fsys, logger),
		Username:  os.Getenv("MOODLE_USERNAME"),
		Password:  os.Getenv("MOODLE_PASSWORD"),
	}
	deps.NewSession = func(headless bool) (session, error) {
		if m.BaseURL == "" {
			return nil, fmt.Errorf("MOODLE_BASE_URL not set")
		}
		return rod.NewSession(m.BaseURL, logger, rod.WithHeadless(headless))
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("moodledown"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'moodledown --help' to see available commands")
	}
	if cmd := args[0]; cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kongCtx.Run(deps)
}

// newLogger builds the program logger. MOODLE_LOG=debug enables debug
// output.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("MOODLE_LOG") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultLedgerPath() string {
	if path := os.Getenv("MOODLE_HISTORY"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "download_history.log"
	}
	dir := filepath.Join(home, ".moodledown", "logs")
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, "download_history.log")
}
