package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/orenbm/moodledown"
	"github.com/orenbm/moodledown/zip"
	"github.com/spf13/afero"
)

// session is the per-course browser session the commands drive. rod.Session
// satisfies it; tests substitute a fake.
type session interface {
	moodledown.Fetcher
	moodledown.PageSource
	Login(ctx context.Context, username, password string) error
	NavigateCourse(ctx context.Context, courseURL string) error
	NavigateDashboard(ctx context.Context) error
	Close() error
}

// sessionFactory opens a fresh authenticated browser session. Each parallel
// course worker gets its own.
type sessionFactory func(headless bool) (session, error)

// unzipper extracts every archive under a directory tree.
type unzipper interface {
	ExtractAll(root string, status zip.StatusFunc) (zip.Stats, error)
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	FS         afero.Fs
	Ledger     moodledown.Ledger
	Extractor  moodledown.Extractor
	Resolver   moodledown.PageResolver
	Title      func(html string) string
	NewSession sessionFactory
	Unzip      unzipper

	Username string
	Password string
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Download DownloadCmd `cmd:"" help:"Download course materials"`
	Courses  CoursesCmd  `cmd:"" help:"List enrolled courses from the dashboard"`
	Unzip    UnzipCmd    `cmd:"" help:"Recursively extract zip archives in a folder"`
}

// DownloadCmd is the "download" subcommand.
type DownloadCmd struct {
	Courses    []string `arg:"" optional:"" help:"Course page URLs (omit with --all)"`
	All        bool     `short:"a" help:"Download every course on the dashboard"`
	Dir        string   `short:"d" default:"downloads" help:"Download folder"`
	Parallel   int      `short:"p" default:"1" help:"Concurrent course sessions"`
	NoSections bool     `help:"Do not organize files into section folders"`
	Headless   bool     `help:"Run the browser without a window"`
	Unzip      bool     `short:"u" help:"Extract downloaded archives afterwards"`
}

// CoursesCmd is the "courses" subcommand.
type CoursesCmd struct {
	Headless bool `help:"Run the browser without a window"`
}

// UnzipCmd is the "unzip" subcommand.
type UnzipCmd struct {
	Folder string `arg:"" help:"Folder to extract archives in"`
}
