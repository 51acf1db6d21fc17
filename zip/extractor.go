// Package zip extracts the archives a download run leaves behind, such as
// folder resources downloaded as server-generated zip files.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Stats summarizes one extraction run.
type Stats struct {
	Found     int
	Extracted int
	Errors    int
}

// StatusFunc receives human-readable progress messages.
type StatusFunc func(message string)

// Extractor walks a directory tree and extracts every zip archive in
// place, next to the archive itself.
type Extractor struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger disables logging.
func NewExtractor(fsys afero.Fs, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{fs: fsys, logger: logger}
}

// ExtractAll recursively extracts all .zip files under root. Corrupt or
// unreadable archives are counted as errors, never aborting the walk. The
// returned error covers only a failure to walk root itself.
func (e *Extractor) ExtractAll(root string, status StatusFunc) (Stats, error) {
	if status == nil {
		status = func(string) {}
	}

	var stats Stats
	info, err := e.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return stats, fmt.Errorf("folder not found or not a directory: %s", root)
	}

	status(fmt.Sprintf("Starting recursive unzip in: %s", root))
	e.logger.Info("starting recursive unzip", "root", root)

	walkErr := afero.Walk(e.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(info.Name()), ".zip") {
			return nil
		}

		stats.Found++
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		status(fmt.Sprintf("Found: %s", rel))

		if err := e.extractArchive(path, filepath.Dir(path)); err != nil {
			stats.Errors++
			status(fmt.Sprintf("  Error: %v", err))
			e.logger.Error("extraction failed", "archive", path, "error", err)
			return nil
		}
		stats.Extracted++
		status(fmt.Sprintf("  Extracted: %s", info.Name()))
		return nil
	})
	if walkErr != nil {
		stats.Errors++
		status(fmt.Sprintf("Error during directory walk: %v", walkErr))
	}

	status(fmt.Sprintf("Unzip finished. Found: %d, Extracted: %d, Errors: %d",
		stats.Found, stats.Extracted, stats.Errors))
	e.logger.Info("recursive unzip finished",
		"found", stats.Found, "extracted", stats.Extracted, "errors", stats.Errors)
	return stats, nil
}

// extractArchive extracts one archive into destDir. Entries that would
// escape destDir are rejected.
func (e *Extractor) extractArchive(archivePath, destDir string) error {
	f, err := e.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(archivePath), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(archivePath), err)
	}

	reader, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("corrupt zip file %s: %w", filepath.Base(archivePath), err)
	}

	for _, entry := range reader.File {
		if err := e.extractEntry(entry, destDir); err != nil {
			return fmt.Errorf("extracting %s from %s: %w", entry.Name, filepath.Base(archivePath), err)
		}
	}
	return nil
}

func (e *Extractor) extractEntry(entry *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean(entry.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry path escapes destination")
	}

	if entry.FileInfo().IsDir() {
		return e.fs.MkdirAll(target, 0o755)
	}

	if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := e.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
