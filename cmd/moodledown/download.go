package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/orenbm/moodledown"
	"github.com/orenbm/moodledown/download"
	moodslog "github.com/orenbm/moodledown/slog"
	"golang.org/x/sync/errgroup"
)

// Run executes the download command.
func (c *DownloadCmd) Run(deps *Dependencies) error {
	if len(c.Courses) == 0 && !c.All {
		return fmt.Errorf("no courses given. Pass course URLs or use --all")
	}
	if deps.Username == "" || deps.Password == "" {
		fmt.Fprintln(deps.Stderr, "Hint: set MOODLE_USERNAME and MOODLE_PASSWORD (a .env file works)")
		return fmt.Errorf("missing credentials")
	}

	courses := make([]moodledown.Course, 0, len(c.Courses))
	for _, u := range c.Courses {
		courses = append(courses, moodledown.Course{URL: u})
	}
	if c.All {
		listed, err := c.dashboardCourses(deps)
		if err != nil {
			return err
		}
		if len(listed) == 0 {
			return fmt.Errorf("no courses found on the dashboard")
		}
		courses = append(courses, listed...)
	}

	workers := c.Parallel
	if workers < 1 {
		workers = 1
	}

	var (
		g  errgroup.Group
		mu sync.Mutex

		courseErrs []string
		failed     int
	)
	g.SetLimit(workers)

	for _, course := range courses {
		course := course
		g.Go(func() error {
			result, err := c.downloadCourse(deps, course)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				courseErrs = append(courseErrs, fmt.Sprintf("%s: %v", course.URL, err))
				return nil
			}
			failed += len(result.Failed)
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range courseErrs {
		fmt.Fprintf(deps.Stderr, "course failed: %s\n", e)
	}

	if c.Unzip {
		if _, err := deps.Unzip.ExtractAll(c.Dir, func(msg string) {
			fmt.Fprintln(deps.Stdout, msg)
		}); err != nil {
			fmt.Fprintf(deps.Stderr, "unzip: %v\n", err)
		}
	}

	if len(courseErrs) == len(courses) {
		return fmt.Errorf("all courses failed")
	}
	if failed > 0 || len(courseErrs) > 0 {
		return fmt.Errorf("finished with %d failed item(s), %d failed course(s)", failed, len(courseErrs))
	}
	return nil
}

// dashboardCourses opens a session just to read the dashboard course list.
func (c *DownloadCmd) dashboardCourses(deps *Dependencies) ([]moodledown.Course, error) {
	sess, err := deps.NewSession(c.Headless)
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	defer sess.Close()

	if err := sess.Login(deps.Ctx, deps.Username, deps.Password); err != nil {
		return nil, err
	}
	if err := sess.NavigateDashboard(deps.Ctx); err != nil {
		return nil, err
	}
	html, pageURL, err := sess.HTML()
	if err != nil {
		return nil, err
	}
	return deps.Extractor.Courses(html, pageURL), nil
}

// downloadCourse runs the whole flow for one course in its own browser
// session: login, navigate, classify, download.
func (c *DownloadCmd) downloadCourse(deps *Dependencies, course moodledown.Course) (download.Result, error) {
	var result download.Result

	sess, err := deps.NewSession(c.Headless)
	if err != nil {
		return result, fmt.Errorf("starting browser: %w", err)
	}
	defer sess.Close()

	if err := sess.Login(deps.Ctx, deps.Username, deps.Password); err != nil {
		return result, err
	}
	if err := sess.NavigateCourse(deps.Ctx, course.URL); err != nil {
		return result, err
	}
	html, pageURL, err := sess.HTML()
	if err != nil {
		return result, err
	}

	name := course.Name
	if name == "" && deps.Title != nil {
		name = deps.Title(html)
	}
	courseDir := filepath.Join(c.Dir, moodledown.SanitizeName(name, "course"))

	items := deps.Extractor.Resources(html, pageURL, deps.Ledger.URLs())
	if len(items) == 0 {
		fmt.Fprintf(deps.Stdout, "%s: nothing new to download\n", name)
		return result, nil
	}

	engine := download.NewEngine(
		moodslog.NewLoggingFetcher(sess, deps.Logger),
		deps.Resolver, deps.Ledger, deps.FS, deps.Logger,
		c.engineConfig(),
	)

	progress := func(message string, percent float64) {
		fmt.Fprintf(deps.Stdout, "[%3.0f%%] %s: %s\n", percent, name, message)
	}
	result = engine.DownloadAll(deps.Ctx, items, courseDir, progress)

	fmt.Fprintf(deps.Stdout, "%s: %d downloaded, %d skipped, %d failed\n",
		name, len(result.Successful), len(result.Skipped), len(result.Failed))
	for _, line := range result.Failed {
		fmt.Fprintf(deps.Stderr, "  failed: %s\n", line)
	}
	return result, nil
}

func (c *DownloadCmd) engineConfig() download.Config {
	cfg := download.DefaultConfig()
	cfg.OrganizeBySections = !c.NoSections
	return cfg
}
