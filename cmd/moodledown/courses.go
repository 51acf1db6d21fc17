package main

import "fmt"

// Run executes the courses command.
func (c *CoursesCmd) Run(deps *Dependencies) error {
	if deps.Username == "" || deps.Password == "" {
		fmt.Fprintln(deps.Stderr, "Hint: set MOODLE_USERNAME and MOODLE_PASSWORD (a .env file works)")
		return fmt.Errorf("missing credentials")
	}

	sess, err := deps.NewSession(c.Headless)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer sess.Close()

	if err := sess.Login(deps.Ctx, deps.Username, deps.Password); err != nil {
		return err
	}
	if err := sess.NavigateDashboard(deps.Ctx); err != nil {
		return err
	}
	html, pageURL, err := sess.HTML()
	if err != nil {
		return err
	}

	courses := deps.Extractor.Courses(html, pageURL)
	if len(courses) == 0 {
		fmt.Fprintln(deps.Stdout, "No courses found on the dashboard.")
		return nil
	}
	for _, course := range courses {
		fmt.Fprintf(deps.Stdout, "%s  %s\n", course.Name, course.URL)
	}
	return nil
}
