package main

import "fmt"

// Run executes the unzip command.
func (c *UnzipCmd) Run(deps *Dependencies) error {
	stats, err := deps.Unzip.ExtractAll(c.Folder, func(msg string) {
		fmt.Fprintln(deps.Stdout, msg)
	})
	if err != nil {
		return err
	}
	if stats.Errors > 0 {
		return fmt.Errorf("%d archive(s) failed to extract", stats.Errors)
	}
	return nil
}
