// Package moodledown downloads course materials from a Moodle instance.
// It classifies resources on a rendered course page, fetches each one over
// the authenticated browser session, and records successes in a shared
// history ledger so repeated runs only download what is new.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, rod/, afero/).
package moodledown
