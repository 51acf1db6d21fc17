package afero_test

import (
	"testing"

	moodafero "github.com/orenbm/moodledown/afero"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerPath = "/logs/download_history.log"

func TestLedger_Open_MissingFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := moodafero.Open(fs, ledgerPath, nil)

	assert.Empty(t, l.URLs())
	assert.False(t, l.Contains("https://moodle.test/x"))
}

func TestLedger_Open_VerifiesFilesExist(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/a.pdf", []byte("a"), 0o644))
	content := "https://moodle.test/a\t/dl/a.pdf\n" +
		"https://moodle.test/b\t/dl/b.pdf\n"
	require.NoError(t, afero.WriteFile(fs, ledgerPath, []byte(content), 0o644))

	l := moodafero.Open(fs, ledgerPath, nil)

	assert.True(t, l.Contains("https://moodle.test/a"))
	assert.False(t, l.Contains("https://moodle.test/b"), "entry with missing file pruned")

	// The backing file was rewritten without the stale entry.
	got, err := afero.ReadFile(fs, ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, "https://moodle.test/a\t/dl/a.pdf\n", string(got))
}

func TestLedger_Open_NoRewriteWhenClean(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/a.pdf", []byte("a"), 0o644))
	content := "https://moodle.test/a\t/dl/a.pdf\n"
	require.NoError(t, afero.WriteFile(fs, ledgerPath, []byte(content), 0o644))

	l := moodafero.Open(fs, ledgerPath, nil)
	require.True(t, l.Contains("https://moodle.test/a"))

	got, err := afero.ReadFile(fs, ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(got), "file untouched when nothing pruned")
}

func TestLedger_Open_MalformedLinesSkipped(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/a.pdf", []byte("a"), 0o644))
	content := "no-separator-here\n" +
		"\t/dl/only-path.pdf\n" +
		"https://moodle.test/only-url\t\n" +
		"https://moodle.test/a\t/dl/a.pdf\n"
	require.NoError(t, afero.WriteFile(fs, ledgerPath, []byte(content), 0o644))

	l := moodafero.Open(fs, ledgerPath, nil)

	assert.Len(t, l.URLs(), 1)
	assert.True(t, l.Contains("https://moodle.test/a"))
}

func TestLedger_Open_LastLineWinsForDuplicateURL(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/old.pdf", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dl/new.pdf", []byte("a"), 0o644))
	content := "https://moodle.test/a\t/dl/old.pdf\n" +
		"https://moodle.test/a\t/dl/new.pdf\n"
	require.NoError(t, afero.WriteFile(fs, ledgerPath, []byte(content), 0o644))

	l := moodafero.Open(fs, ledgerPath, nil)

	assert.Len(t, l.URLs(), 1)
	got, err := afero.ReadFile(fs, ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, "https://moodle.test/a\t/dl/new.pdf\n", string(got), "duplicates collapse to the last line")
}

func TestLedger_Record(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := moodafero.Open(fs, ledgerPath, nil)

	require.NoError(t, l.Record("https://moodle.test/a", "/dl/a.pdf"))
	require.NoError(t, l.Record("https://moodle.test/b", "/dl/b.pdf"))

	assert.True(t, l.Contains("https://moodle.test/a"))
	assert.True(t, l.Contains("https://moodle.test/b"))

	got, err := afero.ReadFile(fs, ledgerPath)
	require.NoError(t, err)
	assert.Equal(t,
		"https://moodle.test/a\t/dl/a.pdf\n"+
			"https://moodle.test/b\t/dl/b.pdf\n",
		string(got))
}

func TestLedger_Record_FailSoft(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := moodafero.Open(fs, ledgerPath, nil)

	// A read-only filesystem makes the append fail, but the in-memory set
	// must still learn the URL so this run never re-downloads it.
	ro := moodafero.Open(afero.NewReadOnlyFs(fs), ledgerPath, nil)
	err := ro.Record("https://moodle.test/a", "/dl/a.pdf")

	assert.Error(t, err)
	assert.True(t, ro.Contains("https://moodle.test/a"))
	assert.False(t, l.Contains("https://moodle.test/a"))
}
