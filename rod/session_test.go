package rod

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupCookies(t *testing.T) {
	t.Parallel()

	cookies := []*proto.NetworkCookie{
		{Name: "MoodleSession", Value: "abc", Domain: "moodle.test", Path: "/", Secure: true},
		{Name: "MOODLEID1_", Value: "def", Domain: ".moodle.test", Path: "/", Secure: true},
		{Name: "tracker", Value: "x", Domain: "cdn.example.com", Path: "/", Secure: false},
		{Name: "broken", Value: "y", Domain: ""},
	}

	grouped := groupCookies(cookies)
	require.Len(t, grouped, 2)

	moodle := grouped["https://moodle.test/"]
	require.Len(t, moodle, 2, "leading-dot domain is folded into the bare domain")
	assert.Equal(t, "MoodleSession", moodle[0].Name)
	assert.Equal(t, "moodle.test", moodle[1].Domain)

	cdn := grouped["http://cdn.example.com/"]
	require.Len(t, cdn, 1)
	assert.Equal(t, "tracker", cdn[0].Name)
}
