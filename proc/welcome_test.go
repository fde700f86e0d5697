package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdinal(t *testing.T) {
	tests := map[int]string{
		0:    "newest",
		-5:   "newest",
		1:    "1st",
		2:    "2nd",
		3:    "3rd",
		4:    "4th",
		11:   "11th",
		12:   "12th",
		13:   "13th",
		21:   "21st",
		22:   "22nd",
		23:   "23rd",
		100:  "100th",
		111:  "111th",
		1042: "1042nd",
	}

	for n, want := range tests {
		assert.Equal(t, want, ordinal(n), "ordinal(%d)", n)
	}
}

func TestCountVerbs(t *testing.T) {
	assert.Equal(t, 0, countVerbs("no placeholders here"))
	assert.Equal(t, 1, countVerbs("welcome to %s!"))
	assert.Equal(t, 2, countVerbs("%s meets %s"))
}

func TestWelcomeLinesFormatCleanly(t *testing.T) {
	// Every line must have at most one %s slot so the Sprintf in the join
	// handler cannot produce MISSING markers.
	for _, line := range welcomeLines {
		assert.LessOrEqual(t, countVerbs(line), 1, "line %q", line)
	}
}
