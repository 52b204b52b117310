package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// InputFixture is a sample text together with whether it fits a Code 128 symbol.
type InputFixture struct {
	Name  string
	Text  string
	Valid bool
}

// InputFixtures returns representative generator inputs.
func InputFixtures() []InputFixture {
	return []InputFixture{
		{Name: "digits", Text: "123456", Valid: true},
		{Name: "alphanumeric", Text: "ORDER-4711", Valid: true},
		{Name: "lowercase and punctuation", Text: "abc.def/42!", Valid: true},
		{Name: "single character", Text: "A", Valid: true},
		{Name: "empty", Text: "", Valid: false},
		{Name: "emoji", Text: "😀", Valid: false},
		{Name: "non-latin", Text: "条形码", Valid: false},
		{Name: "too long", Text: strings.Repeat("A", 80), Valid: false},
	}
}

// ValidInputs returns the texts of all valid fixtures.
func ValidInputs() []string {
	var out []string
	for _, f := range InputFixtures() {
		if f.Valid {
			out = append(out, f.Text)
		}
	}
	return out
}

// WriteLines writes one text per line to dir/name and returns the path.
func WriteLines(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}
