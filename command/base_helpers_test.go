package command

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgsData(t *testing.T) {
	t.Parallel()

	valueFile := writeTestFile(t, "value.txt", "from-file")
	objectFile := writeTestFile(t, "object.json", `{"seats": 5, "name": "file"}`)

	cases := []struct {
		name  string
		stdin string
		args  []string
		want  map[string]interface{}
	}{
		{
			name: "pairs",
			args: []string{"name=pro", "price=10", "empty="},
			want: map[string]interface{}{"name": "pro", "price": "10", "empty": ""},
		},
		{
			name: "value with equals",
			args: []string{"filter=a=b"},
			want: map[string]interface{}{"filter": "a=b"},
		},
		{
			name: "value from file",
			args: []string{"notes=@" + valueFile},
			want: map[string]interface{}{"notes": "from-file"},
		},
		{
			name: "escaped at",
			args: []string{`handle=\@acme`},
			want: map[string]interface{}{"handle": "@acme"},
		},
		{
			name:  "value from stdin",
			stdin: "piped",
			args:  []string{"notes=-"},
			want:  map[string]interface{}{"notes": "piped"},
		},
		{
			name:  "object from stdin",
			stdin: `{"name": "stdin", "seats": 2}`,
			args:  []string{"-", "name=override"},
			want:  map[string]interface{}{"name": "override", "seats": json.Number("2")},
		},
		{
			name: "object from file",
			args: []string{"@" + objectFile},
			want: map[string]interface{}{"name": "file", "seats": json.Number("5")},
		},
		{
			name: "none",
			want: map[string]interface{}{},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseArgsData(strings.NewReader(tc.stdin), tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseArgsData_errors(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"no equals":    {"name"},
		"empty key":    {"=value"},
		"stdin twice":  {"a=-", "b=-"},
		"missing file": {"notes=@/does/not/exist"},
		"missing json": {"@/does/not/exist"},
		"invalid json": {"-"},
	}

	for name, args := range cases {
		args := args
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := parseArgsData(strings.NewReader("not json"), args)
			require.Error(t, err)
		})
	}
}

func TestParseFileArgs(t *testing.T) {
	t.Parallel()

	file := writeTestFile(t, "usage.csv", "a,b\n1,2\n")

	mp, err := parseFileArgs([]string{"usage=" + file}, map[string]interface{}{"period": "2024-03", "seats": json.Number("3")})
	require.NoError(t, err)
	require.Contains(t, mp.ContentType, "multipart/form-data")
	body := string(mp.Body)
	require.Contains(t, body, `name="usage"; filename=`)
	require.Contains(t, body, "a,b\n1,2\n")
	require.Contains(t, body, "2024-03")

	for _, spec := range []string{"usage", "=path", "usage=", "usage=/does/not/exist"} {
		_, err := parseFileArgs([]string{spec}, nil)
		require.Error(t, err, spec)
	}
}

func TestEnsureLeadingSlash(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/plans/", ensureLeadingSlash("plans/"))
	require.Equal(t, "/plans/", ensureLeadingSlash(" /plans/ "))
	require.Equal(t, "https://billing.example.com/api/", ensureLeadingSlash("https://billing.example.com/api/"))
	require.Empty(t, ensureLeadingSlash("  "))
}

func TestGenerateFlagWarnings(t *testing.T) {
	t.Parallel()

	require.Empty(t, generateFlagWarnings([]string{"/plans/", "name=pro", "-"}))
	require.Empty(t, generateFlagWarnings([]string{"/plans/", "-format=json", "--address", "http://x"}))

	warning := generateFlagWarnings([]string{"/plans/", "-page=x.html", "--form"})
	require.Contains(t, warning, "[-page=x.html,--form]")
}

func TestWrapAtLength(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 40)
	for _, line := range strings.Split(wrapAtLengthWithPadding(long, 4), "\n") {
		require.LessOrEqual(t, len(line), maxLineLength)
		require.True(t, strings.HasPrefix(line, "    "))
	}
	require.Equal(t, "short", wrapAtLength("short"))
}
