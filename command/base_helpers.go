package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/errwrap"
	"github.com/kr/text"
	"github.com/saasbill/billing/api"
)

// ensureLeadingSlash keeps paths relative to the API base.
func ensureLeadingSlash(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}

	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

// parseArgsData parses the given args in the format key=value into a map of
// the provided arguments. The given reader can also be "-" to read a JSON
// object from stdin. A value of "@path" loads the file at path and "-" reads
// stdin.
func parseArgsData(stdin io.Reader, args []string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	stdinUsed := false

	for _, arg := range args {
		// If the arg is exactly "-", then we need to read from stdin
		// and merge the results into the resulting structure.
		if arg == "-" {
			if stdin == nil {
				stdin = os.Stdin
			}
			if stdinUsed {
				return nil, fmt.Errorf("stdin already consumed")
			}
			stdinUsed = true

			var data map[string]interface{}
			if err := decodeJSON(stdin, &data); err != nil {
				return nil, errwrap.Wrapf("failed to parse JSON from stdin: {{err}}", err)
			}
			for k, v := range data {
				result[k] = v
			}
			continue
		}

		// A bare @file holds a JSON object.
		if strings.HasPrefix(arg, "@") {
			f, err := os.Open(arg[1:])
			if err != nil {
				return nil, errwrap.Wrapf(fmt.Sprintf("failed to open %s: {{err}}", arg[1:]), err)
			}
			var data map[string]interface{}
			err = decodeJSON(f, &data)
			f.Close()
			if err != nil {
				return nil, errwrap.Wrapf(fmt.Sprintf("failed to parse JSON from %s: {{err}}", arg[1:]), err)
			}
			for k, v := range data {
				result[k] = v
			}
			continue
		}

		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("format must be key=value: %s", arg)
		}

		switch {
		case value == "-":
			if stdin == nil {
				stdin = os.Stdin
			}
			if stdinUsed {
				return nil, fmt.Errorf("stdin already consumed")
			}
			stdinUsed = true

			var buf bytes.Buffer
			if _, err := io.Copy(&buf, stdin); err != nil {
				return nil, err
			}
			value = buf.String()
		case strings.HasPrefix(value, "@"):
			contents, err := os.ReadFile(value[1:])
			if err != nil {
				return nil, errwrap.Wrapf(fmt.Sprintf("error reading file %s: {{err}}", value[1:]), err)
			}
			value = string(contents)
		case strings.HasPrefix(value, `\@`):
			value = value[1:]
		}

		result[key] = value
	}

	return result, nil
}

func decodeJSON(r io.Reader, out interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(out)
}

// parseFileArgs builds a multipart payload from FIELD=PATH pairs. Plain
// fields are stringified.
func parseFileArgs(files []string, fields map[string]interface{}) (*api.Multipart, error) {
	plain := make(map[string]string, len(fields))
	for k, v := range fields {
		switch v := v.(type) {
		case string:
			plain[k] = v
		default:
			plain[k] = fmt.Sprint(v)
		}
	}

	parts := make([]api.MultipartFile, 0, len(files))
	var opened []*os.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, spec := range files {
		field, path, ok := strings.Cut(spec, "=")
		if !ok || field == "" || path == "" {
			return nil, fmt.Errorf("-%s must be FIELD=PATH: %s", flagNameFile, spec)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("failed to open %s: {{err}}", path), err)
		}
		opened = append(opened, f)
		parts = append(parts, api.MultipartFile{
			Field:    field,
			Filename: filepath.Base(path),
			Content:  f,
		})
	}

	return api.NewMultipart(plain, parts...)
}

func wrapAtLengthWithPadding(s string, pad int) string {
	wrapped := text.Wrap(s, maxLineLength-pad)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}

func wrapAtLength(s string) string {
	return wrapAtLengthWithPadding(s, 0)
}

func generateFlagWarnings(args []string) string {
	var trailingFlags []string
	for _, arg := range args {
		// "-" can be used where a file is expected to denote stdin.
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			continue
		}

		isGlobalFlag := false
		trimmedArg, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		for _, flag := range globalFlags {
			if trimmedArg == flag {
				isGlobalFlag = true
			}
		}
		if isGlobalFlag {
			continue
		}

		trailingFlags = append(trailingFlags, arg)
	}

	if len(trailingFlags) > 0 {
		return fmt.Sprintf("Command flags must be provided before positional arguments. "+
			"The following arguments will not be parsed as flags: [%s]", strings.Join(trailingFlags, ","))
	} else {
		return ""
	}
}
