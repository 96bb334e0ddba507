package configutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/hcl/ast"
	"github.com/hashicorp/hcl/hcl/token"
)

// UnusedKeyMap records the positions of keys the decoder did not consume.
type UnusedKeyMap map[string][]token.Pos

// unusedKeys returns the keys of list that no hcl tag of the struct v
// names. Keys match case-insensitively, as they do when decoding.
func unusedKeys(list *ast.ObjectList, v interface{}) UnusedKeyMap {
	known := make(map[string]struct{})
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("hcl"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		known[strings.ToLower(name)] = struct{}{}
	}

	unused := make(UnusedKeyMap)
	for _, item := range list.Items {
		if len(item.Keys) == 0 {
			continue
		}
		key := item.Keys[0]
		name := strings.Trim(key.Token.Text, `"`)
		if _, ok := known[strings.ToLower(name)]; ok {
			continue
		}
		unused[name] = append(unused[name], key.Pos())
	}
	return unused
}

// ConfigError is a non-fatal problem found in a configuration file.
type ConfigError struct {
	Problem  string
	Position token.Pos
}

func (c *ConfigError) String() string {
	return fmt.Sprintf("%s at %s", c.Problem, c.Position.String())
}

// ValidateUnusedFields reports every unused key as a ConfigError.
func ValidateUnusedFields(unusedKeyPositions UnusedKeyMap, sourceFilePath string) []ConfigError {
	if unusedKeyPositions == nil {
		return nil
	}
	var errors []ConfigError
	for field, positions := range unusedKeyPositions {
		problem := fmt.Sprintf("unknown or unsupported field %s found in configuration", field)
		for _, pos := range positions {
			if pos.Filename == "" && sourceFilePath != "" {
				pos.Filename = sourceFilePath
			}
			errors = append(errors, ConfigError{
				Problem:  problem,
				Position: pos,
			})
		}
	}
	return errors
}
