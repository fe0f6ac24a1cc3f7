// Package envutil reads and writes the .env file that sits next to the
// baito binary.
package envutil

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// LoadDotEnv sets each KEY=value from path that is not already in the
// environment. A missing file is not an error. Lines may carry an
// "export " prefix and values may be single or double quoted.
func LoadDotEnv(path string) error {
	values, err := ReadDotEnv(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for key, value := range values {
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

// ReadDotEnv parses path without touching the environment.
func ReadDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value, err := unquote(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		values[key] = value
	}
	return values, scanner.Err()
}

func unquote(v string) (string, error) {
	if len(v) >= 2 {
		switch {
		case v[0] == '"' && v[len(v)-1] == '"':
			return strconv.Unquote(v)
		case v[0] == '\'' && v[len(v)-1] == '\'':
			return v[1 : len(v)-1], nil
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v, nil
}

func WriteDotEnv(path string, values map[string]string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(quoteIfNeeded(values[k]))
		b.WriteString("\n")
	}

	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " #\"'\n\t") {
		return strconv.Quote(v)
	}
	return v
}
