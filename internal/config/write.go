package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeycumines/harvest/internal/storage"
)

// SetKeyInFile sets key to value in section ("" for global) of the config
// file at path, keeping comments and layout. An existing line for the key
// is replaced in place; otherwise the line is added at the end of the
// section, creating the section if needed.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	current := ""
	// end is the index just past the last non-blank line of the target
	// section, or -1 if the section has not been seen.
	end := -1
	if section == "" {
		end = 0
	}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
			if current == section {
				end = i + 1
			}
			continue
		}
		if current != section {
			continue
		}
		if trimmed != "" {
			end = i + 1
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			return write(path, lines)
		}
	}

	switch {
	case end < 0:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	default:
		lines = append(lines[:end], append([]string{newLine}, lines[end:]...)...)
	}
	return write(path, lines)
}

func write(path string, lines []string) error {
	return storage.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}
