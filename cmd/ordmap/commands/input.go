package commands

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Line buffer bounds for the key<TAB>value format. Lines longer than
// maxLineSize fail with bufio.ErrTooLong.
const (
	initialLineBuffer = 64 * 1024
	maxLineSize       = 16 * 1024 * 1024
)

//go:embed entries.schema.json
var entriesSchema []byte

// Input errors.
var (
	ErrMalformedLine = errors.New("malformed line")
	ErrSchema        = errors.New("input does not match the entries schema")
)

// loadEntry is one key/value pair read from a load input.
type loadEntry struct {
	Key   string `json:"key"   yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// parseEntries reads either a JSON array of {"key","value"} objects or
// key<TAB>value lines. Blank lines and lines starting with # are skipped in
// the line format.
func parseEntries(data []byte) ([]loadEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return parseJSONEntries(trimmed)
	}

	return parseTabEntries(data)
}

func parseJSONEntries(data []byte) ([]loadEntry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(entriesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate entries: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}

		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(details, "; "))
	}

	var entries []loadEntry

	err = json.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}

	return entries, nil
}

func parseTabEntries(data []byte) ([]loadEntry, error) {
	var entries []loadEntry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineSize)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "\t")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w %d: want key<TAB>value", ErrMalformedLine, lineNo)
		}

		entries = append(entries, loadEntry{Key: key, Value: value})
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	return entries, nil
}
