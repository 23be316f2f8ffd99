// Package daq loads DAQ active-interval lists produced by run
// coordination exports.
package daq

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dalagero/SBND-RunCo/internal/livetime"
)

// ReadFile loads a DAQ interval list from disk, dispatching on the
// file extension: .json expects [{"start": …, "end": …}], anything
// else is treated as CSV with one "start,end" pair per line.
// Timestamps may be RFC3339 or integer Unix epoch seconds. File order
// is preserved; no sorting or overlap normalization is applied.
func ReadFile(path string) ([]livetime.Interval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interval list: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readJSON(f)
	}
	return readCSV(f)
}

func readJSON(r io.Reader) ([]livetime.Interval, error) {
	var raw []struct {
		Start jsonTime `json:"start"`
		End   jsonTime `json:"end"`
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode interval list: %w", err)
	}
	intervals := make([]livetime.Interval, len(raw))
	for i, iv := range raw {
		intervals[i] = livetime.Interval{Start: iv.Start.Time, End: iv.End.Time}
	}
	return intervals, nil
}

func readCSV(r io.Reader) ([]livetime.Interval, error) {
	var intervals []livetime.Interval
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if line == 1 && looksLikeHeader(text) {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected start,end got %d fields", line, len(fields))
		}
		start, err := ParseTimestamp(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: start: %w", line, err)
		}
		end, err := ParseTimestamp(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: end: %w", line, err)
		}
		intervals = append(intervals, livetime.Interval{Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read interval list: %w", err)
	}
	return intervals, nil
}

func looksLikeHeader(text string) bool {
	first, _, _ := strings.Cut(text, ",")
	_, err := ParseTimestamp(strings.TrimSpace(first))
	return err != nil
}

// ParseTimestamp accepts integer Unix epoch seconds or RFC3339 and
// returns the instant in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

type jsonTime struct {
	time.Time
}

func (t *jsonTime) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := ParseTimestamp(v)
		if err != nil {
			return err
		}
		t.Time = parsed
	case float64:
		t.Time = time.Unix(int64(v), 0).UTC()
	default:
		return fmt.Errorf("bad timestamp %v", raw)
	}
	return nil
}
