package run

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AppendEvent appends one line to the run's events.ndjson. Each event carries
// at least "event" and "ts" (unix milliseconds); payload keys are merged in.
// The log is append-only: nothing in the workflow ever rewrites it.
func AppendEvent(runDir, eventType string, payload map[string]interface{}) error {
	if err := os.MkdirAll(runDir, 0750); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	event := map[string]interface{}{
		"event": eventType,
		"ts":    nowTS(),
	}
	for k, v := range payload {
		event[k] = v
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, "events.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append event: %w", err)
	}
	return f.Close()
}

// ReadEvents parses the run's full event log. Lines that fail to parse are
// skipped rather than failing the read: a crashed writer can leave a torn
// final line.
func ReadEvents(runDir string) ([]map[string]interface{}, error) {
	f, err := os.Open(filepath.Join(runDir, "events.ndjson"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}
