package main

import (
	"strings"
	"testing"
)

func TestEventScannerLargeLine(t *testing.T) {
	// A task_updated event carrying a big result exceeds bufio's 64KB
	// default line limit; the stream must survive it.
	big := `data: {"type":"task_updated","task_id":"t-1","result":"` + strings.Repeat("x", 128*1024) + `"}`
	input := big + "\n\n" + `data: {"type":"progress_update"}` + "\n"

	scanner := newEventScanner(strings.NewReader(input))

	if !scanner.Scan() {
		t.Fatalf("scan stopped on large line: %v", scanner.Err())
	}
	if scanner.Text() != big {
		t.Error("large line was truncated")
	}

	var rest []string
	for scanner.Scan() {
		rest = append(rest, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rest) != 2 || rest[1] != `data: {"type":"progress_update"}` {
		t.Errorf("expected stream to continue past the large event, got %q", rest)
	}
}
