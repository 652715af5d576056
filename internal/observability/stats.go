package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Statistics event names.
const (
	EventScanComplete      = "scan_complete"
	EventTranscodeComplete = "transcode_complete"
	EventTranscodeError    = "transcode_error"
)

// StatsLog appends one JSON object per line to the statistics file.
// Writes are best-effort: a failing statistics sink must never break the
// operation being recorded.
type StatsLog struct {
	mu   sync.Mutex
	path string
}

// NewStatsLog creates a statistics sink at path. The file is created lazily
// on first write.
func NewStatsLog(path string) *StatsLog {
	return &StatsLog{path: path}
}

// Record appends an event line. A "timestamp" field is added automatically.
func (s *StatsLog) Record(event string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["timestamp"] = time.Now().Format(time.RFC3339)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(data, '\n'))
}

// ScanComplete records a finished library scan.
func (s *StatsLog) ScanComplete(path string, filesFound int, duration time.Duration) {
	s.Record(EventScanComplete, map[string]any{
		"path":             path,
		"files_found":      filesFound,
		"duration_seconds": roundTenth(duration.Seconds()),
	})
}

// TranscodeComplete records a successful transcode.
func (s *StatsLog) TranscodeComplete(file string, originalBytes, newBytes int64, duration time.Duration) {
	originalMB := float64(originalBytes) / (1024 * 1024)
	newMB := float64(newBytes) / (1024 * 1024)
	savings := 0.0
	if originalBytes > 0 {
		savings = float64(originalBytes-newBytes) / float64(originalBytes) * 100
	}
	s.Record(EventTranscodeComplete, map[string]any{
		"file":             file,
		"original_size_mb": roundTenth(originalMB),
		"new_size_mb":      roundTenth(newMB),
		"savings_percent":  roundTenth(savings),
		"duration_seconds": roundTenth(duration.Seconds()),
	})
}

// TranscodeError records a failed transcode.
func (s *StatsLog) TranscodeError(file, errMsg string) {
	if len(errMsg) > 200 {
		errMsg = errMsg[:200]
	}
	s.Record(EventTranscodeError, map[string]any{
		"file":  file,
		"error": errMsg,
	})
}

// StatsSummary aggregates transcode outcomes over a query window.
type StatsSummary struct {
	TotalTranscodes   int     `json:"total_transcodes"`
	TotalErrors       int     `json:"total_errors"`
	TotalSavedMB      float64 `json:"total_saved_mb"`
	AvgSavingsPercent float64 `json:"avg_savings_percent"`
}

// Query returns all events newer than the given number of days plus a
// summary. Unparseable lines are skipped.
func (s *StatsLog) Query(days int) ([]map[string]any, StatsSummary, error) {
	var summary StatsSummary

	s.mu.Lock()
	f, err := os.Open(s.path)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return []map[string]any{}, summary, nil
		}
		return nil, summary, fmt.Errorf("opening statistics file: %w", err)
	}
	defer f.Close()

	cutoff := time.Now().AddDate(0, 0, -days)
	entries := []map[string]any{}
	var savingsSum float64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		ts, ok := entry["timestamp"].(string)
		if !ok {
			continue
		}
		when, err := time.Parse(time.RFC3339, ts)
		if err != nil || when.Before(cutoff) {
			continue
		}
		entries = append(entries, entry)

		switch entry["event"] {
		case EventTranscodeComplete:
			summary.TotalTranscodes++
			orig, _ := entry["original_size_mb"].(float64)
			newer, _ := entry["new_size_mb"].(float64)
			summary.TotalSavedMB += orig - newer
			pct, _ := entry["savings_percent"].(float64)
			savingsSum += pct
		case EventTranscodeError:
			summary.TotalErrors++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, summary, fmt.Errorf("reading statistics file: %w", err)
	}

	if summary.TotalTranscodes > 0 {
		summary.AvgSavingsPercent = roundTenth(savingsSum / float64(summary.TotalTranscodes))
	}
	summary.TotalSavedMB = roundTenth(summary.TotalSavedMB)
	return entries, summary, nil
}

func roundTenth(f float64) float64 {
	if f < 0 {
		return float64(int64(f*10-0.5)) / 10
	}
	return float64(int64(f*10+0.5)) / 10
}
