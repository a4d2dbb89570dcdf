package server

import (
	"sync"
	"time"

	"github.com/dshills/logicguard/internal/schema"
)

const previewLen = 100

// Entry is one validation in the request history.
type Entry struct {
	Timestamp        time.Time      `json:"timestamp"`
	RunID            string         `json:"run_id"`
	InputPreview     string         `json:"input_text"`
	Verdict          schema.Verdict `json:"verdict"`
	ViolationsCount  int            `json:"violations_count"`
	WasCorrected     bool           `json:"was_corrected"`
	Iterations       int            `json:"iterations"`
	ProcessingTimeMS float64        `json:"processing_time_ms"`
}

// Snapshot is a point-in-time view of the statistics.
type Snapshot struct {
	Total         int     `json:"total"`
	Valid         int     `json:"valid"`
	Corrected     int     `json:"corrected"`
	Partial       int     `json:"partially_corrected"`
	Invalid       int     `json:"invalid"`
	Errors        int     `json:"errors"`
	SuccessRate   float64 `json:"success_rate"`
	AvgIterations float64 `json:"avg_iterations"`
	AvgLatencyMS  float64 `json:"avg_processing_time_ms"`
}

// Stats aggregates validation outcomes in memory and keeps the most recent
// entries. It is safe for concurrent use.
type Stats struct {
	mu         sync.Mutex
	snap       Snapshot
	iterations int
	latencyMS  float64
	history    []Entry
	next       int
	size       int
	now        func() time.Time
}

// NewStats returns a collector keeping at most size history entries.
func NewStats(size int) *Stats {
	if size < 1 {
		size = 1
	}
	return &Stats{size: size, history: make([]Entry, 0, size), now: time.Now}
}

// Record adds one run. rep is the report built for it.
func (s *Stats) Record(res *schema.PipelineResult, rep *schema.Report, err error) {
	e := Entry{
		RunID:            rep.Meta.RunID,
		InputPreview:     preview(rep.Input.Text),
		Verdict:          rep.Summary.Verdict,
		ViolationsCount:  len(rep.Violations),
		Iterations:       rep.Summary.Iterations,
		ProcessingTimeMS: rep.Meta.ProcessingTimeMS,
	}
	if res != nil {
		e.WasCorrected = res.WasCorrected()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e.Timestamp = s.now().UTC()

	s.snap.Total++
	switch {
	case err != nil || e.Verdict == schema.VerdictError:
		s.snap.Errors++
	case e.Verdict == schema.VerdictValid:
		s.snap.Valid++
	case e.Verdict == schema.VerdictCorrected:
		s.snap.Corrected++
	case e.Verdict == schema.VerdictPartiallyCorrected:
		s.snap.Partial++
	default:
		s.snap.Invalid++
	}
	s.iterations += e.Iterations
	s.latencyMS += e.ProcessingTimeMS

	if len(s.history) < s.size {
		s.history = append(s.history, e)
	} else {
		s.history[s.next] = e
	}
	s.next = (s.next + 1) % s.size
}

// Snapshot returns the current totals and averages.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	if out.Total > 0 {
		n := float64(out.Total)
		out.SuccessRate = float64(out.Valid+out.Corrected) / n
		out.AvgIterations = float64(s.iterations) / n
		out.AvgLatencyMS = s.latencyMS / n
	}
	return out
}

// History returns up to limit entries, oldest first.
func (s *Stats) History(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	ordered := make([]Entry, 0, n)
	if n < s.size {
		ordered = append(ordered, s.history...)
	} else {
		ordered = append(ordered, s.history[s.next:]...)
		ordered = append(ordered, s.history[:s.next]...)
	}
	if limit > 0 && limit < len(ordered) {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "..."
}
