// Package report collects the log of one reconciliation run and delivers it
// to the operators once the run is over.
//
// A run logs through a single *slog.Logger. Records fan out to the console,
// to a full log kept as an attachment (info and above) and to a brief log
// sent as the message body (warnings and errors).
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Header opens every report body.
const Header = "Done creating and updating webinars. Full log attached. Brief log follows."

// Thresholds of the two stored logs.
const (
	BriefLevel = slog.LevelWarn
	FullLevel  = slog.LevelInfo
)

// Report accumulates one run's logs and outcome counts.
type Report struct {
	mu      sync.Mutex
	brief   bytes.Buffer
	full    bytes.Buffer
	counts  map[string]int
	started time.Time
	logger  *slog.Logger
}

// New creates a Report whose logger also writes records at or above
// consoleLevel to console. A nil console disables console output.
func New(console io.Writer, consoleLevel slog.Level, started time.Time) *Report {
	r := &Report{counts: map[string]int{}, started: started}

	handlers := []slog.Handler{
		&lineHandler{mu: &r.mu, w: &r.brief, level: BriefLevel},
		&lineHandler{mu: &r.mu, w: &r.full, level: FullLevel, timestamps: true},
	}
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel}))
	}
	r.logger = slog.New(fanout(handlers))
	return r
}

// Logger returns the logger feeding the report.
func (r *Report) Logger() *slog.Logger {
	return r.logger
}

// Brief returns the warnings and errors logged so far.
func (r *Report) Brief() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.brief.String()
}

// Full returns everything logged at info and above.
func (r *Report) Full() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full.String()
}

// Record counts one row outcome.
func (r *Report) Record(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[state]++
}

// Counts returns a copy of the outcome counts.
func (r *Report) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Body is the message sent to operators: header, outcome summary and the
// brief log.
func (r *Report) Body() string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n\n")

	counts := r.Counts()
	if len(counts) > 0 {
		states := make([]string, 0, len(counts))
		for s := range counts {
			states = append(states, s)
		}
		sort.Strings(states)
		parts := make([]string, len(states))
		for i, s := range states {
			parts[i] = fmt.Sprintf("%s: %d", s, counts[s])
		}
		b.WriteString("Rows " + strings.Join(parts, ", ") + "\n\n")
	}

	b.WriteString(r.Brief())
	return b.String()
}

// AttachmentName names the full log file after the run's start time.
func (r *Report) AttachmentName() string {
	return r.started.UTC().Format("20060102-150405") + " log.txt"
}

// Deliver sends the report through sink. Delivery errors are logged and
// never returned; the run is already over.
func (r *Report) Deliver(ctx context.Context, sink Sink) {
	att := Attachment{Name: r.AttachmentName(), Content: []byte(r.Full())}
	if err := sink.Send(ctx, r.Body(), att); err != nil {
		r.logger.Error("failed to deliver run report", "sink", sink.Name(), "error", err)
		return
	}
	r.logger.Debug("run report delivered", "sink", sink.Name())
}
