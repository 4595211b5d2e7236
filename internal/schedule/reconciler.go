// Package schedule reconciles the planning sheet with Webex webinars.
//
// Each eligible row is turned into a desired webinar, which is created or
// updated remotely, and the webinar's panelists and cohosts are brought in
// line with the row's contact lists. Rows are processed in order and never
// affect each other; a failing row is logged and retried on the next run.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/corey/webinar-sync/internal/contacts"
	"github.com/corey/webinar-sync/internal/sheet"
	"github.com/corey/webinar-sync/internal/webex"
)

// AttendeeURLNote is written to the attendee URL column of a new webinar.
// The API does not expose the attendee link.
const AttendeeURLNote = "Manually copy the Attendee URL from Webex"

// Provider is the subset of the Webex API used by the reconciler.
// Implemented by *webex.Client.
type Provider interface {
	CreateWebinar(ctx context.Context, req webex.WebinarRequest) (*webex.Webinar, error)
	GetWebinar(ctx context.Context, id string) (*webex.Webinar, error)
	UpdateWebinar(ctx context.Context, id string, req webex.WebinarRequest) (*webex.Webinar, error)
	ListWebinars(ctx context.Context, from, to time.Time) ([]webex.Webinar, error)
	ListInvitees(ctx context.Context, meetingID string, panelistsOnly bool) ([]webex.Invitee, error)
	CreateInvitee(ctx context.Context, req webex.InviteeRequest) (*webex.Invitee, error)
	UpdateInvitee(ctx context.Context, id string, req webex.InviteeRequest) (*webex.Invitee, error)
	DeleteInvitee(ctx context.Context, id string) error
}

// Sheet is the bound planning sheet. Implemented by *sheet.Table.
type Sheet interface {
	Rows() []sheet.Row
	Has(prop string) bool
	Write(ctx context.Context, rowID int64, values map[string]any) error
}

// State is the terminal state of one row.
type State int

const (
	Skipped State = iota
	Failed
	Done
	PartiallyFailed
	// NeedsManualReconciliation means a webinar exists remotely but its id
	// could not be recorded in the row.
	NeedsManualReconciliation
)

func (s State) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Done:
		return "done"
	case PartiallyFailed:
		return "partially failed"
	case NeedsManualReconciliation:
		return "needs manual reconciliation"
	}
	return "unknown"
}

// Outcome is the result of reconciling one row.
type Outcome struct {
	RowID     int64
	RowNumber int
	Title     string
	WebinarID string
	State     State
	Created   bool
	Updated   bool
	Err       error
}

// Config holds the settings the reconciler reads. Defaults supplies
// property values for empty cells; Directory resolves nicknames.
type Config struct {
	Defaults  map[string]any
	Directory contacts.Directory
}

// Reconciler runs one pass over a sheet.
type Reconciler struct {
	provider  Provider
	sheet     Sheet
	resolver  *Resolver
	directory contacts.Directory
	now       func() time.Time
	logger    *slog.Logger

	// claimed holds webinar ids already tied to a row, which the duplicate
	// guard must never adopt for another row.
	claimed map[string]bool
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now, used to decide whether a reminder can still
// be sent.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger sets the logger that feeds the run report.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// NewReconciler creates a Reconciler for one bound sheet.
func NewReconciler(provider Provider, s Sheet, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:  provider,
		sheet:     s,
		resolver:  NewResolver(cfg.Defaults),
		directory: cfg.Directory,
		now:       time.Now,
		logger:    slog.Default(),
		claimed:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles every row in sheet order. Row failures are reported in the
// outcomes; the returned error is only set when ctx ends the run early, in
// which case the outcomes of the rows already processed are returned.
func (r *Reconciler) Run(ctx context.Context) ([]Outcome, error) {
	rows := r.sheet.Rows()
	r.claimed = make(map[string]bool, len(rows))
	for _, row := range rows {
		if id := row.Text(sheet.PropWebinarID); id != "" {
			r.claimed[id] = true
		}
	}

	outcomes := make([]Outcome, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			r.logger.Error("run interrupted", "processed", len(outcomes), "remaining", len(rows)-len(outcomes), "error", err)
			return outcomes, err
		}
		outcomes = append(outcomes, r.reconcileRow(ctx, row))
	}
	return outcomes, nil
}

// Eligible reports whether a row asks to be scheduled.
func Eligible(row sheet.Row) bool {
	return strings.EqualFold(row.Text(sheet.PropCreate), "yes")
}

func (r *Reconciler) reconcileRow(ctx context.Context, row sheet.Row) Outcome {
	out := Outcome{RowID: row.ID, RowNumber: row.Number}
	if !Eligible(row) {
		out.State = Skipped
		return out
	}

	out.Title = r.title(row)
	log := r.logger.With("row", row.Number, "title", out.Title)

	d, err := r.desired(row)
	if err != nil {
		log.Error("failed to process webinar, property is not valid", "error", err)
		out.State, out.Err = Failed, err
		return out
	}
	log.Info("processing webinar")
	for _, entry := range d.Rejected {
		log.Warn("ignored contact entry that is not a name and one email", "entry", entry)
	}

	var w *webex.Webinar
	recorded := true
	out.WebinarID = row.Text(sheet.PropWebinarID)
	if out.WebinarID == "" {
		c, err := r.create(ctx, log, row, d)
		if err != nil {
			out.State, out.Err = Failed, err
			return out
		}
		out.WebinarID, recorded = c.webinar.ID, c.recorded
		r.claimed[out.WebinarID] = true
		if !c.adopted {
			w, out.Created = c.webinar, true
		}
	}

	countFailed := false
	if w == nil {
		w, out.Updated, countFailed, err = r.update(ctx, log, row, d, out.WebinarID)
		if err != nil {
			out.State, out.Err = Failed, err
			return out
		}
	}

	inviteErr := r.reconcileInvitees(ctx, log, w.ID, d)

	switch {
	case !recorded:
		out.State, out.Err = NeedsManualReconciliation, errNotRecorded
	case inviteErr != nil:
		out.State, out.Err = PartiallyFailed, inviteErr
	case countFailed:
		out.State = PartiallyFailed
	default:
		out.State = Done
	}
	return out
}

var errNotRecorded = errors.New("webinar id not recorded in the sheet")

// created is the result of the create path.
type created struct {
	webinar *webex.Webinar
	// adopted is set when an existing webinar was found instead of creating
	// one; it still needs the update path.
	adopted bool
	// recorded is false when the webinar id could not be written to the row.
	recorded bool
}

// create schedules a new webinar and records its id in the row. Before
// creating, it adopts a webinar left by an earlier run whose id never made
// it into the sheet.
func (r *Reconciler) create(ctx context.Context, log *slog.Logger, row sheet.Row, d *Desired) (created, error) {
	if existing := r.findDuplicate(ctx, log, d); existing != nil {
		log.Warn("found existing webinar with the same title and start, adopting it", "webinar", existing.ID)
		if err := r.sheet.Write(ctx, row.ID, map[string]any{sheet.PropWebinarID: existing.ID}); err != nil {
			log.Error("failed to save adopted webinar id in the sheet, record it manually", "webinar", existing.ID, "error", err)
			return created{webinar: existing, adopted: true}, nil
		}
		return created{webinar: existing, adopted: true, recorded: true}, nil
	}

	w, err := r.provider.CreateWebinar(ctx, d.CreateRequest())
	if err != nil {
		logAPIError(log, "failed to create webinar", err)
		return created{}, err
	}
	log.Warn("created webinar", "webinar", w.ID)

	values := map[string]any{}
	recorded := r.sheet.Has(sheet.PropWebinarID)
	if recorded {
		values[sheet.PropWebinarID] = w.ID
	} else {
		log.Error("no column in the sheet to save the webinar id", "webinar", w.ID)
	}
	if r.sheet.Has(sheet.PropAttendeeURL) {
		values[sheet.PropAttendeeURL] = AttendeeURLNote
	} else {
		log.Info("no column in the sheet to save the attendee URL")
	}
	if r.sheet.Has(sheet.PropHostKey) {
		values[sheet.PropHostKey] = w.HostKey
	} else {
		log.Info("no column in the sheet to save the host key")
	}

	if err := r.sheet.Write(ctx, row.ID, values); err != nil {
		log.Error("failed to save created webinar in the sheet, record the webinar id manually", "webinar", w.ID, "error", err)
		return created{webinar: w}, nil
	}
	log.Info("saved webinar information in the sheet")
	return created{webinar: w, recorded: recorded}, nil
}

// findDuplicate looks for a webinar with the row's exact title and start
// that no row has claimed yet. A failed lookup is logged and treated as no
// match.
func (r *Reconciler) findDuplicate(ctx context.Context, log *slog.Logger, d *Desired) *webex.Webinar {
	existing, err := r.provider.ListWebinars(ctx, d.Start, d.End)
	if err != nil {
		log.Warn("could not check for an existing webinar before creating", "error", err)
		return nil
	}
	for i := range existing {
		if r.claimed[existing[i].ID] {
			continue
		}
		if existing[i].Title == d.Title && existing[i].Start.Equal(d.Start) {
			return &existing[i]
		}
	}
	return nil
}

// update brings an existing webinar in line with d and refreshes the row's
// registrant count. countFailed reports a failed count refresh.
func (r *Reconciler) update(ctx context.Context, log *slog.Logger, row sheet.Row, d *Desired, id string) (w *webex.Webinar, updated, countFailed bool, err error) {
	w, err = r.provider.GetWebinar(ctx, id)
	if err != nil {
		if errors.Is(err, webex.ErrNotFound) {
			log.Error("webinar not found, it may have been deleted in Webex", "webinar", id)
		}
		logAPIError(log, "failed to update webinar", err)
		return nil, false, false, err
	}

	notify := d.Title != w.Title || !d.Start.Equal(w.Start) || !d.End.Equal(w.End)
	if notify || d.Agenda != w.Agenda {
		w, err = r.provider.UpdateWebinar(ctx, id, d.UpdateRequest(w.Password, notify))
		if err != nil {
			logAPIError(log, "failed to update webinar", err)
			return nil, false, false, err
		}
		if w.ID == "" {
			w.ID = id
		}
		updated = true
		log.Warn("updated webinar information", "webinar", id, "notified", notify)
	}

	if err := r.refreshRegistrantCount(ctx, log, row, id); err != nil {
		log.Error("failed to refresh registrant count in the sheet", "error", err)
		countFailed = true
	}
	return w, updated, countFailed, nil
}

func (r *Reconciler) refreshRegistrantCount(ctx context.Context, log *slog.Logger, row sheet.Row, id string) error {
	if !r.sheet.Has(sheet.PropRegistrantCount) {
		log.Debug("no column in the sheet to save the registrant count")
		return nil
	}
	invitees, err := r.provider.ListInvitees(ctx, id, false)
	if err != nil {
		return err
	}
	count := strconv.Itoa(len(invitees))
	if row.Text(sheet.PropRegistrantCount) == count {
		return nil
	}
	if err := r.sheet.Write(ctx, row.ID, map[string]any{sheet.PropRegistrantCount: len(invitees)}); err != nil {
		return err
	}
	log.Info("refreshed registrant count in the sheet", "count", len(invitees))
	return nil
}

// logAPIError logs err and then each provider detail message on its own.
func logAPIError(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	for _, detail := range webex.ErrorDetails(err) {
		log.Error("  " + detail)
	}
}
