package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/corey/webinar-sync/internal/sheet"
	"github.com/corey/webinar-sync/internal/webex"
)

// Built-in values used when neither the row nor the defaults set a property.
const (
	DefaultTitle         = "Generic Webinar Title"
	DefaultScheduledType = "webinar"
	DefaultDuration      = 60
	DefaultTimezone      = "UTC"
	DefaultReminderTime  = 30

	// MaxDuration is the longest webinar in minutes the provider schedules.
	MaxDuration = 24 * 60
)

// Properties read only from the defaults map unless a column is mapped to
// them.
const (
	PropScheduledType         = "scheduledType"
	PropTimezone              = "timezone"
	PropSiteURL               = "siteUrl"
	PropPassword              = "password"
	PropPanelistPassword      = "panelistPassword"
	PropReminderTime          = "reminderTime"
	PropRegistration          = "registration"
	PropEnabledJoinBeforeHost = "enabledJoinBeforeHost"
	PropJoinBeforeHostMinutes = "joinBeforeHostMinutes"
	PropAlwaysInvitePanelists = "alwaysInvitePanelists"
	PropNoCohosts             = "noCohosts"
)

// startLayout is how the start date and time cells are combined. Smartsheet
// returns dates in UTC.
const startLayout = "2006-01-02 15:04"

// ErrInvalidProperty marks a row whose properties cannot form a webinar.
var ErrInvalidProperty = errors.New("webinar property is not valid")

// Desired is the webinar a row asks for.
type Desired struct {
	Title                 string
	Agenda                string
	ScheduledType         string
	Start                 time.Time
	End                   time.Time
	Duration              int
	Timezone              string
	SiteURL               string
	Password              string
	PanelistPassword      string
	ReminderTime          int
	Registration          webex.Registration
	EnabledJoinBeforeHost *bool
	JoinBeforeHostMinutes *int

	// Panelists and Cohosts map lower-cased emails to display names. An
	// email is never in both.
	Panelists map[string]string
	Cohosts   map[string]string
	// Rejected lists contact entries that could not be read.
	Rejected []string
}

// Attendee is one desired invitee.
type Attendee struct {
	Name   string
	CoHost bool
}

// Invitees merges panelists and cohosts. Cohosts win on collision.
func (d *Desired) Invitees() map[string]Attendee {
	out := make(map[string]Attendee, len(d.Panelists)+len(d.Cohosts))
	for email, name := range d.Panelists {
		out[email] = Attendee{Name: name}
	}
	for email, name := range d.Cohosts {
		out[email] = Attendee{Name: name, CoHost: true}
	}
	return out
}

// CreateRequest is the full create call for the webinar.
func (d *Desired) CreateRequest() webex.WebinarRequest {
	reminder := d.ReminderTime
	reg := d.Registration
	return webex.WebinarRequest{
		Title:                 d.Title,
		Agenda:                d.Agenda,
		ScheduledType:         d.ScheduledType,
		Start:                 d.Start,
		End:                   d.End,
		Timezone:              d.Timezone,
		SiteURL:               d.SiteURL,
		Password:              d.Password,
		PanelistPassword:      d.PanelistPassword,
		ReminderTime:          &reminder,
		Registration:          &reg,
		EnabledJoinBeforeHost: d.EnabledJoinBeforeHost,
		JoinBeforeHostMinutes: d.JoinBeforeHostMinutes,
	}
}

// UpdateRequest carries the fields the provider lets an update change.
// Registration, reminder and site are fixed at creation. The provider
// requires a password, so the current one is kept when the row has none.
func (d *Desired) UpdateRequest(currentPassword string, notify bool) webex.WebinarRequest {
	password := d.Password
	if password == "" {
		password = currentPassword
	}
	return webex.WebinarRequest{
		Title:                 d.Title,
		Agenda:                d.Agenda,
		ScheduledType:         d.ScheduledType,
		Start:                 d.Start,
		End:                   d.End,
		Timezone:              d.Timezone,
		Password:              password,
		PanelistPassword:      d.PanelistPassword,
		EnabledJoinBeforeHost: d.EnabledJoinBeforeHost,
		JoinBeforeHostMinutes: d.JoinBeforeHostMinutes,
		SendEmail:             &notify,
	}
}

// title resolves the row's title, falling back to DefaultTitle.
func (r *Reconciler) title(row sheet.Row) string {
	if v, ok := r.resolver.Resolve(sheet.PropTitle, row); ok && v.String() != "" {
		return v.String()
	}
	return DefaultTitle
}

// text resolves a scalar property, returning "" when absent.
func (r *Reconciler) text(name string, row sheet.Row) string {
	v, _ := r.resolver.Resolve(name, row)
	return v.String()
}

// desired builds the webinar a row asks for. Errors wrap ErrInvalidProperty.
func (r *Reconciler) desired(row sheet.Row) (*Desired, error) {
	d := &Desired{
		Title:            r.title(row),
		Agenda:           r.text(sheet.PropAgenda, row),
		ScheduledType:    r.text(PropScheduledType, row),
		Timezone:         r.text(PropTimezone, row),
		SiteURL:          r.text(PropSiteURL, row),
		Password:         r.text(PropPassword, row),
		PanelistPassword: r.text(PropPanelistPassword, row),
		Duration:         DefaultDuration,
		ReminderTime:     DefaultReminderTime,
		Registration: webex.Registration{
			AutoAcceptRequest: true,
			RequireFirstName:  true,
			RequireLastName:   true,
			RequireEmail:      true,
		},
	}
	if d.ScheduledType == "" {
		d.ScheduledType = DefaultScheduledType
	}
	if d.Timezone == "" {
		d.Timezone = DefaultTimezone
	}

	date, clock := row.Text(sheet.PropStartDate), row.Text(sheet.PropStartTime)
	start, err := time.ParseInLocation(startLayout, date+" "+clock, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q %q: %v", ErrInvalidProperty, date, clock, err)
	}
	d.Start = start

	if v, ok := r.resolver.Resolve(sheet.PropDuration, row); ok {
		if d.Duration, err = v.Int(); err != nil {
			return nil, fmt.Errorf("%w: duration: %v", ErrInvalidProperty, err)
		}
	}
	if d.Duration <= 0 || d.Duration > MaxDuration {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d minutes, got %d", ErrInvalidProperty, MaxDuration, d.Duration)
	}
	d.End = d.Start.Add(time.Duration(d.Duration) * time.Minute)

	if v, ok := r.resolver.Resolve(PropReminderTime, row); ok {
		if d.ReminderTime, err = v.Int(); err != nil {
			return nil, fmt.Errorf("%w: reminder time: %v", ErrInvalidProperty, err)
		}
	}
	// Too late to send the reminder
	if !r.now().Before(d.Start.Add(-time.Duration(d.ReminderTime) * time.Minute)) {
		d.ReminderTime = 0
	}

	if v, ok := r.resolver.Resolve(PropRegistration, row); ok {
		reg, err := v.Registration()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProperty, err)
		}
		d.Registration = *reg
	}
	if v, ok := r.resolver.Resolve(PropEnabledJoinBeforeHost, row); ok {
		b, err := v.Bool()
		if err != nil {
			return nil, fmt.Errorf("%w: join before host: %v", ErrInvalidProperty, err)
		}
		d.EnabledJoinBeforeHost = &b
	}
	if v, ok := r.resolver.Resolve(PropJoinBeforeHostMinutes, row); ok {
		n, err := v.Int()
		if err != nil {
			return nil, fmt.Errorf("%w: join before host minutes: %v", ErrInvalidProperty, err)
		}
		d.JoinBeforeHostMinutes = &n
	}

	noCohosts := false
	if v, ok := r.resolver.Resolve(PropNoCohosts, row); ok {
		if noCohosts, err = v.Bool(); err != nil {
			return nil, fmt.Errorf("%w: noCohosts: %v", ErrInvalidProperty, err)
		}
	}
	d.Cohosts, d.Panelists, d.Rejected = r.roster(row, noCohosts)
	return d, nil
}

// roster resolves the two contact lists. Cohosts are built first and a
// panelist entry never demotes a cohost. With noCohosts everyone becomes a
// panelist.
func (r *Reconciler) roster(row sheet.Row, noCohosts bool) (cohosts, panelists map[string]string, rejected []string) {
	contactsOf := func(name string) map[string]string {
		v, ok := r.resolver.Resolve(name, row)
		if !ok {
			return map[string]string{}
		}
		m, bad := v.Contacts(r.directory)
		rejected = append(rejected, bad...)
		return m
	}

	cohosts = contactsOf(sheet.PropCohosts)
	panelists = contactsOf(sheet.PropPanelists)
	for email, name := range contactsOf(PropAlwaysInvitePanelists) {
		panelists[email] = name
	}
	for email := range cohosts {
		delete(panelists, email)
	}

	if noCohosts {
		for email, name := range cohosts {
			panelists[email] = name
		}
		cohosts = map[string]string{}
	}
	return cohosts, panelists, rejected
}
