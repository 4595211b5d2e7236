package webex

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Registration controls the webinar's registration form.
type Registration struct {
	AutoAcceptRequest bool `json:"autoAcceptRequest"`
	RequireFirstName  bool `json:"requireFirstName"`
	RequireLastName   bool `json:"requireLastName"`
	RequireEmail      bool `json:"requireEmail"`
}

// Webinar is a scheduled meeting of scheduledType "webinar".
type Webinar struct {
	ID                    string        `json:"id"`
	Title                 string        `json:"title"`
	Agenda                string        `json:"agenda,omitempty"`
	ScheduledType         string        `json:"scheduledType,omitempty"`
	MeetingType           string        `json:"meetingType,omitempty"`
	State                 string        `json:"state,omitempty"`
	Start                 time.Time     `json:"start"`
	End                   time.Time     `json:"end"`
	Timezone              string        `json:"timezone,omitempty"`
	SiteURL               string        `json:"siteUrl,omitempty"`
	WebLink               string        `json:"webLink,omitempty"`
	Password              string        `json:"password,omitempty"`
	PanelistPassword      string        `json:"panelistPassword,omitempty"`
	HostKey               string        `json:"hostKey,omitempty"`
	HostEmail             string        `json:"hostEmail,omitempty"`
	ReminderTime          int           `json:"reminderTime,omitempty"`
	Registration          *Registration `json:"registration,omitempty"`
	EnabledJoinBeforeHost bool          `json:"enabledJoinBeforeHost,omitempty"`
	JoinBeforeHostMinutes int           `json:"joinBeforeHostMinutes,omitempty"`
}

// WebinarRequest is the body of create and update calls. Nil pointers are
// left for the API to default.
type WebinarRequest struct {
	Title                 string        `json:"title"`
	Agenda                string        `json:"agenda,omitempty"`
	ScheduledType         string        `json:"scheduledType,omitempty"`
	Start                 time.Time     `json:"start"`
	End                   time.Time     `json:"end"`
	Timezone              string        `json:"timezone,omitempty"`
	SiteURL               string        `json:"siteUrl,omitempty"`
	Password              string        `json:"password,omitempty"`
	PanelistPassword      string        `json:"panelistPassword,omitempty"`
	ReminderTime          *int          `json:"reminderTime,omitempty"`
	Registration          *Registration `json:"registration,omitempty"`
	EnabledJoinBeforeHost *bool         `json:"enabledJoinBeforeHost,omitempty"`
	JoinBeforeHostMinutes *int          `json:"joinBeforeHostMinutes,omitempty"`
	// SendEmail is only honoured on update; it mails attendees about the change.
	SendEmail *bool `json:"sendEmail,omitempty"`
}

// CreateWebinar schedules a new webinar.
func (c *Client) CreateWebinar(ctx context.Context, req WebinarRequest) (*Webinar, error) {
	var w Webinar
	if _, err := c.do(ctx, "POST", "/meetings", nil, req, &w); err != nil {
		return nil, fmt.Errorf("failed to create webinar: %w", err)
	}
	return &w, nil
}

// GetWebinar fetches a webinar by id. A deleted webinar yields ErrNotFound.
func (c *Client) GetWebinar(ctx context.Context, id string) (*Webinar, error) {
	var w Webinar
	if _, err := c.do(ctx, "GET", "/meetings/"+url.PathEscape(id), nil, nil, &w); err != nil {
		return nil, fmt.Errorf("failed to get webinar %s: %w", id, err)
	}
	return &w, nil
}

// UpdateWebinar replaces the mutable fields of a webinar. The API requires a
// password on every update.
func (c *Client) UpdateWebinar(ctx context.Context, id string, req WebinarRequest) (*Webinar, error) {
	var w Webinar
	if _, err := c.do(ctx, "PUT", "/meetings/"+url.PathEscape(id), nil, req, &w); err != nil {
		return nil, fmt.Errorf("failed to update webinar %s: %w", id, err)
	}
	return &w, nil
}

// ListWebinars returns webinar series of the authorized host that start
// within [from, to].
func (c *Client) ListWebinars(ctx context.Context, from, to time.Time) ([]Webinar, error) {
	query := url.Values{}
	query.Set("meetingType", "meetingSeries")
	query.Set("scheduledType", "webinar")
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))
	query.Set("max", "100")

	var all []Webinar
	endpoint := "/meetings"
	for endpoint != "" {
		var page struct {
			Items []Webinar `json:"items"`
		}
		header, err := c.do(ctx, "GET", endpoint, query, nil, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list webinars: %w", err)
		}
		all = append(all, page.Items...)
		endpoint, query = nextLink(header), nil
	}
	return all, nil
}
