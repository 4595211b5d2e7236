package webex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Invitee is a person invited to a webinar. Panelists and cohosts are
// invitees with the matching flag set.
type Invitee struct {
	ID          string `json:"id"`
	MeetingID   string `json:"meetingId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CoHost      bool   `json:"coHost"`
	Panelist    bool   `json:"panelist"`
}

// InviteeRequest is the body of create and update invitee calls.
type InviteeRequest struct {
	MeetingID   string `json:"meetingId,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	CoHost      bool   `json:"coHost"`
	Panelist    bool   `json:"panelist"`
	SendEmail   bool   `json:"sendEmail"`
}

// ListInvitees returns every invitee of a webinar, following pagination.
// panelistsOnly narrows the listing to panelists and cohosts.
func (c *Client) ListInvitees(ctx context.Context, meetingID string, panelistsOnly bool) ([]Invitee, error) {
	query := url.Values{}
	query.Set("meetingId", meetingID)
	query.Set("max", "100")
	if panelistsOnly {
		query.Set("panelist", strconv.FormatBool(true))
	}

	var all []Invitee
	endpoint := "/meetingInvitees"
	for endpoint != "" {
		var page struct {
			Items []Invitee `json:"items"`
		}
		header, err := c.do(ctx, "GET", endpoint, query, nil, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list invitees of %s: %w", meetingID, err)
		}
		all = append(all, page.Items...)
		endpoint, query = nextLink(header), nil
	}
	return all, nil
}

// CreateInvitee invites a person to a webinar.
func (c *Client) CreateInvitee(ctx context.Context, req InviteeRequest) (*Invitee, error) {
	var inv Invitee
	if _, err := c.do(ctx, "POST", "/meetingInvitees", nil, req, &inv); err != nil {
		return nil, fmt.Errorf("failed to create invitee %s: %w", req.Email, err)
	}
	return &inv, nil
}

// UpdateInvitee changes an invitee's display name or role.
func (c *Client) UpdateInvitee(ctx context.Context, id string, req InviteeRequest) (*Invitee, error) {
	var inv Invitee
	if _, err := c.do(ctx, "PUT", "/meetingInvitees/"+url.PathEscape(id), nil, req, &inv); err != nil {
		return nil, fmt.Errorf("failed to update invitee %s: %w", req.Email, err)
	}
	return &inv, nil
}

// DeleteInvitee removes an invitee from its webinar.
func (c *Client) DeleteInvitee(ctx context.Context, id string) error {
	if _, err := c.do(ctx, "DELETE", "/meetingInvitees/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete invitee %s: %w", id, err)
	}
	return nil
}
