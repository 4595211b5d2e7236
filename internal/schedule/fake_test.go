package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/corey/webinar-sync/internal/sheet"
	"github.com/corey/webinar-sync/internal/webex"
)

// fakeProvider keeps webinars and invitees in memory and records every call.
type fakeProvider struct {
	webinars map[string]webex.Webinar
	invitees map[string]webex.Invitee
	calls    []string
	nextID   int

	creates []webex.WebinarRequest
	updates []webex.WebinarRequest

	failCreate   error
	failGet      error
	failList     error
	failInvitees map[string]error // by email
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		webinars:     map[string]webex.Webinar{},
		invitees:     map[string]webex.Invitee{},
		failInvitees: map[string]error{},
	}
}

func (p *fakeProvider) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s%d", prefix, p.nextID)
}

func (p *fakeProvider) addWebinar(w webex.Webinar) {
	p.webinars[w.ID] = w
}

func (p *fakeProvider) addInvitee(meetingID, email, name string, cohost bool) {
	id := p.id("i")
	p.invitees[id] = webex.Invitee{ID: id, MeetingID: meetingID, Email: email, DisplayName: name, Panelist: true, CoHost: cohost}
}

func (p *fakeProvider) CreateWebinar(_ context.Context, req webex.WebinarRequest) (*webex.Webinar, error) {
	p.calls = append(p.calls, "CreateWebinar "+req.Title)
	p.creates = append(p.creates, req)
	if p.failCreate != nil {
		return nil, p.failCreate
	}
	w := webex.Webinar{
		ID:       p.id("w"),
		Title:    req.Title,
		Agenda:   req.Agenda,
		Start:    req.Start,
		End:      req.End,
		Password: "generated",
		HostKey:  "424242",
	}
	p.webinars[w.ID] = w
	return &w, nil
}

func (p *fakeProvider) GetWebinar(_ context.Context, id string) (*webex.Webinar, error) {
	p.calls = append(p.calls, "GetWebinar "+id)
	if p.failGet != nil {
		return nil, p.failGet
	}
	w, ok := p.webinars[id]
	if !ok {
		return nil, fmt.Errorf("failed to get webinar %s: %w", id, &webex.APIError{StatusCode: 404, Details: []string{"Meeting not found"}})
	}
	return &w, nil
}

func (p *fakeProvider) UpdateWebinar(_ context.Context, id string, req webex.WebinarRequest) (*webex.Webinar, error) {
	p.calls = append(p.calls, "UpdateWebinar "+id)
	p.updates = append(p.updates, req)
	w := p.webinars[id]
	w.Title, w.Agenda, w.Start, w.End, w.Password = req.Title, req.Agenda, req.Start, req.End, req.Password
	p.webinars[id] = w
	return &w, nil
}

func (p *fakeProvider) ListWebinars(_ context.Context, from, to time.Time) ([]webex.Webinar, error) {
	p.calls = append(p.calls, "ListWebinars")
	if p.failList != nil {
		return nil, p.failList
	}
	var out []webex.Webinar
	for _, w := range p.webinars {
		if !w.Start.Before(from) && !w.Start.After(to) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (p *fakeProvider) ListInvitees(_ context.Context, meetingID string, panelistsOnly bool) ([]webex.Invitee, error) {
	p.calls = append(p.calls, "ListInvitees "+meetingID)
	var out []webex.Invitee
	for _, inv := range p.invitees {
		if inv.MeetingID != meetingID {
			continue
		}
		if panelistsOnly && !inv.Panelist && !inv.CoHost {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *fakeProvider) CreateInvitee(_ context.Context, req webex.InviteeRequest) (*webex.Invitee, error) {
	p.calls = append(p.calls, "CreateInvitee "+req.Email)
	if err := p.failInvitees[req.Email]; err != nil {
		return nil, err
	}
	inv := webex.Invitee{ID: p.id("i"), MeetingID: req.MeetingID, Email: req.Email, DisplayName: req.DisplayName, Panelist: req.Panelist, CoHost: req.CoHost}
	p.invitees[inv.ID] = inv
	return &inv, nil
}

func (p *fakeProvider) UpdateInvitee(_ context.Context, id string, req webex.InviteeRequest) (*webex.Invitee, error) {
	p.calls = append(p.calls, "UpdateInvitee "+req.Email)
	if err := p.failInvitees[req.Email]; err != nil {
		return nil, err
	}
	inv := p.invitees[id]
	inv.DisplayName, inv.Panelist, inv.CoHost = req.DisplayName, req.Panelist, req.CoHost
	p.invitees[id] = inv
	return &inv, nil
}

func (p *fakeProvider) DeleteInvitee(_ context.Context, id string) error {
	email := p.invitees[id].Email
	p.calls = append(p.calls, "DeleteInvitee "+email)
	if err := p.failInvitees[email]; err != nil {
		return err
	}
	delete(p.invitees, id)
	return nil
}

// mutations returns the calls that change remote state.
func (p *fakeProvider) mutations() []string {
	var out []string
	for _, c := range p.calls {
		if strings.HasPrefix(c, "Create") || strings.HasPrefix(c, "Update") || strings.HasPrefix(c, "Delete") {
			out = append(out, c)
		}
	}
	return out
}

// fakeSheet is a bound sheet whose writes land in the row cells, so a second
// run sees what the first one wrote.
type fakeSheet struct {
	rows      []sheet.Row
	bound     map[string]bool
	writes    []map[string]any
	failWrite error
}

func newFakeSheet() *fakeSheet {
	bound := map[string]bool{}
	for prop := range sheet.DefaultColumns() {
		bound[prop] = true
	}
	return &fakeSheet{bound: bound}
}

// addRow appends a row. Values are either cell text or a contact list given
// as []sheet.ContactValue.
func (s *fakeSheet) addRow(values map[string]any) sheet.Row {
	cells := map[string]*sheet.Cell{}
	for prop := range s.bound {
		cells[prop] = &sheet.Cell{}
	}
	for prop, v := range values {
		if list, ok := v.([]sheet.ContactValue); ok {
			cells[prop] = &sheet.Cell{ObjectValue: &sheet.ObjectValue{ObjectType: sheet.ObjectTypeMultiContact, Values: list}}
			continue
		}
		cells[prop] = &sheet.Cell{Value: v}
	}
	row := sheet.NewRow(int64(100+len(s.rows)), len(s.rows)+1, cells)
	s.rows = append(s.rows, row)
	return row
}

func (s *fakeSheet) Rows() []sheet.Row { return s.rows }

func (s *fakeSheet) Has(prop string) bool { return s.bound[prop] }

func (s *fakeSheet) Write(_ context.Context, rowID int64, values map[string]any) error {
	s.writes = append(s.writes, values)
	if s.failWrite != nil {
		return s.failWrite
	}
	for _, row := range s.rows {
		if row.ID != rowID {
			continue
		}
		for prop, v := range values {
			cell, ok := row.Cell(prop)
			if !ok {
				return errors.New("unbound " + prop)
			}
			cell.Value = v
		}
	}
	return nil
}
