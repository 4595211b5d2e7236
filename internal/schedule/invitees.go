package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/corey/webinar-sync/internal/contacts"
	"github.com/corey/webinar-sync/internal/webex"
)

// reconcileInvitees makes the webinar's panelists and cohosts match d.
// Every call is attempted; the error reports how many failed.
func (r *Reconciler) reconcileInvitees(ctx context.Context, log *slog.Logger, meetingID string, d *Desired) error {
	listed, err := r.provider.ListInvitees(ctx, meetingID, true)
	if err != nil {
		logAPIError(log, "failed to list invitees", err)
		return err
	}

	// Whatever is left in current after the desired pass gets uninvited
	current := make(map[string]webex.Invitee, len(listed))
	for _, inv := range listed {
		if inv.Panelist || inv.CoHost {
			current[contacts.Key(inv.Email)] = inv
		}
	}

	desired := d.Invitees()
	failed := 0
	for _, email := range sortedKeys(desired) {
		want := desired[email]
		req := webex.InviteeRequest{
			MeetingID:   meetingID,
			Email:       email,
			DisplayName: want.Name,
			Panelist:    true,
			CoHost:      want.CoHost,
			SendEmail:   true,
		}

		have, invited := current[email]
		if !invited {
			if _, err := r.provider.CreateInvitee(ctx, req); err != nil {
				logAPIError(log.With("email", email), "failed to create invitee", err)
				failed++
				continue
			}
			log.Info("invited", "name", want.Name, "email", email, "cohost", want.CoHost)
			continue
		}

		delete(current, email)
		if have.DisplayName == want.Name && have.CoHost == want.CoHost {
			continue
		}
		if _, err := r.provider.UpdateInvitee(ctx, have.ID, req); err != nil {
			logAPIError(log.With("email", email), "failed to update invitee", err)
			failed++
			continue
		}
		log.Info("updated invitee", "name", want.Name, "email", email, "cohost", want.CoHost)
	}

	for _, email := range sortedKeys(current) {
		stale := current[email]
		if err := r.provider.DeleteInvitee(ctx, stale.ID); err != nil {
			logAPIError(log.With("email", email), "failed to delete invitee", err)
			failed++
			continue
		}
		log.Info("uninvited", "name", stale.DisplayName, "email", email)
	}

	if failed > 0 {
		return fmt.Errorf("%d invitee changes failed", failed)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
