package sheet

import (
	"context"
	"fmt"
	"time"
)

// lockedFormat greys out a column. Format strings are positional.
const lockedFormat = ",,,,,,,,,18,,,,,,"

// TemplateColumns returns the column layout of a fresh planning sheet.
func TemplateColumns() []Column {
	return []Column{
		{Title: "Create", Type: ColumnTypePicklist, Options: []string{"yes", "no"},
			Description: "To check out a webinar for creation, change this value to 'yes'. Required field."},
		{Title: "Start Date", Type: ColumnTypeDate,
			Description: "Required field."},
		{Title: "Start Time", Type: ColumnTypeText,
			Description: "24-hour clock HH:MM format, UTC. Required field."},
		{Title: "Duration", Type: ColumnTypeText,
			Description: "In minutes. If not specified, the standard duration is used."},
		{Title: "Title", Type: ColumnTypeText,
			Description: "128 characters maximum. Required field."},
		{Title: "Agenda", Type: ColumnTypeText,
			Description: "1300 characters maximum."},
		{Title: "Cohosts", Type: ColumnTypeMultiContact,
			Description: "Multiple contacts may be selected."},
		{Title: "Panelists", Type: ColumnTypeMultiContact,
			Description: "Comma-separated list of 'name <email>'. Nicknames can be used."},
		{Title: "Webinar ID", Type: ColumnTypeText, Primary: true,
			Description: "Automatically populated and used for the automation. Required field."},
		{Title: "Attendee URL", Type: ColumnTypeText,
			Description: "Automatically populated. This is the Join URL, NOT the Registration URL."},
		{Title: "Host Key", Type: ColumnTypeText,
			Description: "Automatically populated."},
		{Title: "Registrant Count", Type: ColumnTypeText,
			Description: "Automatically populated."},
	}
}

// CreateTemplate creates a new sheet with the template layout and applies the
// column settings the API refuses at creation time: validation on the input
// pickers and locking of the automatically populated columns.
func (c *Client) CreateTemplate(ctx context.Context, now time.Time) (*Sheet, error) {
	spec := Sheet{
		Name:    "Template " + now.UTC().Format("20060102-150405"),
		Columns: TemplateColumns(),
	}
	created, err := c.CreateSheet(ctx, spec)
	if err != nil {
		return nil, err
	}

	for _, col := range created.Columns {
		var update *Column
		switch col.Title {
		case "Create":
			update = &Column{Title: col.Title, Validation: true, Format: lockedFormat}
		case "Start Date":
			update = &Column{Title: col.Title, Validation: true}
		case "Webinar ID", "Attendee URL", "Host Key", "Registrant Count":
			update = &Column{Title: col.Title, Locked: true, Format: lockedFormat}
		}
		if update == nil {
			continue
		}
		if err := c.UpdateColumn(ctx, created.ID, col.ID, *update); err != nil {
			return created, fmt.Errorf("template created but column setup failed: %w", err)
		}
	}
	return created, nil
}
