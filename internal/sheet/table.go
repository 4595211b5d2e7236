package sheet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Property names with a column binding.
const (
	PropCreate          = "create"
	PropStartDate       = "startdate"
	PropStartTime       = "starttime"
	PropDuration        = "duration"
	PropTitle           = "title"
	PropAgenda          = "agenda"
	PropCohosts         = "cohosts"
	PropPanelists       = "panelists"
	PropWebinarID       = "webinarId"
	PropAttendeeURL     = "attendeeUrl"
	PropHostKey         = "hostKey"
	PropRegistrantCount = "registrantCount"
)

// RequiredProperties must be bound to a column for a run to start.
var RequiredProperties = []string{PropCreate, PropStartDate, PropStartTime, PropTitle, PropWebinarID}

// DefaultColumns maps property names to the column titles of the template
// sheet. Any property can be remapped, and extra properties can be added.
func DefaultColumns() map[string]string {
	return map[string]string{
		PropCreate:          "Create",
		PropStartDate:       "Start Date",
		PropStartTime:       "Start Time",
		PropDuration:        "Duration",
		PropTitle:           "Title",
		PropAgenda:          "Agenda",
		PropCohosts:         "Cohosts",
		PropPanelists:       "Panelists",
		PropWebinarID:       "Webinar ID",
		PropAttendeeURL:     "Attendee URL",
		PropHostKey:         "Host Key",
		PropRegistrantCount: "Registrant Count",
	}
}

// ErrMissingColumns is returned by Bind when a required column is absent.
var ErrMissingColumns = errors.New("required columns missing")

// RowWriter writes cells of one row. Implemented by *Client.
type RowWriter interface {
	UpdateRow(ctx context.Context, sheetID, rowID int64, cells []CellUpdate) error
}

// Row is a sheet row whose cells are addressed by property name.
type Row struct {
	ID     int64
	Number int
	cells  map[string]*Cell
}

// NewRow builds a Row from property-keyed cells. Mostly useful in tests.
func NewRow(id int64, number int, cells map[string]*Cell) Row {
	return Row{ID: id, Number: number, cells: cells}
}

// Cell returns the cell bound to prop. ok is false when prop has no column;
// an empty cell in a bound column is returned with ok true.
func (r Row) Cell(prop string) (cell *Cell, ok bool) {
	cell, ok = r.cells[prop]
	return cell, ok
}

// Text is a shorthand for the trimmed text of prop's cell.
func (r Row) Text(prop string) string {
	cell, _ := r.Cell(prop)
	return cell.Text()
}

// Table is a sheet bound to a property-to-column mapping.
type Table struct {
	ID      int64
	Name    string
	columns map[string]int64
	rows    []Row
	writer  RowWriter
}

// Bind maps properties to column ids by column title. Properties whose
// column is missing are left unbound; missing required ones fail with
// ErrMissingColumns.
func Bind(s *Sheet, titles map[string]string, writer RowWriter) (*Table, error) {
	byTitle := make(map[string]int64, len(s.Columns))
	for _, col := range s.Columns {
		byTitle[col.Title] = col.ID
	}

	columns := make(map[string]int64, len(titles))
	for prop, title := range titles {
		if id, ok := byTitle[title]; ok {
			columns[prop] = id
		}
	}

	var missing []string
	for _, prop := range RequiredProperties {
		if _, ok := columns[prop]; !ok {
			missing = append(missing, fmt.Sprintf("%s (%q)", prop, titles[prop]))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	propByColumn := make(map[int64]string, len(columns))
	for prop, id := range columns {
		propByColumn[id] = prop
	}

	t := &Table{ID: s.ID, Name: s.Name, columns: columns, writer: writer}
	for _, rd := range s.Rows {
		row := Row{ID: rd.ID, Number: rd.RowNumber, cells: make(map[string]*Cell, len(columns))}
		// Bound columns always have a cell, even when the API omitted it
		for prop, id := range columns {
			row.cells[prop] = &Cell{ColumnID: id}
		}
		for i := range rd.Cells {
			if prop, ok := propByColumn[rd.Cells[i].ColumnID]; ok {
				row.cells[prop] = &rd.Cells[i]
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Rows returns the rows in sheet order.
func (t *Table) Rows() []Row {
	return t.rows
}

// Has reports whether prop is bound to a column.
func (t *Table) Has(prop string) bool {
	_, ok := t.columns[prop]
	return ok
}

// Write updates the given properties of one row in a single call. Every
// property must be bound.
func (t *Table) Write(ctx context.Context, rowID int64, values map[string]any) error {
	props := make([]string, 0, len(values))
	for prop := range values {
		props = append(props, prop)
	}
	sort.Strings(props)

	cells := make([]CellUpdate, 0, len(values))
	for _, prop := range props {
		id, ok := t.columns[prop]
		if !ok {
			return fmt.Errorf("no column bound to %s", prop)
		}
		cells = append(cells, CellUpdate{ColumnID: id, Value: values[prop]})
	}
	if len(cells) == 0 {
		return nil
	}
	return t.writer.UpdateRow(ctx, t.ID, rowID, cells)
}
