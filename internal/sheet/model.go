package sheet

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Column types used by this service.
const (
	ColumnTypeText         = "TEXT_NUMBER"
	ColumnTypeDate         = "DATE"
	ColumnTypePicklist     = "PICKLIST"
	ColumnTypeMultiContact = "MULTI_CONTACT_LIST"
)

// Object value types carrying contacts.
const (
	ObjectTypeContact      = "CONTACT"
	ObjectTypeMultiContact = "MULTI_CONTACT"
)

// Sheet is a Smartsheet sheet as returned by GET /sheets/{id}.
type Sheet struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Permalink string    `json:"permalink,omitempty"`
	Columns   []Column  `json:"columns"`
	Rows      []RowData `json:"rows,omitempty"`
}

// Column describes one sheet column.
type Column struct {
	ID          int64    `json:"id,omitempty"`
	Title       string   `json:"title"`
	Type        string   `json:"type,omitempty"`
	Primary     bool     `json:"primary,omitempty"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options,omitempty"`
	Validation  bool     `json:"validation,omitempty"`
	Locked      bool     `json:"locked,omitempty"`
	Format      string   `json:"format,omitempty"`
	Index       *int     `json:"index,omitempty"`
}

// RowData is a sheet row on the wire.
type RowData struct {
	ID        int64  `json:"id"`
	RowNumber int    `json:"rowNumber"`
	Cells     []Cell `json:"cells"`
}

// Cell is one cell of a row.
type Cell struct {
	ColumnID     int64        `json:"columnId"`
	Value        any          `json:"value,omitempty"`
	DisplayValue string       `json:"displayValue,omitempty"`
	ObjectValue  *ObjectValue `json:"objectValue,omitempty"`
}

// ContactValue is one contact inside a contact object value.
type ContactValue struct {
	ObjectType string `json:"objectType"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

// ObjectValue is the typed value of a cell. Only contact shapes are decoded;
// primitive object values are ignored in favour of Cell.Value.
type ObjectValue struct {
	ObjectType string         `json:"objectType"`
	Email      string         `json:"email,omitempty"`
	Name       string         `json:"name,omitempty"`
	Values     []ContactValue `json:"values,omitempty"`
}

// UnmarshalJSON accepts both object and primitive object values.
func (o *ObjectValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	type plain ObjectValue
	return json.Unmarshal(data, (*plain)(o))
}

// Text renders the cell value as trimmed text. Numbers are formatted without
// a trailing ".0".
func (c *Cell) Text() string {
	if c == nil {
		return ""
	}
	switch v := c.Value.(type) {
	case nil:
		return strings.TrimSpace(c.DisplayValue)
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return v.String()
	default:
		b, _ := json.Marshal(v)
		return strings.TrimSpace(string(b))
	}
}

// Contacts returns the contacts held by a contact-typed cell. ok is false for
// any other cell.
func (c *Cell) Contacts() (contacts []ContactValue, ok bool) {
	if c == nil || c.ObjectValue == nil {
		return nil, false
	}
	switch c.ObjectValue.ObjectType {
	case ObjectTypeMultiContact:
		return c.ObjectValue.Values, true
	case ObjectTypeContact:
		return []ContactValue{{
			ObjectType: ObjectTypeContact,
			Email:      c.ObjectValue.Email,
			Name:       c.ObjectValue.Name,
		}}, true
	}
	return nil, false
}

// IsEmpty reports whether the cell holds neither a value nor contacts.
func (c *Cell) IsEmpty() bool {
	if contacts, ok := c.Contacts(); ok {
		return len(contacts) == 0
	}
	return c.Text() == ""
}
