package schedule

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/corey/webinar-sync/internal/contacts"
	"github.com/corey/webinar-sync/internal/sheet"
	"github.com/corey/webinar-sync/internal/webex"
)

// Value is a resolved property. It holds either a contact mapping read from
// a contact-typed cell or a scalar from a text cell or the defaults map.
type Value struct {
	raw      any
	contacts map[string]string
}

// String renders the value as trimmed text.
func (v Value) String() string {
	switch x := v.raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// Contacts returns the email to name mapping of the value and the entries
// that could not be read. Contact cells are used as-is; text is parsed with
// the directory. A default may also be an email to name object or a list of
// entries, each either text or a {name, email} object.
func (v Value) Contacts(dir contacts.Directory) (out map[string]string, rejected []string) {
	if v.contacts != nil {
		out = make(map[string]string, len(v.contacts))
		for email, name := range v.contacts {
			contacts.Add(out, email, name)
		}
		return out, nil
	}
	switch x := v.raw.(type) {
	case map[string]any:
		out = make(map[string]string, len(x))
		for email, name := range x {
			s, _ := name.(string)
			contacts.Add(out, email, s)
		}
		return out, nil
	case []any:
		out = make(map[string]string, len(x))
		for _, item := range x {
			switch e := item.(type) {
			case string:
				m, bad := dir.Parse(e)
				for email, name := range m {
					out[email] = name
				}
				rejected = append(rejected, bad...)
			case map[string]any:
				email, _ := e["email"].(string)
				name, _ := e["name"].(string)
				if !strings.Contains(email, "@") {
					rejected = append(rejected, fmt.Sprint(e))
					continue
				}
				contacts.Add(out, email, name)
			default:
				rejected = append(rejected, fmt.Sprint(e))
			}
		}
		return out, rejected
	}
	return dir.Parse(v.String())
}

// maxMinutes bounds every minute count so it converts to a time.Duration
// without overflow.
const maxMinutes = 1_000_000

// Int coerces the value to whole minutes. Fractions are truncated.
func (v Value) Int() (int, error) {
	var f float64
	switch x := v.raw.(type) {
	case int:
		f = float64(x)
	case float64:
		f = x
	default:
		var err error
		if f, err = strconv.ParseFloat(v.String(), 64); err != nil {
			return 0, fmt.Errorf("%q is not a number", v.String())
		}
	}
	if math.IsNaN(f) || math.Abs(f) > maxMinutes {
		return 0, fmt.Errorf("%s is out of range", v.String())
	}
	return int(f), nil
}

// Bool accepts booleans, "yes"/"no" and anything strconv.ParseBool takes.
func (v Value) Bool() (bool, error) {
	if b, ok := v.raw.(bool); ok {
		return b, nil
	}
	s := strings.ToLower(v.String())
	switch s {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean", v.String())
	}
	return b, nil
}

// Registration decodes a registration policy given as an object or as JSON
// text.
func (v Value) Registration() (*webex.Registration, error) {
	var data []byte
	if s, ok := v.raw.(string); ok {
		data = []byte(s)
	} else {
		b, err := json.Marshal(v.raw)
		if err != nil {
			return nil, err
		}
		data = b
	}
	var reg webex.Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("invalid registration policy: %w", err)
	}
	return &reg, nil
}

// Resolver looks up webinar properties for a row. A row's non-empty cell
// wins over the configured defaults.
type Resolver struct {
	defaults map[string]any
}

// NewResolver creates a Resolver over a defaults map. The map is not copied
// and must not be modified afterwards.
func NewResolver(defaults map[string]any) *Resolver {
	return &Resolver{defaults: defaults}
}

// Resolve returns the effective value of name for row. ok is false when
// neither the row nor the defaults provide one, which callers treat as "use
// the built-in default".
func (r *Resolver) Resolve(name string, row sheet.Row) (v Value, ok bool) {
	if cell, bound := row.Cell(name); bound && !cell.IsEmpty() {
		if list, isContacts := cell.Contacts(); isContacts {
			m := make(map[string]string, len(list))
			for _, c := range list {
				m[c.Email] = c.Name
			}
			return Value{contacts: m}, true
		}
		return Value{raw: cell.Text()}, true
	}

	if d, found := r.defaults[name]; found && !blank(d) {
		return Value{raw: d}, true
	}
	return Value{}, false
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}
