// Package contacts turns informally written contact lists into canonical
// email to display name mappings.
package contacts

import (
	"net/mail"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultName is used when an entry carries an email but no name.
const DefaultName = "Panelist"

// Contact is a directory entry.
type Contact struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Directory resolves nicknames to contacts. Lookups are case-insensitive.
type Directory map[string]Contact

// NewDirectory copies entries with lower-cased nickname keys.
func NewDirectory(entries map[string]Contact) Directory {
	d := make(Directory, len(entries))
	for nick, c := range entries {
		d[strings.ToLower(strings.TrimSpace(nick))] = c
	}
	return d
}

// Lookup finds a nickname.
func (d Directory) Lookup(nickname string) (Contact, bool) {
	c, ok := d[strings.ToLower(strings.TrimSpace(nickname))]
	return c, ok
}

// Normalize parses a comma-separated list of `Name <email>`, bare email or
// bare nickname entries. Nicknames missing from the directory are dropped.
func (d Directory) Normalize(text string) map[string]string {
	out, _ := d.Parse(text)
	return out
}

// Parse is Normalize that also returns the entries it could not read, such
// as two emails run together or an address with stray characters. Unknown
// nicknames are not reported.
func (d Directory) Parse(text string) (out map[string]string, rejected []string) {
	out = make(map[string]string)
	for _, entry := range splitList(text) {
		name, addr, kind := parseEntry(entry)
		switch kind {
		case entryEmail:
			Add(out, addr, name)
		case entryInvalid:
			rejected = append(rejected, entry)
		default:
			if c, found := d.lookupEntry(entry); found {
				Add(out, c.Email, c.Name)
			}
		}
	}
	return out, rejected
}

// lookupEntry resolves a nickname entry, either the whole entry or the
// bracketed part of `Name <nick>`.
func (d Directory) lookupEntry(entry string) (Contact, bool) {
	if c, ok := d.Lookup(entry); ok {
		return c, true
	}
	if i := strings.LastIndex(entry, "<"); i >= 0 {
		return d.Lookup(strings.TrimRight(entry[i+1:], "> "))
	}
	return Contact{}, false
}

// Add inserts a contact into m under its canonical key.
func Add(m map[string]string, email, name string) {
	email = Key(email)
	if email == "" {
		return
	}
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		name = DefaultName
	}
	m[email] = name
}

// Key is the canonical form of an email used as a map key.
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type entryKind int

const (
	entryNickname entryKind = iota
	entryEmail
	entryInvalid
)

// parseEntry extracts a name and address from one entry. Entries without an
// email are nicknames.
func parseEntry(entry string) (name, addr string, kind entryKind) {
	if a, err := mail.ParseAddress(entry); err == nil {
		if strings.Contains(a.Address, "@") {
			return a.Name, a.Address, entryEmail
		}
		return "", "", entryNickname
	}

	// "Alice alice@example.com" without brackets
	fields := strings.Fields(strings.NewReplacer("<", " ", ">", " ").Replace(entry))
	at := -1
	for i, f := range fields {
		if !strings.Contains(f, "@") {
			continue
		}
		if at >= 0 {
			return "", "", entryInvalid
		}
		at = i
	}
	if at < 0 {
		return "", "", entryNickname
	}
	if _, err := mail.ParseAddress(fields[at]); err != nil {
		return "", "", entryInvalid
	}
	rest := append(append([]string{}, fields[:at]...), fields[at+1:]...)
	return strings.Trim(strings.Join(rest, " "), `"`), fields[at], entryEmail
}

// splitList splits on commas that are outside quotes and angle brackets,
// trimming entries and dropping empty ones. Quotes and brackets are stripped
// from entries that hold no email so they can be looked up as nicknames.
func splitList(text string) []string {
	var (
		entries []string
		buf     strings.Builder
		quoted  bool
		angle   bool
	)
	flush := func() {
		entry := strings.TrimSpace(buf.String())
		buf.Reset()
		if entry == "" {
			return
		}
		if !strings.Contains(entry, "@") {
			entry = strings.TrimSpace(strings.Trim(entry, `"<> `))
		}
		if entry != "" {
			entries = append(entries, entry)
		}
	}

	for _, r := range text {
		switch {
		case r == '"' && !angle:
			quoted = !quoted
		case r == '<' && !quoted:
			angle = true
		case r == '>' && !quoted:
			angle = false
		case r == ',' && !quoted && !angle:
			flush()
			continue
		}
		buf.WriteRune(r)
	}
	flush()
	return entries
}
