package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDirectory() Directory {
	return NewDirectory(map[string]Contact{
		"bob":  {Name: "Bob", Email: "bob@x.com"},
		"CARL": {Name: "Carl Jung", Email: "Carl@X.com"},
	})
}

func TestNormalize(t *testing.T) {
	dir := testDirectory()

	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{
			name: "named address and nickname",
			in:   "Alice <alice@x.com>, bob",
			want: map[string]string{"alice@x.com": "Alice", "bob@x.com": "Bob"},
		},
		{
			name: "unresolvable nickname is dropped",
			in:   "Alice <alice@x.com>, nobody",
			want: map[string]string{"alice@x.com": "Alice"},
		},
		{
			name: "bare email gets default name",
			in:   "  Dana@Example.com ",
			want: map[string]string{"dana@example.com": "Panelist"},
		},
		{
			name: "quoted name with comma",
			in:   `"Smith, Alice" <alice@x.com>, carl`,
			want: map[string]string{"alice@x.com": "Smith, Alice", "carl@x.com": "Carl Jung"},
		},
		{
			name: "nickname lookup is case-insensitive",
			in:   "BOB",
			want: map[string]string{"bob@x.com": "Bob"},
		},
		{
			name: "unbracketed name and email",
			in:   "Erin erin@x.com",
			want: map[string]string{"erin@x.com": "Erin"},
		},
		{
			name: "bracketed nickname",
			in:   "Bob Smith <bob>",
			want: map[string]string{"bob@x.com": "Bob"},
		},
		{
			name: "empty entries ignored",
			in:   ", ,alice@x.com,,",
			want: map[string]string{"alice@x.com": "Panelist"},
		},
		{
			name: "empty input",
			in:   "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dir.Normalize(tt.in))
		})
	}
}

func TestParse_RejectsUnreadableEntries(t *testing.T) {
	dir := testDirectory()

	tests := []struct {
		name     string
		in       string
		want     map[string]string
		rejected []string
	}{
		{
			name:     "two emails without a comma",
			in:       "a@x.com b@x.com, Carol <carol@x.com>",
			want:     map[string]string{"carol@x.com": "Carol"},
			rejected: []string{"a@x.com b@x.com"},
		},
		{
			name:     "JSON list text",
			in:       `["a@x.com","b@x.com"]`,
			want:     map[string]string{},
			rejected: []string{`["a@x.com"`, `"b@x.com"]`},
		},
		{
			name: "unknown nickname is not an error",
			in:   "nobody, bob",
			want: map[string]string{"bob@x.com": "Bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rejected := dir.Parse(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rejected, rejected)
		})
	}
}

func TestNormalize_NilDirectory(t *testing.T) {
	var dir Directory
	assert.Equal(t, map[string]string{"alice@x.com": "Alice"}, dir.Normalize("Alice <alice@x.com>, bob"))
}

func TestAdd_ComposedNames(t *testing.T) {
	m := map[string]string{}
	// "e" followed by a combining acute accent
	Add(m, " Rene@X.com", "Rene\u0301")
	assert.Equal(t, map[string]string{"rene@x.com": "Ren\u00e9"}, m)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "a@x.com", Key("  A@X.com "))
}
