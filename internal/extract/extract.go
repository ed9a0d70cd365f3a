// Package extract recovers field values from a JSON object that is still
// arriving. It never fails: text without any recognised key yields an empty
// mapping.
package extract

import (
	"sort"
	"strings"

	"github.com/yoockh/lumina/internal/models"
)

type keyMatch struct {
	key     string
	start   int // offset of the opening quote of "key"
	content int // offset just past the value's opening quote
}

// Scan returns the best current value of every known key whose
// `"key": "` opening has arrived in buf. It is stateless over the whole
// buffer, so chunk boundaries never matter.
func Scan(buf string) models.Partial {
	var found []keyMatch
	for _, k := range models.FieldKeys() {
		if start, content, ok := findKey(buf, k); ok {
			found = append(found, keyMatch{key: k, start: start, content: content})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].content < found[j].content })

	out := make(models.Partial, len(found))
	for i, m := range found {
		end := len(buf)
		if i+1 < len(found) {
			// an overlapping next key leaves this value empty
			end = max(found[i+1].start, m.content)
		}
		raw := buf[m.content:end]

		if q := closingQuote(raw); q >= 0 {
			raw = raw[:q]
		} else {
			raw = trimDanglingEscape(raw)
		}
		out[m.key] = unescape(raw)
	}
	return out
}

// findKey locates the first `"key"`, optional whitespace, `:`, optional
// whitespace, `"` sequence.
func findKey(buf, key string) (start, content int, ok bool) {
	needle := `"` + key + `"`
	from := 0
	for from < len(buf) {
		i := strings.Index(buf[from:], needle)
		if i < 0 {
			return 0, 0, false
		}
		i += from

		j := skipSpace(buf, i+len(needle))
		if j < len(buf) && buf[j] == ':' {
			j = skipSpace(buf, j+1)
			if j < len(buf) && buf[j] == '"' {
				return i, j + 1, true
			}
		}
		from = i + 1
	}
	return 0, 0, false
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// closingQuote returns the index of the first quote preceded by an even
// number of backslashes, or -1 while the value is still open.
func closingQuote(raw string) int {
	for j := 0; j < len(raw); j++ {
		if raw[j] != '"' {
			continue
		}
		if backslashesBefore(raw, j)%2 == 0 {
			return j
		}
	}
	return -1
}

func backslashesBefore(s string, j int) int {
	n := 0
	for k := j - 1; k >= 0 && s[k] == '\\'; k-- {
		n++
	}
	return n
}

// An open value may end halfway through an escape sequence. Holding the
// lone backslash back keeps every reported value a prefix of the next one.
func trimDanglingEscape(raw string) string {
	if backslashesBefore(raw, len(raw))%2 == 1 {
		return raw[:len(raw)-1]
	}
	return raw
}

// unescape applies the three replacements one after another, in this order.
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

// Extractor adds change tracking on top of Scan.
type Extractor struct {
	last models.Partial
}

func New() *Extractor {
	return &Extractor{last: models.Partial{}}
}

// Update rescans buf and returns only the fields whose value changed since
// the previous call. It returns nil when nothing changed.
func (e *Extractor) Update(buf string) models.Partial {
	var delta models.Partial
	for k, v := range Scan(buf) {
		if prev, ok := e.last[k]; ok && prev == v {
			continue
		}
		e.last[k] = v
		if delta == nil {
			delta = models.Partial{}
		}
		delta[k] = v
	}
	return delta
}

// Current returns every value reported so far.
func (e *Extractor) Current() models.Partial {
	return e.last.Clone()
}
