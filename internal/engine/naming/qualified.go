package naming

import (
	"encoding/json"
	"strings"
)

const (
	DefaultDelimiter = "."
	UnsolvedName     = "unsolved symbol"
	BuiltinsModule   = "builtins"
)

// Element is one segment of a qualified name. Prefix and Postfix are
// decorative and do not take part in display joining other than being
// rendered around Name.
type Element struct {
	Prefix  string `json:"prefix"`
	Name    string `json:"name"`
	Postfix string `json:"postfix"`
}

func (e Element) String() string {
	var b strings.Builder
	if e.Prefix != "" {
		b.WriteString(e.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(e.Name)
	b.WriteString(e.Postfix)
	return b.String()
}

// QualifiedName is a value type; every mutating helper returns a copy.
// Two names identify the same symbol iff Serialize returns equal strings.
type QualifiedName struct {
	Delimiter string    `json:"name_delimiter"`
	Elements  []Element `json:"name_elements"`
}

func New(names ...string) QualifiedName {
	qn := QualifiedName{Delimiter: DefaultDelimiter, Elements: make([]Element, 0, len(names))}
	for _, n := range names {
		qn.Elements = append(qn.Elements, Element{Name: n})
	}
	return qn
}

// ParseDotted splits s on '.' and drops empty segments.
func ParseDotted(s string) (QualifiedName, bool) {
	var parts []string
	for _, p := range strings.Split(s, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return QualifiedName{}, false
	}
	return New(parts...), true
}

func Unsolved() QualifiedName {
	return New(UnsolvedName)
}

func (q QualifiedName) IsZero() bool {
	return len(q.Elements) == 0
}

func (q QualifiedName) IsUnsolved() bool {
	return len(q.Elements) == 1 && q.Elements[0].Name == UnsolvedName
}

func (q QualifiedName) Append(names ...string) QualifiedName {
	out := q.clone(len(names))
	for _, n := range names {
		out.Elements = append(out.Elements, Element{Name: n})
	}
	return out
}

func (q QualifiedName) AppendElement(e Element) QualifiedName {
	out := q.clone(1)
	out.Elements = append(out.Elements, e)
	return out
}

// Concat appends all elements of other, keeping q's delimiter.
func (q QualifiedName) Concat(other QualifiedName) QualifiedName {
	out := q.clone(len(other.Elements))
	out.Elements = append(out.Elements, other.Elements...)
	return out
}

// Display renders the human-readable form, e.g. "pkg.mod.Foo.bar".
func (q QualifiedName) Display() string {
	parts := make([]string, len(q.Elements))
	for i, e := range q.Elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, q.Delimiter)
}

func (q QualifiedName) String() string {
	return q.Display()
}

// Serialize returns the canonical identity key used for deduplication.
func (q QualifiedName) Serialize() string {
	elements := q.Elements
	if elements == nil {
		elements = []Element{}
	}
	data, err := json.Marshal(QualifiedName{Delimiter: q.Delimiter, Elements: elements})
	if err != nil {
		// Only strings are marshalled; this cannot fail.
		return q.Display()
	}
	return string(data)
}

func Deserialize(s string) (QualifiedName, error) {
	var q QualifiedName
	if err := json.Unmarshal([]byte(s), &q); err != nil {
		return QualifiedName{}, err
	}
	return q, nil
}

func (q QualifiedName) clone(extra int) QualifiedName {
	out := QualifiedName{Delimiter: q.Delimiter, Elements: make([]Element, len(q.Elements), len(q.Elements)+extra)}
	copy(out.Elements, q.Elements)
	if out.Delimiter == "" {
		out.Delimiter = DefaultDelimiter
	}
	return out
}
