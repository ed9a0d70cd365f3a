package models

const (
	KeySubject      = "subject"
	KeyEnvironment  = "environment"
	KeyAtmosphere   = "atmosphere"
	KeyMicroDetails = "microDetails"
	KeyTechSpecs    = "techSpecs"
	KeyColorGrading = "colorGrading"
	KeyComposition  = "composition"
)

var fieldKeys = [...]string{
	KeySubject,
	KeyEnvironment,
	KeyAtmosphere,
	KeyMicroDetails,
	KeyTechSpecs,
	KeyColorGrading,
	KeyComposition,
}

// FieldKeys returns the known keys in display order.
func FieldKeys() []string {
	out := make([]string, len(fieldKeys))
	copy(out, fieldKeys[:])
	return out
}

func IsFieldKey(key string) bool {
	for _, k := range fieldKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FieldRecord is the seven-field scene description. Every field is always a
// string; an empty string means the field produced no content.
type FieldRecord struct {
	Subject      string `json:"subject"`
	Environment  string `json:"environment"`
	Atmosphere   string `json:"atmosphere"`
	MicroDetails string `json:"microDetails"`
	TechSpecs    string `json:"techSpecs"`
	ColorGrading string `json:"colorGrading"`
	Composition  string `json:"composition"`
}

func (r *FieldRecord) field(key string) *string {
	switch key {
	case KeySubject:
		return &r.Subject
	case KeyEnvironment:
		return &r.Environment
	case KeyAtmosphere:
		return &r.Atmosphere
	case KeyMicroDetails:
		return &r.MicroDetails
	case KeyTechSpecs:
		return &r.TechSpecs
	case KeyColorGrading:
		return &r.ColorGrading
	case KeyComposition:
		return &r.Composition
	default:
		return nil
	}
}

// Get returns the value for key, or "" for unknown keys.
func (r FieldRecord) Get(key string) string {
	if p := r.field(key); p != nil {
		return *p
	}
	return ""
}

// With returns a copy of r with key set. Unknown keys are ignored.
func (r FieldRecord) With(key, value string) FieldRecord {
	if p := r.field(key); p != nil {
		*p = value
	}
	return r
}

// Merge returns a copy of r with every known key of p applied on top.
func (r FieldRecord) Merge(p Partial) FieldRecord {
	for k, v := range p {
		r = r.With(k, v)
	}
	return r
}

// Partial returns the record as a mapping holding all seven keys.
func (r FieldRecord) Partial() Partial {
	out := make(Partial, len(fieldKeys))
	for _, k := range fieldKeys {
		out[k] = r.Get(k)
	}
	return out
}

func (r FieldRecord) IsZero() bool {
	return r == FieldRecord{}
}

// Partial maps known field keys to their best current value.
type Partial map[string]string

func (p Partial) Clone() Partial {
	if p == nil {
		return nil
	}
	out := make(Partial, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the present keys in display order.
func (p Partial) Keys() []string {
	var out []string
	for _, k := range fieldKeys {
		if _, ok := p[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Missing returns, in display order, the keys that have no content.
func (p Partial) Missing() []string {
	var out []string
	for _, k := range fieldKeys {
		if p[k] == "" {
			out = append(out, k)
		}
	}
	return out
}

// Record fills keys without content with "".
func (p Partial) Record() FieldRecord {
	return FieldRecord{}.Merge(p)
}
