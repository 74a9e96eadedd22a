// Package marc implements an in-memory MARC21 bibliographic record with a
// round-trippable MARCXML codec. Field order is preserved: serialization
// emits fields in insertion order, which matters when diffing exports
// against the union catalog.
package marc

// Wildcard is the indicator sentinel accepted by DataFieldsForTag meaning
// "any indicator value".
const Wildcard = "-"

// Record is a MARC21 bibliographic record.
type Record struct {
	Leader        string
	ControlFields []ControlField
	DataFields    []DataField
}

// ControlField is a tag/value pair (tags 001-009).
type ControlField struct {
	Tag   string
	Value string
}

// DataField is a tagged field with two indicators and ordered subfields.
type DataField struct {
	Tag       string
	Ind1      string
	Ind2      string
	Subfields []Subfield
}

// Subfield is a single-character code with a value.
type Subfield struct {
	Code  string
	Value string
}

// NewDataField creates a data field with the given tag and indicators.
func NewDataField(tag, ind1, ind2 string) DataField {
	return DataField{Tag: tag, Ind1: ind1, Ind2: ind2}
}

// AddSubfield appends a subfield, preserving order.
func (df *DataField) AddSubfield(code, value string) {
	df.Subfields = append(df.Subfields, Subfield{Code: code, Value: value})
}

// Subfield returns the first subfield with the given code.
func (df *DataField) Subfield(code string) (string, bool) {
	for _, sf := range df.Subfields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

// AddControlField appends a control field. Fields are append-only.
func (r *Record) AddControlField(tag, value string) {
	r.ControlFields = append(r.ControlFields, ControlField{Tag: tag, Value: value})
}

// AddDataField appends a data field. Fields are append-only.
func (r *Record) AddDataField(df DataField) {
	r.DataFields = append(r.DataFields, df)
}

// ControlFieldsForTag returns all control fields with the given tag in
// document order. The slice is empty when nothing matches.
func (r *Record) ControlFieldsForTag(tag string) []ControlField {
	var matches []ControlField
	for _, cf := range r.ControlFields {
		if cf.Tag == tag {
			matches = append(matches, cf)
		}
	}
	return matches
}

// DataFieldsForTag returns all data fields matching tag and indicators in
// document order. Passing Wildcard ("-") for an indicator matches any
// value; otherwise an exact match is required.
func (r *Record) DataFieldsForTag(tag, ind1, ind2 string) []DataField {
	var matches []DataField
	for _, df := range r.DataFields {
		if df.Tag != tag {
			continue
		}
		if ind1 != Wildcard && ind1 != df.Ind1 {
			continue
		}
		if ind2 != Wildcard && ind2 != df.Ind2 {
			continue
		}
		matches = append(matches, df)
	}
	return matches
}

// MMSID returns the Alma record id from control field 001.
// The second return is false when the field is absent.
func (r *Record) MMSID() (string, bool) {
	return r.firstControlValue("001")
}

// AC returns the union catalog number from control field 009.
// The second return is false when the field is absent.
func (r *Record) AC() (string, bool) {
	return r.firstControlValue("009")
}

func (r *Record) firstControlValue(tag string) (string, bool) {
	cfs := r.ControlFieldsForTag(tag)
	if len(cfs) == 0 {
		return "", false
	}
	return cfs[0].Value, true
}

// Title returns subfield $a of the title statement (245), preferring
// indicators "0","0" over any-indicator matches.
func (r *Record) Title() (string, bool) {
	return r.firstSubfield("245", "0", "0", "a")
}

// Author returns subfield $a of the main entry (100), falling back to the
// first added entry (700).
func (r *Record) Author() (string, bool) {
	if v, ok := r.firstSubfield("100", "1", Wildcard, "a"); ok {
		return v, true
	}
	return r.firstSubfield("700", "1", Wildcard, "a")
}

// Year returns subfield $c of the publication statement (264 _1).
func (r *Record) Year() (string, bool) {
	dfs := r.DataFieldsForTag("264", " ", "1")
	if len(dfs) == 0 {
		return "", false
	}
	return dfs[0].Subfield("c")
}

func (r *Record) firstSubfield(tag, ind1, ind2, code string) (string, bool) {
	dfs := r.DataFieldsForTag(tag, ind1, ind2)
	if len(dfs) == 0 {
		dfs = r.DataFieldsForTag(tag, Wildcard, Wildcard)
	}
	if len(dfs) == 0 {
		return "", false
	}
	return dfs[0].Subfield(code)
}
