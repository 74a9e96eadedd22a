package marc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is returned by Parse when the document lacks a leader.
var ErrMalformedRecord = errors.New("malformed MARC record: missing leader")

// xmlRecord mirrors the MARCXML <record> element for encoding/xml.
type xmlRecord struct {
	XMLName       xml.Name          `xml:"record"`
	Leader        *xmlLeader        `xml:"leader"`
	ControlFields []xmlControlField `xml:"controlfield"`
	DataFields    []xmlDataField    `xml:"datafield"`
}

type xmlLeader struct {
	Value string `xml:",chardata"`
}

type xmlControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type xmlDataField struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// Parse decodes a MARCXML document into a Record. A document without a
// <leader> element is malformed; missing control or data fields are
// tolerated and yield empty field lists.
func Parse(doc string) (*Record, error) {
	var xr xmlRecord
	if err := xml.Unmarshal([]byte(doc), &xr); err != nil {
		return nil, fmt.Errorf("parsing MARCXML: %w", err)
	}
	if xr.Leader == nil {
		return nil, ErrMalformedRecord
	}

	rec := &Record{Leader: xr.Leader.Value}
	for _, cf := range xr.ControlFields {
		rec.AddControlField(cf.Tag, cf.Value)
	}
	for _, df := range xr.DataFields {
		field := NewDataField(df.Tag, df.Ind1, df.Ind2)
		for _, sf := range df.Subfields {
			field.AddSubfield(sf.Code, sf.Value)
		}
		rec.AddDataField(field)
	}
	return rec, nil
}

// XML serializes the record as MARCXML in field-insertion order. All text
// content is escaped by the encoder.
func (r *Record) XML() (string, error) {
	xr := xmlRecord{
		Leader: &xmlLeader{Value: r.Leader},
	}
	for _, cf := range r.ControlFields {
		xr.ControlFields = append(xr.ControlFields, xmlControlField{Tag: cf.Tag, Value: cf.Value})
	}
	for _, df := range r.DataFields {
		xdf := xmlDataField{Tag: df.Tag, Ind1: df.Ind1, Ind2: df.Ind2}
		for _, sf := range df.Subfields {
			xdf.Subfields = append(xdf.Subfields, xmlSubfield{Code: sf.Code, Value: sf.Value})
		}
		xr.DataFields = append(xr.DataFields, xdf)
	}

	var sb strings.Builder
	enc := xml.NewEncoder(&sb)
	enc.Indent("", "  ")
	if err := enc.Encode(xr); err != nil {
		return "", fmt.Errorf("serializing MARCXML: %w", err)
	}
	return sb.String(), nil
}
