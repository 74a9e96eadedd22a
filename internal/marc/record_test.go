package marc

import "testing"

func buildTestRecord() *Record {
	rec := &Record{Leader: "01876nas a2200529 c 4500"}
	rec.AddControlField("001", "990006498190203336")
	rec.AddControlField("007", "cr#|||||||||||")
	rec.AddControlField("009", "AC13348910")

	df := NewDataField("016", "7", " ")
	df.AddSubfield("a", "020567944")
	df.AddSubfield("2", "DE-101b")
	rec.AddDataField(df)

	df = NewDataField("016", "7", " ")
	df.AddSubfield("a", "2018371-9")
	df.AddSubfield("2", "DE-600")
	rec.AddDataField(df)

	df = NewDataField("245", "1", "0")
	df.AddSubfield("a", "Dawn of Operator Obligations")
	df.AddSubfield("b", "Estate Independent Benchmarking")
	rec.AddDataField(df)

	df = NewDataField("100", "1", " ")
	df.AddSubfield("a", "Adams, Gunnar")
	df.AddSubfield("4", "aut")
	rec.AddDataField(df)

	df = NewDataField("264", " ", "1")
	df.AddSubfield("a", "Wien")
	df.AddSubfield("c", "2019")
	rec.AddDataField(df)

	return rec
}

func TestControlFieldsForTag(t *testing.T) {
	rec := buildTestRecord()

	cfs := rec.ControlFieldsForTag("001")
	if len(cfs) != 1 || cfs[0].Value != "990006498190203336" {
		t.Errorf("ControlFieldsForTag(001) = %v", cfs)
	}

	if got := rec.ControlFieldsForTag("008"); len(got) != 0 {
		t.Errorf("ControlFieldsForTag(008) = %v, want empty", got)
	}
}

func TestDataFieldsForTag(t *testing.T) {
	rec := buildTestRecord()

	tests := []struct {
		name             string
		tag, ind1, ind2  string
		want             int
	}{
		{"exact match repeated field", "016", "7", " ", 2},
		{"wildcard both indicators", "016", "-", "-", 2},
		{"wildcard first indicator", "245", "-", "0", 1},
		{"indicator mismatch", "245", "0", "0", 0},
		{"unknown tag", "999", "-", "-", 0},
		{"blank indicator exact", "264", " ", "1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rec.DataFieldsForTag(tt.tag, tt.ind1, tt.ind2)
			if len(got) != tt.want {
				t.Errorf("DataFieldsForTag(%q,%q,%q) returned %d fields, want %d",
					tt.tag, tt.ind1, tt.ind2, len(got), tt.want)
			}
		})
	}
}

func TestMMSIDAndAC(t *testing.T) {
	rec := buildTestRecord()

	if got, ok := rec.MMSID(); !ok || got != "990006498190203336" {
		t.Errorf("MMSID() = %q, %v", got, ok)
	}
	if got, ok := rec.AC(); !ok || got != "AC13348910" {
		t.Errorf("AC() = %q, %v", got, ok)
	}

	empty := &Record{Leader: "00000naa a2200000 c 4500"}
	if _, ok := empty.MMSID(); ok {
		t.Error("MMSID() on record without 001 should report absence")
	}
	if _, ok := empty.AC(); ok {
		t.Error("AC() on record without 009 should report absence")
	}
}

func TestConvenienceAccessors(t *testing.T) {
	rec := buildTestRecord()

	// 245 has indicators 1,0 so the exact 0,0 lookup falls back to wildcard.
	if got, ok := rec.Title(); !ok || got != "Dawn of Operator Obligations" {
		t.Errorf("Title() = %q, %v", got, ok)
	}
	if got, ok := rec.Author(); !ok || got != "Adams, Gunnar" {
		t.Errorf("Author() = %q, %v", got, ok)
	}
	if got, ok := rec.Year(); !ok || got != "2019" {
		t.Errorf("Year() = %q, %v", got, ok)
	}
}
