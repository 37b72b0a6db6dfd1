package edi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeElementID(t *testing.T) {
	tests := []struct {
		segment string
		id      string
		want    string
	}{
		{"BEG", "BEG02", "BEG02"},
		{"BEG", "02", "BEG02"},
		{"BEG", "2", "BEG02"},
		{"BEG", "beg-3", "BEG03"},
		{"beg", "BEG 05", "BEG05"},
		{"BEG", "BEG2", "BEG02"},
		{"N1", "01", "N101"},
		{"N1", "1", "N101"},
		{"N1", "N104", "N104"},
		{"", "REF02", "REF02"},
		{"PO1", "PO107", "PO107"},
		{"BEG", "", ""},
		{"BEG", "REF02", "REF02"},
	}

	for _, tt := range tests {
		t.Run(tt.segment+"/"+tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeElementID(tt.segment, tt.id))
		})
	}
}

func TestNormalizeElementIDIsStable(t *testing.T) {
	for _, id := range []string{"2", "BEG02", "beg-3", "01"} {
		once := NormalizeElementID("BEG", id)
		assert.Equal(t, once, NormalizeElementID("BEG", once))
	}
}

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Header Identifier (Location Identifier)", "Header_Identifier_Location_Identifier"},
		{"Purchase-Order Number", "Purchase_Order_Number"},
		{"ACTION", "ACTION"},
		{"  BELNR  ", "BELNR"},
		{"a__b", "a_b"},
		{"(x)", "x"},
		{"_\tlead", "lead"},
		{"", ""},
		{"Qualifier ( code )", "Qualifier_code"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFieldName(tt.in))
		})
	}
}

func TestNormalizeFieldNameIdempotent(t *testing.T) {
	inputs := []string{
		"Header Identifier (Location Identifier)",
		"_\t( -weird-- )__ name ",
		"E1EDK01-ACTION",
		"Ünïcode (Field)",
		"--",
		"a ( b ) c",
	}
	for _, in := range inputs {
		once := NormalizeFieldName(in)
		assert.Equal(t, once, NormalizeFieldName(once), "input %q", in)
	}
}

func TestNewErpKey(t *testing.T) {
	a := NewErpKey("e1edk01", "Document Number")
	b := NewErpKey("E1EDK01 ", "DOCUMENT_NUMBER")
	assert.Equal(t, a, b)
	assert.Equal(t, "E1EDK01.DOCUMENT_NUMBER", a.String())
	assert.True(t, ErpKey{}.IsZero())
}

func TestNewElementKey(t *testing.T) {
	assert.Equal(t, ElementKey{Segment: "BEG", Element: "BEG03"}, NewElementKey("beg", "3"))
	assert.Equal(t, "BEG/BEG03", NewElementKey("BEG", "BEG03").String())
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, FoldText("Map DS"), FoldText("MAP ds"))
	assert.Equal(t, "fi", FoldText("ﬁ"))
}

func TestParseConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ParseConfidence(" high "))
	assert.Equal(t, ConfidenceMedium, ParseConfidence("MEDIUM"))
	assert.Equal(t, ConfidenceNone, ParseConfidence("none"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("low"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("probably"))
	assert.Equal(t, ConfidenceLow, ParseConfidence(""))
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"Mandatory":   "M",
		" mandatory ": "M",
		"Optional":    "O",
		"Conditional": "C",
		"Not  Used":   "X",
		"m":           "M",
		"x":           "X",
		"":            "",
		"Must Use":    "M",
		"vendor only": "VENDOR ONLY",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), "input %q", in)
	}
}

func TestCleanValues(t *testing.T) {
	assert.Equal(t, []string{"DS", "BG", "SA"}, CleanValues([]string{" DS", "BG", "", "DS ", "SA"}))
	assert.Nil(t, CleanValues([]string{" ", ""}))
	assert.Nil(t, CleanValues(nil))
}
