package typemap

import (
	"testing"
	"testing/quick"
)

var testTable = Table{
	"INTEGER":                  "#",
	"DECIMAL":                  "#.#",
	"VARCHAR":                  "s",
	"STRUCT":                   "{}",
	"MAP":                      "{m}",
	"TIMESTAMP WITH TIME ZONE": "ttz",
}

func TestTableShort(t *testing.T) {
	tests := []struct {
		native string
		want   string
	}{
		{"INTEGER", "#"},
		{"DECIMAL(10,2)", "#.#"},
		{"VARCHAR", "s"},
		{"INTEGER[]", "[#]"},
		{"INTEGER[3]", "[#]"},
		{"VARCHAR[][]", "[[s]]"},
		{"STRUCT(a INTEGER, b VARCHAR[])", "{}"},
		{"STRUCT(a INTEGER)[]", "[{}]"},
		{"MAP(VARCHAR, INTEGER)", "{m}"},
		{"TIMESTAMP WITH TIME ZONE", "ttz"},
		{"integer", Unknown},
		{"GEOMETRY", Unknown},
		{"", Unknown},
		{"[]", Unknown},
		{"UNKNOWN[]", "[?]"},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			if got := testTable.Short(tt.native); got != tt.want {
				t.Errorf("Short(%q) = %q, want %q", tt.native, got, tt.want)
			}
		})
	}
}

func TestBase(t *testing.T) {
	for in, want := range map[string]string{
		"DECIMAL(18,3)":  "DECIMAL",
		"INTEGER[]":      "INTEGER",
		"VARCHAR":        "VARCHAR",
		"ENUM('a', 'b')": "ENUM",
	} {
		if got := Base(in); got != want {
			t.Errorf("Base(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableTotality(t *testing.T) {
	f := func(native string) bool {
		return testTable.Short(native) != ""
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestMust(t *testing.T) {
	empty := MapperFunc(func(string) string { return "" })
	if got := Must(empty, "x"); got != Unknown {
		t.Errorf("Must(empty) = %q, want %q", got, Unknown)
	}
	if got := Must(nil, "x"); got != Unknown {
		t.Errorf("Must(nil) = %q, want %q", got, Unknown)
	}
	if got := Must(testTable, "INTEGER"); got != "#" {
		t.Errorf("Must(table) = %q, want #", got)
	}
}
