package jsonc

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    string
		wantErr bool
	}{
		{"object", `{"a":1}`, "object", false},
		{"array", `[1,2]`, "array", false},
		{"int", `42`, "int", false},
		{"double", `4.2`, "double", false},
		{"exponent", `1e3`, "double", false},
		{"string", `"x"`, "string", false},
		{"bool", `true`, "bool", false},
		{"null", `null`, "null", false},
		{"comments", "// head\n{\"a\":1}", "object", false},
		{"trailing comma", `[1,2,]`, "array", false},
		{"invalid", `{"a":`, "", true},
		{"empty", ``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if d.Kind() != tt.kind {
				t.Errorf("Kind = %s, want %s", d.Kind(), tt.kind)
			}
		})
	}
}

func TestFromAndDecode(t *testing.T) {
	type sample struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	d, err := From(sample{Name: "x", Count: 3})
	if err != nil {
		t.Fatal(err)
	}
	if d.Get("name").Str() != "x" || d.Get("count").Int() != 3 {
		t.Fatalf("unexpected doc %s", d)
	}

	var back sample
	if err := d.Decode(&back); err != nil {
		t.Fatal(err)
	}
	if back != (sample{Name: "x", Count: 3}) {
		t.Fatalf("Decode = %+v", back)
	}
}

func TestDocAccessors(t *testing.T) {
	d := MustParse(`{"list":[1,2,3],"obj":{"a":1,"b":2}}`)

	if got := d.Get("list").Len(); got != 3 {
		t.Errorf("list Len = %d", got)
	}
	if got := d.Get("obj").Len(); got != 2 {
		t.Errorf("obj Len = %d", got)
	}
	if v, ok := d.Get("list").Index(2); !ok || v.Int() != 3 {
		t.Errorf("Index(2) = %v, %v", v, ok)
	}
	if _, ok := d.Get("list").Index(3); ok {
		t.Error("Index(3) should fail")
	}
	if Null.Raw() != "null" || (Doc{}).Raw() != "null" {
		t.Error("zero documents should render as null")
	}
}

func TestMarshalEmbedded(t *testing.T) {
	inner := MustParse(`{"a":[1,2]}`)
	outer, err := From(map[string]any{"inner": inner})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(MustParse(`{"inner":{"a":[1,2]}}`), outer) {
		t.Fatalf("From = %s", outer)
	}
}
