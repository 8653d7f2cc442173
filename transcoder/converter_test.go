package transcoder

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	afberrors "github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/types"
)

type simpleData struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type nestedData struct {
	Label string            `json:"label"`
	Tags  []string          `json:"tags"`
	Attrs map[string]string `json:"attrs"`
	Inner *simpleData       `json:"inner"`
}

// roundTrip exports v, converts it to json text and back to T.
func roundTrip[T any](t *testing.T, tc *Transcoder, v T) T {
	t.Helper()
	h, err := Export(tc, v)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer tc.Table().Unref(h)

	raw, err := Import[jsonc.Raw](tc, h)
	if err != nil {
		t.Fatalf("Import json: %v", err)
	}
	back, err := Export(tc, raw)
	if err != nil {
		t.Fatalf("Export json: %v", err)
	}
	defer tc.Table().Unref(back)

	out, err := Import[T](tc, back)
	if err != nil {
		t.Fatalf("Import %T: %v", v, err)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	tc := New()
	MustRegister[simpleData](tc, "simple-data")
	MustRegister[nestedData](tc, "nested-data")

	simple := []simpleData{
		{},
		{Name: "x", Count: 1},
		{Name: "unicode é ✓", Count: -42},
		{Name: `quote " and \ slash`, Count: 1 << 40},
	}
	for _, v := range simple {
		if got := roundTrip(t, tc, v); got != v {
			t.Errorf("round trip %+v -> %+v", v, got)
		}
	}

	nested := []nestedData{
		{Label: "empty"},
		{Label: "full", Tags: []string{"a", "b"}, Attrs: map[string]string{"k": "v"}, Inner: &simpleData{Name: "in", Count: 2}},
	}
	for _, v := range nested {
		if got := roundTrip(t, tc, v); !reflect.DeepEqual(got, v) {
			t.Errorf("round trip %+v -> %+v", v, got)
		}
	}
}

func TestRegisterIdempotentType(t *testing.T) {
	tc := New()
	c1 := MustRegister[simpleData](tc, "simple-data")

	typ, err := tc.Types().Register("simple-data")
	if err != nil {
		t.Fatal(err)
	}
	if typ != c1.Type {
		t.Fatal("type lookup returned a different handle")
	}

	got, ok := tc.Converter("simple-data")
	if !ok || got != c1 {
		t.Fatal("Converter lookup failed")
	}
}

func TestRegisterConverterErrors(t *testing.T) {
	tc := New()
	enc := func(v any) (string, error) { return "{}", nil }
	dec := func(string) (any, error) { return simpleData{}, nil }
	rt := reflect.TypeFor[simpleData]()

	tests := []struct {
		name   string
		uid    string
		target string
		enc    EncodeFunc
		dec    DecodeFunc
	}{
		{"empty uid", "", types.UIDJSON, enc, dec},
		{"non json target", "x", types.UIDStringZ, enc, dec},
		{"nil encoder", "y", types.UIDJSON, nil, dec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tc.RegisterConverter(tt.uid, rt, tt.target, tt.enc, tt.dec)
			var e *afberrors.Error
			if !errors.As(err, &e) || e.Kind != afberrors.KindRegistration {
				t.Fatalf("expected registration error, got %v", err)
			}
		})
	}
}

func TestRegisterConverterBoundGoType(t *testing.T) {
	tc := New()
	MustRegister[simpleData](tc, "simple-data")

	tests := []struct {
		name     string
		register func() error
		uid      string
	}{
		{"builtin string", func() error { _, err := Register[string](tc, "my-string"); return err }, "my-string"},
		{"builtin document", func() error { _, err := Register[jsonc.Doc](tc, "my-doc"); return err }, "my-doc"},
		{"other custom uid", func() error { _, err := Register[simpleData](tc, "simple-copy"); return err }, "simple-copy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.register()
			var e *afberrors.Error
			if !errors.As(err, &e) || e.Kind != afberrors.KindRegistration {
				t.Fatalf("expected registration error, got %v", err)
			}
			if _, ok := tc.Types().Lookup(tt.uid); ok {
				t.Fatalf("type %s should not be registered", tt.uid)
			}
		})
	}

	h, err := tc.ExportAny("hello")
	if err != nil {
		t.Fatal(err)
	}
	defer tc.Table().Unref(h)
	if typ, _ := tc.CellType(h); typ.UID != types.UIDStringZ {
		t.Fatalf("plain string exports as %v", typ)
	}

	h2, err := tc.ExportAny(simpleData{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	defer tc.Table().Unref(h2)
	if typ, _ := tc.CellType(h2); typ.UID != "simple-data" {
		t.Fatalf("simpleData exports as %v", typ)
	}
}

func TestRegisterConverterHalfInstalled(t *testing.T) {
	tc := New()
	custom, _ := tc.Types().Register("half")
	jsonType := tc.Types().MustLookup(types.UIDJSON)

	// a pre-existing decoder edge makes the second installation step fail
	identity := func(v any) (any, error) { return v, nil }
	if err := tc.Types().AddConvertFrom(custom, jsonType, identity); err != nil {
		t.Fatal(err)
	}

	_, err := Register[simpleData](tc, "half")
	if err == nil {
		t.Fatal("expected registration failure")
	}
	if _, ok := tc.Types().Converter(custom.ID, jsonType.ID); !ok {
		t.Fatal("encoder edge should stay installed")
	}
	if _, ok := tc.Converter("half"); ok {
		t.Fatal("failed converter must not be registered")
	}
}

func TestEncoderFailure(t *testing.T) {
	tc := New()
	_, err := tc.RegisterConverter("failing", reflect.TypeFor[simpleData](), types.UIDJSON,
		func(any) (string, error) { return "", errors.New("boom") },
		func(string) (any, error) { return simpleData{}, nil })
	if err != nil {
		t.Fatal(err)
	}

	h, err := Export(tc, simpleData{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	defer tc.Table().Unref(h)

	_, err = Import[jsonc.Doc](tc, h)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected encoder error, got %v", err)
	}
}
