package domain

import (
	"encoding/json"
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		prefix  string
		value   string
		wantErr bool
	}{
		{name: "simple tag", in: "PR1-office", prefix: "PR1", value: "office"},
		{name: "value keeps extra dashes", in: "LOC-building-3-floor-2", prefix: "LOC", value: "building-3-floor-2"},
		{name: "missing value", in: "PR1-", wantErr: true},
		{name: "missing prefix", in: "-office", wantErr: true},
		{name: "no dash at all", in: "office", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, value, err := ParseTag(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTag(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if prefix != tt.prefix || value != tt.value {
				t.Errorf("ParseTag(%q) = (%q, %q), want (%q, %q)", tt.in, prefix, value, tt.prefix, tt.value)
			}
		})
	}
}

func TestExpandValue(t *testing.T) {
	tests := []struct {
		name string
		kind string
		in   string
		want []string
	}{
		{name: "normal", kind: KindNormal, in: "Ubuntu 22.04", want: []string{"Ubuntu 22.04"}},
		{name: "list splits on comma", kind: KindList, in: "a, b,,c", want: []string{"a", "b", "c"}},
		{name: "left anchored", kind: KindLeft, in: "es.ext.dept", want: []string{"es", "es.ext", "es.ext.dept"}},
		{name: "right anchored", kind: KindRight, in: "es.ext.dept", want: []string{"dept", "ext.dept", "es.ext.dept"}},
		{name: "blank yields nothing", kind: KindNormal, in: "   ", want: nil},
		{name: "json kept verbatim", kind: KindJSON, in: `{"a":1}`, want: []string{`{"a":1}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandValue(tt.kind, tt.in); !slicesEqual(got, tt.want) {
				t.Errorf("ExpandValue(%q, %q) = %v, want %v", tt.kind, tt.in, got, tt.want)
			}
		})
	}
}

func TestErrorEnvelope(t *testing.T) {
	env := ErrorEnvelope(CodeUnsubscribedComputer, "")
	if EnvelopeCode(env) != CodeUnsubscribedComputer {
		t.Errorf("EnvelopeCode = %d, want %d", EnvelopeCode(env), CodeUnsubscribedComputer)
	}
	if !IsErrorEnvelope(env) {
		t.Error("IsErrorEnvelope = false for an error payload")
	}
	if IsErrorEnvelope(OkEnvelope()) {
		t.Error("IsErrorEnvelope = true for ALL_OK")
	}
	if IsErrorEnvelope(map[string]any{"computer": "x"}) {
		t.Error("IsErrorEnvelope = true for ordinary payload")
	}

	inner, ok := env["errmfs"].(Errmfs)
	if !ok {
		t.Fatalf("errmfs payload = %T, want Errmfs", env["errmfs"])
	}
	if inner.Info != ErrorInfo(CodeUnsubscribedComputer) {
		t.Errorf("Info = %q, want canonical message", inner.Info)
	}
}

// EnvelopeCode must keep working after the payload has been through a JSON
// reply roundtrip, where the Errmfs block decodes back as a map.
func TestEnvelopeCodeAfterRoundtrip(t *testing.T) {
	raw, err := json.Marshal(ErrorEnvelope(CodeUserHaveNotPermission, ""))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if got := EnvelopeCode(decoded); got != CodeUserHaveNotPermission {
		t.Errorf("EnvelopeCode = %d, want %d", got, CodeUserHaveNotPermission)
	}
	if !IsErrorEnvelope(decoded) {
		t.Error("IsErrorEnvelope = false after roundtrip")
	}
}
