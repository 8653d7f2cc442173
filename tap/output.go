package tap

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
)

// Output selects how the autorun report is printed.
type Output uint8

const (
	OutputTAP Output = iota
	OutputJSON
	OutputNone
)

func (o Output) String() string {
	switch o {
	case OutputJSON:
		return "json"
	case OutputNone:
		return "none"
	default:
		return "tap"
	}
}

// ParseOutput parses "tap", "json" or "none".
func ParseOutput(s string) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tap", "":
		return OutputTAP, nil
	case "json":
		return OutputJSON, nil
	case "none":
		return OutputNone, nil
	}
	return OutputTAP, errors.InvalidInput(errors.PhaseConfig, "unknown output "+s)
}

// Report is the aggregated suite report. Groups keep their report order.
type Report struct {
	Groups []GroupReport
}

// GroupReport holds the report lines of one group.
type GroupReport struct {
	Label string
	Lines []string
}

// MarshalJSON renders the report as an object keyed by group label,
// preserving group order.
func (r Report) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, g := range r.Groups {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(g.Label)
		if err != nil {
			return nil, err
		}
		lines, err := json.Marshal(g.Lines)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(lines)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Doc returns the report as a JSON document.
func (r Report) Doc() jsonc.Doc {
	data, err := r.MarshalJSON()
	if err != nil {
		return jsonc.Null
	}
	return jsonc.MustParse(string(data))
}

// Write prints the report in the given output format.
func (r Report) Write(w io.Writer, uid string, out Output) error {
	switch out {
	case OutputNone:
		return nil
	case OutputJSON:
		data, err := r.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- start:%s --\n", uid)
	for _, g := range r.Groups {
		b.WriteByte('\n')
		for _, line := range g.Lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\n-- end:%s --\n", uid)
	_, err := io.WriteString(w, b.String())
	return err
}
