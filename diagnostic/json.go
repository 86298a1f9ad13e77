package diagnostic

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// decodeJSON decodes one JSON diagnostic per line. Lines that are not JSON objects are kept as
// raw output.
func decodeJSON(output string) (Decoded, error) {
	var d Decoded
	var rendered strings.Builder
	for i, line := range strings.Split(output, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		value := ldvalue.Parse([]byte(line))
		if value.Type() != ldvalue.ObjectType {
			d.Raw = append(d.Raw, line)
			rendered.WriteString(line + "\n")
			continue
		}
		if t := value.GetByKey("$message_type"); t.IsString() && t.StringValue() != "diagnostic" {
			// artifact notifications and the like
			continue
		}
		diags, err := jsonDiagnostics(value, nil)
		if err != nil {
			return Decoded{}, fmt.Errorf("malformed diagnostic on output line %d: %w", i+1, err)
		}
		d.Diagnostics = append(d.Diagnostics, diags...)
		if r := value.GetByKey("rendered"); r.IsString() {
			rendered.WriteString(r.StringValue())
			if !strings.HasSuffix(r.StringValue(), "\n") {
				rendered.WriteString("\n")
			}
		} else if len(diags) > 0 {
			rendered.WriteString(diags[0].String() + "\n")
		}
	}
	d.Rendered = rendered.String()
	return d, nil
}

// jsonDiagnostics flattens a diagnostic and its children. A child without spans inherits the
// location of its parent.
func jsonDiagnostics(value ldvalue.Value, parent *Diagnostic) ([]Diagnostic, error) {
	level, err := ParseLevel(value.GetByKey("level").StringValue())
	if err != nil {
		return nil, err
	}
	diag := Diagnostic{
		Level:   level,
		Message: value.GetByKey("message").StringValue(),
		Code:    value.GetByKey("code").GetByKey("code").StringValue(),
	}
	if summaryMessage.MatchString(diag.Message) && parent == nil {
		return nil, nil
	}

	spans := value.GetByKey("spans")
	primary := -1
	for i := 0; i < spans.Count(); i++ {
		span := spans.GetByIndex(i)
		if primary < 0 || span.GetByKey("is_primary").BoolValue() && !spans.GetByIndex(primary).GetByKey("is_primary").BoolValue() {
			primary = i
		}
		if s, ok, err := jsonSuggestion(span); err != nil {
			return nil, err
		} else if ok {
			diag.Suggestions = append(diag.Suggestions, s)
		}
	}
	switch {
	case primary >= 0:
		span := spans.GetByIndex(primary)
		diag.File = span.GetByKey("file_name").StringValue()
		if diag.Line, err = jsonInt(span, "line_start"); err != nil {
			return nil, err
		}
		if diag.Column, err = jsonInt(span, "column_start"); err != nil {
			return nil, err
		}
	case parent != nil:
		diag.File, diag.Line, diag.Column = parent.File, parent.Line, parent.Column
	}

	ret := []Diagnostic{diag}
	children := value.GetByKey("children")
	for i := 0; i < children.Count(); i++ {
		more, err := jsonDiagnostics(children.GetByIndex(i), &diag)
		if err != nil {
			return nil, err
		}
		ret = append(ret, more...)
	}
	return ret, nil
}

func jsonSuggestion(span ldvalue.Value) (Suggestion, bool, error) {
	replacement := span.GetByKey("suggested_replacement")
	if !replacement.IsString() {
		return Suggestion{}, false, nil
	}
	start, err := jsonInt(span, "byte_start")
	if err != nil {
		return Suggestion{}, false, err
	}
	end, err := jsonInt(span, "byte_end")
	if err != nil {
		return Suggestion{}, false, err
	}
	if end < start {
		return Suggestion{}, false, fmt.Errorf("suggestion byte range %d..%d is reversed", start, end)
	}
	return Suggestion{
		File:          span.GetByKey("file_name").StringValue(),
		ByteStart:     start,
		ByteEnd:       end,
		Replacement:   replacement.StringValue(),
		Applicability: span.GetByKey("suggestion_applicability").StringValue(),
	}, true, nil
}

// jsonInt reads a non-negative integer property. JSON numbers arrive as float64.
func jsonInt(obj ldvalue.Value, key string) (int, error) {
	v := obj.GetByKey(key)
	if v.IsNull() {
		return 0, nil
	}
	if !v.IsNumber() {
		return 0, fmt.Errorf("%q is not a number", key)
	}
	n, err := safecast.Convert[int](v.Float64Value())
	if err != nil {
		return 0, fmt.Errorf("%q: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%q is negative", key)
	}
	return n, nil
}
