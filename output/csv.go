package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// valueColumn holds results that are not JSON objects.
const valueColumn = "value"

// encodeCSV writes one row per element when result encodes to a JSON array,
// otherwise a single row. Object fields become columns in first-seen order;
// nested values are written as compact JSON.
func encodeCSV(result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	var rows []any
	switch v := tree.(type) {
	case nil:
	case []any:
		rows = v
	default:
		rows = []any{v}
	}

	header, records := tabulate(rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return nil, err
		}
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// tabulate collects the union of columns across rows and renders each row
// against it. Keys of one object are added in sorted order, so the header is
// deterministic.
func tabulate(rows []any) ([]string, [][]string) {
	var header []string
	index := make(map[string]int)
	addColumn := func(name string) {
		if _, ok := index[name]; !ok {
			index[name] = len(header)
			header = append(header, name)
		}
	}

	for _, row := range rows {
		if obj, ok := row.(map[string]any); ok {
			for _, k := range slices.Sorted(maps.Keys(obj)) {
				addColumn(k)
			}
		} else {
			addColumn(valueColumn)
		}
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		rec := make([]string, len(header))
		if obj, ok := row.(map[string]any); ok {
			for k, v := range obj {
				rec[index[k]] = cell(v)
			}
		} else {
			rec[index[valueColumn]] = cell(row)
		}
		records = append(records, rec)
	}
	return header, records
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
