// Package csvio parses and builds the comma-separated text used for student
// import and attendance export.
package csvio

import (
	"strings"

	"rollbook/internal/model"
)

// SampleCSV is the template offered to users before their first import.
const SampleCSV = "Name,ID\nPriya Sharma,CPU-2041\nArjun Patel,CPU-2042"

// Parse splits text into rows of fields. Quoted fields may contain commas,
// newlines and doubled quotes. "\n", "\r" and "\r\n" all end a row; "\r\n"
// counts once. A row is only emitted when it has at least one completed field
// or a non-empty pending field, so trailing terminators add nothing.
func Parse(text string) [][]string {
	var (
		rows     [][]string
		row      []string
		current  strings.Builder
		inQuotes bool
	)
	flush := func() {
		if current.Len() > 0 || len(row) > 0 {
			row = append(row, current.String())
			rows = append(rows, row)
		}
		current.Reset()
		row = nil
	}

	for i := 0; i < len(text); i++ {
		char := text[i]
		switch {
		case char == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				current.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case char == ',' && !inQuotes:
			row = append(row, current.String())
			current.Reset()
		case (char == '\n' || char == '\r') && !inQuotes:
			flush()
			if char == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		default:
			current.WriteByte(char)
		}
	}
	flush()
	return rows
}

// DropBlankRows removes rows whose cells are all empty after trimming.
func DropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Header describes the column layout found in the first row.
type Header struct {
	NameIndex int
	IDIndex   int
	Present   bool
}

// DetectHeader treats row as a header when one cell contains "name" and one
// contains "id", compared case-insensitively after trimming. The first
// matching cell wins for each column.
func DetectHeader(row []string) Header {
	h := Header{NameIndex: -1, IDIndex: -1}
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		if h.NameIndex == -1 && strings.Contains(normalized, "name") {
			h.NameIndex = i
		}
		if h.IDIndex == -1 && strings.Contains(normalized, "id") {
			h.IDIndex = i
		}
	}
	h.Present = h.NameIndex != -1 && h.IDIndex != -1
	return h
}

// Extraction is the outcome of turning import text into students.
type Extraction struct {
	Students []model.NewStudent
	// Skipped counts data rows without a usable name or identifier.
	Skipped int
	// Empty is true when the text held no non-blank rows at all.
	Empty bool
}

// ExtractStudents parses text and maps each data row to a student. Without a
// header, column 0 is the name and column 1 the identifier, and the first row
// is data too.
func ExtractStudents(text string) Extraction {
	rows := DropBlankRows(Parse(text))
	if len(rows) == 0 {
		return Extraction{Empty: true}
	}

	start, nameIndex, idIndex := 0, 0, 1
	if header := DetectHeader(rows[0]); header.Present {
		start, nameIndex, idIndex = 1, header.NameIndex, header.IDIndex
	}

	var out Extraction
	for _, row := range rows[start:] {
		name := strings.TrimSpace(cell(row, nameIndex))
		uid := strings.TrimSpace(cell(row, idIndex))
		if name == "" || uid == "" {
			out.Skipped++
			continue
		}
		out.Students = append(out.Students, model.NewStudent{Name: name, StudentUID: uid})
	}
	return out
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return row[index]
}

// Escape quotes a field when it contains a comma, double quote or newline,
// doubling any embedded quotes.
func Escape(value string) string {
	if strings.ContainsAny(value, ",\"\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// Build joins escaped fields with commas and rows with "\n". No trailing
// newline is written.
func Build(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		fields := make([]string, len(row))
		for j, value := range row {
			fields[j] = Escape(value)
		}
		lines[i] = strings.Join(fields, ",")
	}
	return strings.Join(lines, "\n")
}
