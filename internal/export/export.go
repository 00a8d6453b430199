// Package export derives shareable snapshots of the loaded attendance.
package export

import (
	"fmt"
	"strings"

	"rollbook/internal/csvio"
	"rollbook/internal/model"
)

// Snapshot is the data an export needs. Class is nil when no class is selected.
type Snapshot struct {
	Date       string
	Class      *model.ClassSummary
	MarkedBy   string
	Students   []model.Student
	Attendance model.AttendanceMap
}

// CSVHeader is the fixed column order of attendance exports.
var CSVHeader = []string{"Date", "Class", "Teacher", "Name", "ID", "Status"}

// BuildCSV renders one row per loaded student with its resolved status.
func BuildCSV(s Snapshot) string {
	if s.Class == nil {
		return ""
	}
	rows := [][]string{CSVHeader}
	for _, student := range s.Students {
		rows = append(rows, []string{
			s.Date,
			s.Class.Name,
			s.MarkedBy,
			student.Name,
			student.StudentUID,
			s.Attendance.Get(student.ID).String(),
		})
	}
	return csvio.Build(rows)
}

// BuildShareText renders the plain-text summary suited to messaging apps.
// Every section is always present, with "- None" when it has no students.
func BuildShareText(s Snapshot) string {
	if s.Class == nil {
		return ""
	}
	groups := map[model.Status][]string{}
	for _, student := range s.Students {
		status := s.Attendance.Get(student.ID)
		groups[status] = append(groups[status], fmt.Sprintf("%s (%s)", student.Name, student.StudentUID))
	}

	lines := []string{
		"Attendance - " + s.Date,
		"Class: " + s.Class.Name,
		"Marked by: " + s.MarkedBy,
	}
	for _, status := range model.Statuses {
		entries := groups[status]
		lines = append(lines, "", fmt.Sprintf("%s (%d)", status.Label(), len(entries)))
		if len(entries) == 0 {
			lines = append(lines, "- None")
			continue
		}
		for i, entry := range entries {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, entry))
		}
	}
	return strings.Join(lines, "\n")
}

// CSVFilename and TextFilename name downloaded exports after the date.
func CSVFilename(date string) string  { return "attendance-" + date + ".csv" }
func TextFilename(date string) string { return "attendance-" + date + ".txt" }
