// Package render projects client state into view data. Render is pure: it
// keeps nothing between calls and every view is rebuilt from state.
package render

import (
	"strings"

	"rollbook/internal/export"
	"rollbook/internal/model"
	"rollbook/internal/state"
)

// Counts tallies statuses over every loaded student.
type Counts struct {
	Present  int
	Absent   int
	Unmarked int
}

// Row is one visible roster line.
type Row struct {
	Student model.Student
	Status  model.Status
}

// ClassCard is an entry in the class switcher.
type ClassCard struct {
	Class  model.ClassSummary
	Active bool
}

// View is everything a front end needs to draw the current screen.
type View struct {
	Authenticated bool
	UserLabel     string
	Date          string
	Search        string

	ClassID      int64
	ClassName    string
	SummaryClass string
	SummaryDate  string
	Classes      []ClassCard
	NoClasses    bool

	Counts Counts
	Rows   []Row
	// EmptyMessage is set when Rows is empty and explains why.
	EmptyMessage string

	ShareText string
	CSV       string
}

// Render builds the view for s.
func Render(s *state.ClientState) View {
	v := View{
		Authenticated: s.Authenticated(),
		Date:          s.Date,
		Search:        s.Search,
		Classes:       make([]ClassCard, 0, len(s.Classes)),
		NoClasses:     len(s.Classes) == 0,
	}
	if s.User != nil {
		v.UserLabel = s.User.Name + " · " + s.User.Role.Label()
	}

	for _, class := range s.Classes {
		v.Classes = append(v.Classes, ClassCard{
			Class:  class,
			Active: s.CurrentClass != nil && s.CurrentClass.ID == class.ID,
		})
	}

	if s.CurrentClass == nil {
		v.ClassName = "Select class"
		v.SummaryClass = "No class selected"
		v.SummaryDate = "Choose a class to begin."
	} else {
		v.ClassID = s.CurrentClass.ID
		v.ClassName = s.CurrentClass.Name
		v.SummaryClass = s.CurrentClass.Name
		v.SummaryDate = "Date: " + s.Date
	}

	v.Counts = Count(s)
	v.Rows = Filter(s)
	switch {
	case s.CurrentClass == nil:
		v.Rows = nil
		v.EmptyMessage = "Create a class to start marking attendance."
	case len(v.Rows) == 0:
		v.EmptyMessage = "No students found."
	}

	snapshot := s.Snapshot()
	v.ShareText = export.BuildShareText(snapshot)
	v.CSV = export.BuildCSV(snapshot)
	return v
}

// Count scans all loaded students, ignoring the search filter.
func Count(s *state.ClientState) Counts {
	var c Counts
	for _, student := range s.Students {
		switch s.Status(student.ID) {
		case model.Present:
			c.Present++
		case model.Absent:
			c.Absent++
		default:
			c.Unmarked++
		}
	}
	return c
}

// Filter returns the students whose name or uid contains the search text,
// case-insensitively. An empty search matches everyone.
func Filter(s *state.ClientState) []Row {
	query := strings.ToLower(s.Search)
	rows := make([]Row, 0, len(s.Students))
	for _, student := range s.Students {
		if query != "" &&
			!strings.Contains(strings.ToLower(student.Name), query) &&
			!strings.Contains(strings.ToLower(student.StudentUID), query) {
			continue
		}
		rows = append(rows, Row{Student: student, Status: s.Status(student.ID)})
	}
	return rows
}
