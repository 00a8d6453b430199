// Package state holds the client's single in-memory mirror of server data.
// Mutators keep the invariants; callers decide when a mutation is allowed
// (only after the server confirmed it).
package state

import (
	"time"

	"rollbook/internal/export"
	"rollbook/internal/model"
)

// DateLayout is the wire and display format for attendance dates.
const DateLayout = "2006-01-02"

// Today returns the local calendar date, not the UTC one.
func Today(now time.Time) string {
	return now.Local().Format(DateLayout)
}

// ClientState is the client's view of the world. Students and Attendance are
// only meaningful for CurrentClass on Date.
type ClientState struct {
	Token        string
	User         *model.User
	Classes      []model.ClassSummary
	CurrentClass *model.ClassSummary
	Students     []model.Student
	Attendance   model.AttendanceMap
	Date         string
	Search       string
}

// New creates an empty, unauthenticated state for date.
func New(date string) *ClientState {
	return &ClientState{
		Classes:    []model.ClassSummary{},
		Students:   []model.Student{},
		Attendance: model.AttendanceMap{},
		Date:       date,
	}
}

// Authenticated reports whether a user is signed in.
func (s *ClientState) Authenticated() bool { return s.User != nil }

// SetSession records the token and user after login or restoration.
func (s *ClientState) SetSession(token string, user model.User) {
	s.Token = token
	s.User = &user
}

// SetClasses replaces the class list. The previous selection survives when a
// class with the same id is still listed; otherwise the first class is
// selected, or none when the list is empty.
func (s *ClientState) SetClasses(classes []model.ClassSummary) {
	s.Classes = append([]model.ClassSummary{}, classes...)
	var previous int64
	hadSelection := s.CurrentClass != nil
	if hadSelection {
		previous = s.CurrentClass.ID
	}
	s.CurrentClass = nil
	if len(s.Classes) == 0 {
		return
	}
	if hadSelection {
		if class, ok := s.FindClass(previous); ok {
			s.CurrentClass = &class
			return
		}
	}
	first := s.Classes[0]
	s.CurrentClass = &first
}

// FindClass looks up a listed class by id.
func (s *ClientState) FindClass(id int64) (model.ClassSummary, bool) {
	for _, class := range s.Classes {
		if class.ID == id {
			return class, true
		}
	}
	return model.ClassSummary{}, false
}

// SelectClass makes a listed class current. It reports false when id is not listed.
func (s *ClientState) SelectClass(id int64) bool {
	class, ok := s.FindClass(id)
	if !ok {
		return false
	}
	s.CurrentClass = &class
	return true
}

// ReplaceRoster installs a freshly loaded roster wholesale.
func (s *ClientState) ReplaceRoster(class model.ClassSummary, students []model.Student, attendance model.AttendanceMap) {
	s.CurrentClass = &class
	s.Students = append([]model.Student{}, students...)
	if attendance == nil {
		attendance = model.AttendanceMap{}
	}
	s.Attendance = attendance
}

// ClearRoster empties students and attendance.
func (s *ClientState) ClearRoster() {
	s.Students = []model.Student{}
	s.Attendance = model.AttendanceMap{}
}

// Status is the single source of truth for a student's status on Date.
func (s *ClientState) Status(studentID int64) model.Status {
	return s.Attendance.Get(studentID)
}

// ApplyStatus records a server-confirmed status change.
func (s *ClientState) ApplyStatus(studentID int64, status model.Status) {
	if s.Attendance == nil {
		s.Attendance = model.AttendanceMap{}
	}
	s.Attendance.Set(studentID, status)
}

// FindStudent matches a loaded student by uid first, then by numeric id text.
func (s *ClientState) FindStudent(ref string) (model.Student, bool) {
	for _, student := range s.Students {
		if student.StudentUID == ref {
			return student, true
		}
	}
	for _, student := range s.Students {
		if student.Key() == ref {
			return student, true
		}
	}
	return model.Student{}, false
}

// SignOut drops everything tied to the session. The selected date is kept.
func (s *ClientState) SignOut() {
	date := s.Date
	*s = *New(date)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *ClientState) Clone() ClientState {
	out := ClientState{
		Token:      s.Token,
		Classes:    append([]model.ClassSummary{}, s.Classes...),
		Students:   append([]model.Student{}, s.Students...),
		Attendance: s.Attendance.Clone(),
		Date:       s.Date,
		Search:     s.Search,
	}
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.CurrentClass != nil {
		class := *s.CurrentClass
		out.CurrentClass = &class
	}
	return out
}

// Snapshot is the export view of the state.
func (s *ClientState) Snapshot() export.Snapshot {
	snap := export.Snapshot{
		Date:       s.Date,
		Class:      s.CurrentClass,
		Students:   s.Students,
		Attendance: s.Attendance,
	}
	if s.User != nil {
		snap.MarkedBy = s.User.Name
	}
	return snap
}
