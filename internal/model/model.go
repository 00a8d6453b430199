package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Role distinguishes teachers from class representatives.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleRep     Role = "rep"
)

// Label is the human-facing role name.
func (r Role) Label() string {
	if r == RoleRep {
		return "Class Rep"
	}
	return "Teacher"
}

// User is the authenticated account.
type User struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Session pairs the bearer token with its user.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ClassSummary is the server's view of a class as returned by the class list.
type ClassSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
}

// Student is a roster member. StudentUID is chosen by the user and unique within a class.
type Student struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	StudentUID string `json:"student_uid"`
}

// Key is the attendance map key for the student.
func (s Student) Key() string { return StudentKey(s.ID) }

// StudentKey formats a student id the way attendance maps key it.
func StudentKey(id int64) string { return strconv.FormatInt(id, 10) }

// NewStudent is a student that has not been stored yet.
type NewStudent struct {
	Name       string `json:"name"`
	StudentUID string `json:"student_uid"`
}

// Status is the tri-state attendance status. The zero value is Unmarked.
type Status int

const (
	Unmarked Status = iota
	Present
	Absent
)

// Statuses lists every status in display order.
var Statuses = []Status{Present, Absent, Unmarked}

func (s Status) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unmarked"
	}
}

// Label is the capitalized section title used in exports.
func (s Status) Label() string {
	switch s {
	case Present:
		return "Present"
	case Absent:
		return "Absent"
	default:
		return "Unmarked"
	}
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(value string) (Status, error) {
	switch value {
	case "present":
		return Present, nil
	case "absent":
		return Absent, nil
	case "unmarked":
		return Unmarked, nil
	}
	return Unmarked, fmt.Errorf("unknown attendance status %q", value)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AttendanceMap holds the marked students for a single date. A key exists only
// for Present or Absent; Unmarked is the absence of a key.
type AttendanceMap map[string]Status

// NewAttendanceMap builds a map from wire values, dropping anything that is
// not present or absent.
func NewAttendanceMap(raw map[string]string) AttendanceMap {
	out := make(AttendanceMap, len(raw))
	for key, value := range raw {
		status, err := ParseStatus(value)
		if err != nil || status == Unmarked {
			continue
		}
		out[key] = status
	}
	return out
}

// Get returns the status for a student, Unmarked when no entry exists.
func (m AttendanceMap) Get(studentID int64) Status {
	if status, ok := m[StudentKey(studentID)]; ok {
		return status
	}
	return Unmarked
}

// Set records a status. Setting Unmarked deletes the entry.
func (m AttendanceMap) Set(studentID int64, status Status) {
	key := StudentKey(studentID)
	if status == Unmarked {
		delete(m, key)
		return
	}
	m[key] = status
}

// Clone returns an independent copy.
func (m AttendanceMap) Clone() AttendanceMap {
	out := make(AttendanceMap, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}
