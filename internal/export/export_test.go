package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/csvio"
	"rollbook/internal/model"
)

func snapshot() Snapshot {
	return Snapshot{
		Date:     "2026-10-19",
		Class:    &model.ClassSummary{ID: 3, Name: "Physics, Period 2"},
		MarkedBy: "Ms. Rao",
		Students: []model.Student{
			{ID: 1, Name: "Ann", StudentUID: "A1"},
			{ID: 2, Name: `Bo "Bobby" Li`, StudentUID: "B2"},
			{ID: 3, Name: "Cy\nNewline", StudentUID: "C,3"},
		},
		Attendance: model.AttendanceMap{"1": model.Present, "3": model.Absent},
	}
}

func TestBuildCSV(t *testing.T) {
	got := BuildCSV(snapshot())
	want := strings.Join([]string{
		"Date,Class,Teacher,Name,ID,Status",
		`2026-10-19,"Physics, Period 2",Ms. Rao,Ann,A1,present`,
		`2026-10-19,"Physics, Period 2",Ms. Rao,"Bo ""Bobby"" Li",B2,unmarked`,
		"2026-10-19,\"Physics, Period 2\",Ms. Rao,\"Cy\nNewline\",\"C,3\",absent",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBuildCSVRoundTripsStudents(t *testing.T) {
	s := snapshot()
	rows := csvio.Parse(BuildCSV(s))
	require.Len(t, rows, len(s.Students)+1)
	for i, student := range s.Students {
		assert.Equal(t, student.Name, rows[i+1][3])
		assert.Equal(t, student.StudentUID, rows[i+1][4])
	}

	extracted := csvio.ExtractStudents(BuildCSV(s))
	require.Len(t, extracted.Students, len(s.Students))
	for i, student := range s.Students {
		assert.Equal(t, student.Name, extracted.Students[i].Name)
		assert.Equal(t, student.StudentUID, extracted.Students[i].StudentUID)
	}
}

func TestBuildsEmptyWithoutClass(t *testing.T) {
	s := snapshot()
	s.Class = nil
	assert.Empty(t, BuildCSV(s))
	assert.Empty(t, BuildShareText(s))
}

func TestBuildShareText(t *testing.T) {
	want := strings.Join([]string{
		"Attendance - 2026-10-19",
		"Class: Physics, Period 2",
		"Marked by: Ms. Rao",
		"",
		"Present (1)",
		"1. Ann (A1)",
		"",
		"Absent (1)",
		"1. Cy\nNewline (C,3)",
		"",
		"Unmarked (1)",
		`1. Bo "Bobby" Li (B2)`,
	}, "\n")
	assert.Equal(t, want, BuildShareText(snapshot()))
}

func TestBuildShareTextNoStudents(t *testing.T) {
	s := Snapshot{Date: "2026-10-19", Class: &model.ClassSummary{ID: 1, Name: "Empty"}, Attendance: model.AttendanceMap{}}
	want := strings.Join([]string{
		"Attendance - 2026-10-19",
		"Class: Empty",
		"Marked by: ",
		"",
		"Present (0)",
		"- None",
		"",
		"Absent (0)",
		"- None",
		"",
		"Unmarked (0)",
		"- None",
	}, "\n")
	assert.Equal(t, want, BuildShareText(s))
}

func TestFilenames(t *testing.T) {
	assert.Equal(t, "attendance-2026-10-19.csv", CSVFilename("2026-10-19"))
	assert.Equal(t, "attendance-2026-10-19.txt", TextFilename("2026-10-19"))
}
