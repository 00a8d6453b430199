package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/model"
	"rollbook/internal/state"
)

func loaded() *state.ClientState {
	s := state.New("2026-10-19")
	s.SetSession("tok", model.User{Name: "Ms. Rao", Role: model.RoleRep})
	s.SetClasses([]model.ClassSummary{{ID: 3, Name: "Math"}, {ID: 9, Name: "Art"}})
	s.ReplaceRoster(model.ClassSummary{ID: 3, Name: "Math", StudentCount: 3}, []model.Student{
		{ID: 1, Name: "Ann", StudentUID: "A1"},
		{ID: 2, Name: "Bob", StudentUID: "B2"},
		{ID: 3, Name: "Dana", StudentUID: "AN-3"},
	}, model.AttendanceMap{"1": model.Present, "2": model.Absent})
	return s
}

func TestFilterByNameOrUID(t *testing.T) {
	s := state.New("2026-10-19")
	s.ReplaceRoster(model.ClassSummary{ID: 1}, []model.Student{
		{ID: 1, Name: "Ann", StudentUID: "A1"},
		{ID: 2, Name: "Bob", StudentUID: "B2"},
	}, nil)
	s.Search = "an"

	rows := Filter(s)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0].Student.Name)

	s.Search = "b2"
	rows = Filter(s)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0].Student.Name)

	s.Search = ""
	assert.Len(t, Filter(s), 2)
}

func TestCountsIgnoreSearch(t *testing.T) {
	s := loaded()
	s.Search = "zzz"
	v := Render(s)
	assert.Equal(t, Counts{Present: 1, Absent: 1, Unmarked: 1}, v.Counts)
	assert.Empty(t, v.Rows)
	assert.Equal(t, "No students found.", v.EmptyMessage)
}

func TestRenderLoaded(t *testing.T) {
	s := loaded()
	s.Search = "AN"
	v := Render(s)

	assert.True(t, v.Authenticated)
	assert.Equal(t, "Ms. Rao · Class Rep", v.UserLabel)
	assert.Equal(t, "Math", v.ClassName)
	assert.Equal(t, "Date: 2026-10-19", v.SummaryDate)
	assert.Equal(t, []ClassCard{
		{Class: model.ClassSummary{ID: 3, Name: "Math"}, Active: true},
		{Class: model.ClassSummary{ID: 9, Name: "Art"}, Active: false},
	}, v.Classes)

	require.Len(t, v.Rows, 2)
	assert.Equal(t, Row{Student: model.Student{ID: 1, Name: "Ann", StudentUID: "A1"}, Status: model.Present}, v.Rows[0])
	assert.Equal(t, model.Unmarked, v.Rows[1].Status)
	assert.Contains(t, v.ShareText, "Present (1)\n1. Ann (A1)")
	assert.Contains(t, v.CSV, "2026-10-19,Math,Ms. Rao,Bob,B2,absent")
}

func TestRenderWithoutClass(t *testing.T) {
	s := state.New("2026-10-19")
	v := Render(s)
	assert.False(t, v.Authenticated)
	assert.True(t, v.NoClasses)
	assert.Equal(t, "Select class", v.ClassName)
	assert.Equal(t, "No class selected", v.SummaryClass)
	assert.Equal(t, "Choose a class to begin.", v.SummaryDate)
	assert.Equal(t, "Create a class to start marking attendance.", v.EmptyMessage)
	assert.Empty(t, v.ShareText)
	assert.Empty(t, v.CSV)
}
