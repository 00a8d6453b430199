package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceMapDefaultsToUnmarked(t *testing.T) {
	m := AttendanceMap{}
	assert.Equal(t, Unmarked, m.Get(42))

	m.Set(42, Present)
	assert.Equal(t, Present, m.Get(42))
	assert.Len(t, m, 1)

	m.Set(42, Unmarked)
	assert.Equal(t, Unmarked, m.Get(42))
	_, ok := m["42"]
	assert.False(t, ok, "unmarked must not be stored")
}

func TestNewAttendanceMapDropsUnmarkedAndUnknown(t *testing.T) {
	m := NewAttendanceMap(map[string]string{
		"1": "present",
		"2": "absent",
		"3": "unmarked",
		"4": "late",
	})
	assert.Equal(t, AttendanceMap{"1": Present, "2": Absent}, m)
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{Absent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"absent"}`, string(data))

	var decoded struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"present"}`), &decoded))
	assert.Equal(t, Present, decoded.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &decoded))
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Class Rep", RoleRep.Label())
	assert.Equal(t, "Teacher", RoleTeacher.Label())
	assert.Equal(t, "Teacher", Role("").Label())
}
