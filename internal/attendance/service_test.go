package attendance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/apiclient"
	"rollbook/internal/config"
	"rollbook/internal/devserver"
	"rollbook/internal/model"
	"rollbook/internal/tokenstore"
	"rollbook/internal/validation"
)

type fixture struct {
	svc     *Service
	api     *apiclient.Client
	tokens  *tokenstore.Store
	durable *tokenstore.MemoryTier
	session *tokenstore.MemoryTier
	url     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultServer()
	cfg.BcryptCost = 4
	cfg.AccessLog = false
	cfg.AuthRatePerMin = 1000
	server := httptest.NewServer(devserver.New(cfg, nil, nil).Handler())
	t.Cleanup(server.Close)

	f := &fixture{
		api:     apiclient.New(server.URL, 5*time.Second, nil),
		durable: tokenstore.NewMemoryTier(),
		session: tokenstore.NewMemoryTier(),
		url:     server.URL,
	}
	f.tokens = tokenstore.New(f.durable, f.session)
	f.svc = NewService(f.api, f.tokens, nil)
	f.svc.SetClock(func() time.Time { return time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local) })
	return f
}

func (f *fixture) run(t *testing.T, cmd Command) {
	t.Helper()
	_, err := f.svc.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
}

// signedInWithClass registers a teacher and creates a class holding students.
func (f *fixture) signedInWithClass(t *testing.T, students ...model.NewStudent) {
	t.Helper()
	f.run(t, Register{Name: "Ms. Rao", PIN: "1234", Role: model.RoleTeacher})
	f.run(t, CreateClass{Name: "Math"})
	for _, s := range students {
		f.run(t, AddStudent(s))
	}
}

func TestRegisterSignsInAndRemembers(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.Dispatch(context.Background(), Register{Name: " Ms. Rao ", PIN: "1234", Role: model.RoleTeacher})
	require.NoError(t, err)

	assert.True(t, view.Authenticated)
	assert.Equal(t, "Ms. Rao · Teacher", view.UserLabel)
	assert.True(t, view.NoClasses)

	token, ok, err := f.durable.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, f.api.Token(), token)
	_, ok, _ = f.session.Get(context.Background())
	assert.False(t, ok)
}

func TestValidationHappensBeforeRequests(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		cmd  Command
		msg  string
	}{
		{"login without pin", Login{Name: "Ann"}, "Enter both name and PIN."},
		{"login blank name", Login{Name: "  ", PIN: "1234"}, "Enter both name and PIN."},
		{"register short pin", Register{Name: "Ann", PIN: "12", Role: model.RoleTeacher}, "Please enter a name and 4+ digit PIN."},
		{"register bad role", Register{Name: "Ann", PIN: "1234", Role: "admin"}, "Role must be teacher or rep."},
		{"reset without name", ResetPIN{NewPIN: "1234", Confirm: "1234"}, "Enter your registered full name."},
		{"reset short pin", ResetPIN{Name: "Ann", NewPIN: "12", Confirm: "12"}, "New PIN must be at least 4 characters."},
		{"reset mismatch", ResetPIN{Name: "Ann", NewPIN: "1234", Confirm: "1235"}, "New PIN and confirmation do not match."},
		{"mark without class", SetStatus{StudentID: 1, Status: model.Present}, "Create a class first."},
		{"mark all without class", MarkAll{Status: model.Present}, "Create a class first."},
		{"import without class", &ImportCSV{Text: "a,b"}, "Create a class first."},
		{"bad date", SetDate{Date: "19/10/2026"}, "Date must be in YYYY-MM-DD format."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Dispatch(context.Background(), tt.cmd)
			var verr *validation.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.msg, verr.Message)
		})
	}
}

func TestLoginRespectsRememberFlag(t *testing.T) {
	f := newFixture(t)
	f.run(t, Register{Name: "Ann", PIN: "1234", Role: model.RoleRep})
	f.run(t, Logout{})

	f.run(t, Login{Name: "Ann", PIN: "1234", Remember: false})
	_, ok, _ := f.durable.Get(context.Background())
	assert.False(t, ok)
	token, ok, _ := f.session.Get(context.Background())
	assert.True(t, ok)
	assert.Equal(t, f.svc.State().Token, token)
	assert.Equal(t, "Ann · Class Rep", f.svc.View().UserLabel)
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Dispatch(context.Background(), Login{Name: "Ghost", PIN: "1234"})
	var reqErr *apiclient.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "Invalid name or PIN", reqErr.Message)
	assert.False(t, f.svc.View().Authenticated)
}

func TestRestoreSession(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t, model.NewStudent{Name: "Ann", StudentUID: "A1"})

	// A fresh process with the same token store.
	api := apiclient.New(f.url, 5*time.Second, nil)
	svc := NewService(api, f.tokens, nil)
	restore := &RestoreSession{}
	view, err := svc.Dispatch(context.Background(), restore)
	require.NoError(t, err)
	assert.True(t, restore.Restored)
	assert.True(t, view.Authenticated)
	assert.Equal(t, "Math", view.ClassName)
	assert.Len(t, view.Rows, 1)
}

func TestRestoreSessionWithoutToken(t *testing.T) {
	f := newFixture(t)
	restore := &RestoreSession{}
	view, err := f.svc.Dispatch(context.Background(), restore)
	require.NoError(t, err)
	assert.False(t, restore.Restored)
	assert.False(t, view.Authenticated)
}

func TestRestoreSessionClearsRejectedToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Save(context.Background(), "not-a-jwt", true))

	restore := &RestoreSession{}
	view, err := f.svc.Dispatch(context.Background(), restore)
	var reqErr *apiclient.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusUnauthorized, reqErr.Status)
	assert.False(t, restore.Restored)
	assert.False(t, view.Authenticated)

	_, ok, err := f.tokens.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.api.Token())
}

func TestSetStatusTracksLastWrite(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t,
		model.NewStudent{Name: "Ann", StudentUID: "A1"},
		model.NewStudent{Name: "Bob", StudentUID: "B2"},
		model.NewStudent{Name: "Cy", StudentUID: "C3"},
	)
	f.run(t, SetStatus{Ref: "A1", Status: model.Present})
	f.run(t, SetStatus{Ref: "B2", Status: model.Absent})
	f.run(t, SetStatus{Ref: "C3", Status: model.Present})
	f.run(t, SetStatus{Ref: "A1", Status: model.Absent})
	f.run(t, SetStatus{Ref: "C3", Status: model.Unmarked})

	st := f.svc.State()
	want := model.AttendanceMap{}
	for _, s := range st.Students {
		switch s.StudentUID {
		case "A1", "B2":
			want[s.Key()] = model.Absent
		}
	}
	assert.Equal(t, want, st.Attendance)

	// The server agrees after a reload.
	f.run(t, LoadRoster{})
	assert.Equal(t, want, f.svc.State().Attendance)
}

func TestSetStatusUnknownStudent(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t)
	_, err := f.svc.Dispatch(context.Background(), SetStatus{Ref: "nobody", Status: model.Present})
	assert.True(t, validation.IsValidation(err))

	_, err = f.svc.Dispatch(context.Background(), SetStatus{StudentID: 999, Status: model.Present})
	var reqErr *apiclient.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "Student not found", reqErr.Message)
	assert.Empty(t, f.svc.State().Attendance, "failed mutations leave state alone")
}

func TestMarkAllRefetchesRoster(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t,
		model.NewStudent{Name: "Ann", StudentUID: "A1"},
		model.NewStudent{Name: "Bob", StudentUID: "B2"},
	)
	view, err := f.svc.Dispatch(context.Background(), MarkAll{Status: model.Present})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Counts.Present)
	assert.Contains(t, view.ShareText, "Present (2)")

	view, err = f.svc.Dispatch(context.Background(), MarkAll{Status: model.Unmarked})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Counts.Unmarked)
	assert.Empty(t, f.svc.State().Attendance)
}

func TestDateChangeReloadsAttendance(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t, model.NewStudent{Name: "Ann", StudentUID: "A1"})
	f.run(t, SetStatus{Ref: "A1", Status: model.Present})

	view, err := f.svc.Dispatch(context.Background(), SetDate{Date: "2026-10-20"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", view.Date)
	assert.Equal(t, 1, view.Counts.Unmarked)

	view, err = f.svc.Dispatch(context.Background(), SetDate{})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", view.Date)
	assert.Equal(t, 1, view.Counts.Present)
}

func TestClassLifecycle(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t)
	f.run(t, CreateClass{Name: "Art"})
	view := f.svc.View()
	assert.Equal(t, "Art", view.ClassName, "new class becomes current")
	require.Len(t, view.Classes, 2)

	f.run(t, SelectClass{Name: "math"})
	assert.Equal(t, "Math", f.svc.View().ClassName)

	f.run(t, RenameClass{Name: "Algebra"})
	assert.Equal(t, "Algebra", f.svc.View().ClassName)

	f.run(t, DeleteClass{})
	view = f.svc.View()
	assert.Equal(t, "Art", view.ClassName, "falls back to the first class")

	f.run(t, DeleteClass{})
	view = f.svc.View()
	assert.True(t, view.NoClasses)
	assert.Equal(t, "Select class", view.ClassName)
	assert.Equal(t, "Create a class to start marking attendance.", view.EmptyMessage)

	_, err := f.svc.Dispatch(context.Background(), SelectClass{ID: 42})
	assert.True(t, validation.IsValidation(err))
}

func TestStudentsAndSearch(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t,
		model.NewStudent{Name: "Ann", StudentUID: "A1"},
		model.NewStudent{Name: "Bob", StudentUID: "B2"},
	)
	_, err := f.svc.Dispatch(context.Background(), AddStudent{Name: "Bobby", StudentUID: "B2"})
	var reqErr *apiclient.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusConflict, reqErr.Status)

	view, err := f.svc.Dispatch(context.Background(), SetSearch{Text: "an"})
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Ann", view.Rows[0].Student.Name)
	assert.Equal(t, 2, view.Counts.Unmarked, "counts ignore the search")

	f.run(t, RemoveStudent{Ref: "A1"})
	view = f.svc.View()
	assert.Empty(t, view.Rows)
	assert.Equal(t, "No students found.", view.EmptyMessage)
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t, model.NewStudent{Name: "Ann", StudentUID: "A1"})

	imp := &ImportCSV{Text: "Student Name,Roll ID\r\nAnn Again,A1\r\n\"Lee, Jo\",L9\r\n,Z0\r\nMo,M4\r\n"}
	view, err := f.svc.Dispatch(context.Background(), imp)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Added: 2, Skipped: 1, Invalid: 1}, imp.Summary)
	assert.Equal(t, "Imported 2 students. Skipped 2 rows.", imp.Summary.Message())
	assert.Len(t, view.Rows, 3)

	empty := &ImportCSV{Text: "\n , \n"}
	_, err = f.svc.Dispatch(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, "No data found.", empty.Summary.Message())
}

func TestLogoutKeepsDate(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t, model.NewStudent{Name: "Ann", StudentUID: "A1"})
	f.run(t, SetDate{Date: "2026-09-01"})

	view, err := f.svc.Dispatch(context.Background(), Logout{})
	require.NoError(t, err)
	assert.False(t, view.Authenticated)
	assert.Equal(t, "2026-09-01", view.Date)
	assert.Empty(t, view.Classes)
	assert.Empty(t, f.api.Token())

	_, ok, err := f.tokens.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectionErrorLeavesStateAlone(t *testing.T) {
	f := newFixture(t)
	f.signedInWithClass(t, model.NewStudent{Name: "Ann", StudentUID: "A1"})
	before := f.svc.State()

	f.api.BaseURL = "http://127.0.0.1:1"
	_, err := f.svc.Dispatch(context.Background(), SetStatus{Ref: "A1", Status: model.Present})
	var connErr *apiclient.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, before, f.svc.State())
}
