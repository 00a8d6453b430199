// Package attendance owns the client state and every operation that changes
// it. Operations run one at a time: each validates input, calls the API, and
// only mutates state once the server has confirmed the change.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rollbook/internal/apiclient"
	"rollbook/internal/csvio"
	"rollbook/internal/model"
	"rollbook/internal/render"
	"rollbook/internal/state"
	"rollbook/internal/validation"
)

// API is the subset of the REST client the service drives.
type API interface {
	SetToken(token string)
	Register(ctx context.Context, req apiclient.RegisterRequest) error
	Login(ctx context.Context, name, pin string) (model.Session, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (model.User, error)
	ResetPIN(ctx context.Context, name, newPIN string) error
	ListClasses(ctx context.Context) ([]model.ClassSummary, error)
	CreateClass(ctx context.Context, name string) (int64, error)
	RenameClass(ctx context.Context, classID int64, name string) error
	DeleteClass(ctx context.Context, classID int64) error
	Roster(ctx context.Context, classID int64, date string) (apiclient.Roster, error)
	SetAttendance(ctx context.Context, classID int64, date string, studentID int64, status model.Status) error
	BulkAttendance(ctx context.Context, classID int64, date string, status model.Status) error
	AddStudent(ctx context.Context, classID int64, student model.NewStudent) error
	RemoveStudent(ctx context.Context, studentID int64) error
	ImportStudents(ctx context.Context, classID int64, students []model.NewStudent) (apiclient.ImportResult, error)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Save(ctx context.Context, token string, durable bool) error
	Load(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// ErrNoClass is returned by operations that need a selected class.
var ErrNoClass = validation.Errorf("Create a class first.")

// Service coordinates the API, the token store and the client state.
type Service struct {
	mu     sync.Mutex
	api    API
	tokens TokenStore
	state  *state.ClientState
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a service with an empty state dated today.
func NewService(api API, tokens TokenStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{api: api, tokens: tokens, now: time.Now, logger: logger}
	s.state = state.New(state.Today(s.now()))
	return s
}

// SetClock replaces the time source used for "today". Call before use.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.state.Date = state.Today(now())
}

// State returns a copy of the current state.
func (s *Service) State() state.ClientState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// View renders the current state.
func (s *Service) View() render.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return render.Render(s.state)
}

// restoreSession validates a stored token and loads the first screen. A failed
// check clears the token; it is the only read failure that does.
func (s *Service) restoreSession(ctx context.Context) (bool, error) {
	token, ok, err := s.tokens.Load(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	s.state.Token = token
	s.api.SetToken(token)

	user, err := s.api.Session(ctx)
	if err != nil {
		s.logger.Info("stored session rejected", "error", err)
		s.state.SignOut()
		s.api.SetToken("")
		return false, errors.Join(err, s.tokens.Clear(ctx))
	}
	s.state.SetSession(token, user)
	if err := s.loadClasses(ctx); err != nil {
		return true, err
	}
	return true, s.loadRoster(ctx)
}

func (s *Service) login(ctx context.Context, in Credentials) error {
	in.Name, in.PIN = strings.TrimSpace(in.Name), strings.TrimSpace(in.PIN)
	if err := validation.Struct(in); err != nil {
		return err
	}
	session, err := s.api.Login(ctx, in.Name, in.PIN)
	if err != nil {
		return err
	}
	if err := s.tokens.Save(ctx, session.Token, in.Remember); err != nil {
		return err
	}
	s.state.SetSession(session.Token, session.User)
	s.api.SetToken(session.Token)
	s.logger.Info("signed in", "user", session.User.Name, "role", session.User.Role, "remember", in.Remember)

	if err := s.loadClasses(ctx); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

func (s *Service) register(ctx context.Context, in Registration) error {
	in.Name, in.PIN = strings.TrimSpace(in.Name), strings.TrimSpace(in.PIN)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if err := s.api.Register(ctx, apiclient.RegisterRequest{Name: in.Name, PIN: in.PIN, Role: in.Role}); err != nil {
		return err
	}
	return s.login(ctx, Credentials{Name: in.Name, PIN: in.PIN, Remember: true})
}

func (s *Service) resetPIN(ctx context.Context, in PINReset) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return err
	}
	return s.api.ResetPIN(ctx, in.Name, in.NewPIN)
}

// logout ignores server failures; the local session is dropped regardless.
func (s *Service) logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Debug("logout request failed", "error", err)
	}
	s.api.SetToken("")
	s.state.SignOut()
	return s.tokens.Clear(ctx)
}

func (s *Service) loadClasses(ctx context.Context) error {
	classes, err := s.api.ListClasses(ctx)
	if err != nil {
		return err
	}
	s.state.SetClasses(classes)
	return nil
}

// loadRoster replaces students and attendance for the selected class and
// date. With no class selected the roster is simply emptied.
func (s *Service) loadRoster(ctx context.Context) error {
	if s.state.CurrentClass == nil {
		s.state.ClearRoster()
		return nil
	}
	roster, err := s.api.Roster(ctx, s.state.CurrentClass.ID, s.state.Date)
	if err != nil {
		return err
	}
	s.state.ReplaceRoster(roster.Class, roster.Students, model.NewAttendanceMap(roster.Attendance))
	return nil
}

func (s *Service) selectClass(ctx context.Context, classID int64, name string) error {
	if classID == 0 {
		for _, class := range s.state.Classes {
			if strings.EqualFold(class.Name, strings.TrimSpace(name)) {
				classID = class.ID
				break
			}
		}
	}
	if !s.state.SelectClass(classID) {
		if name != "" {
			return validation.Errorf("No class named %q.", name)
		}
		return validation.Errorf("Unknown class %d.", classID)
	}
	return s.loadRoster(ctx)
}

func (s *Service) setDate(ctx context.Context, date string) error {
	date = strings.TrimSpace(date)
	if date == "" {
		date = state.Today(s.now())
	}
	if _, err := time.Parse(state.DateLayout, date); err != nil {
		return validation.Errorf("Date must be in YYYY-MM-DD format.")
	}
	s.state.Date = date
	return s.loadRoster(ctx)
}

func (s *Service) setStatus(ctx context.Context, studentID int64, status model.Status) error {
	class := s.state.CurrentClass
	if class == nil {
		return ErrNoClass
	}
	if err := s.api.SetAttendance(ctx, class.ID, s.state.Date, studentID, status); err != nil {
		return err
	}
	s.state.ApplyStatus(studentID, status)
	return nil
}

// markAll re-fetches the roster after the bulk call instead of patching
// locally, so the view reflects exactly what the server stored.
func (s *Service) markAll(ctx context.Context, status model.Status) error {
	class := s.state.CurrentClass
	if class == nil {
		return ErrNoClass
	}
	if err := s.api.BulkAttendance(ctx, class.ID, s.state.Date, status); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

func (s *Service) createClass(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validation.Errorf("Class name is required.")
	}
	id, err := s.api.CreateClass(ctx, name)
	if err != nil {
		return err
	}
	if err := s.loadClasses(ctx); err != nil {
		return err
	}
	if !s.state.SelectClass(id) && len(s.state.Classes) > 0 {
		s.state.SelectClass(s.state.Classes[0].ID)
	}
	return s.loadRoster(ctx)
}

func (s *Service) renameClass(ctx context.Context, name string) error {
	class := s.state.CurrentClass
	if class == nil {
		return ErrNoClass
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return validation.Errorf("Class name is required.")
	}
	if err := s.api.RenameClass(ctx, class.ID, name); err != nil {
		return err
	}
	if err := s.loadClasses(ctx); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

func (s *Service) deleteClass(ctx context.Context) error {
	class := s.state.CurrentClass
	if class == nil {
		return ErrNoClass
	}
	if err := s.api.DeleteClass(ctx, class.ID); err != nil {
		return err
	}
	if err := s.loadClasses(ctx); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

func (s *Service) addStudent(ctx context.Context, in model.NewStudent) error {
	class := s.state.CurrentClass
	if class == nil {
		return ErrNoClass
	}
	in.Name, in.StudentUID = strings.TrimSpace(in.Name), strings.TrimSpace(in.StudentUID)
	if in.Name == "" || in.StudentUID == "" {
		return validation.Errorf("Enter both student name and ID.")
	}
	if err := s.api.AddStudent(ctx, class.ID, in); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

func (s *Service) removeStudent(ctx context.Context, studentID int64) error {
	if err := s.api.RemoveStudent(ctx, studentID); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

// ImportSummary reports the outcome of a CSV import.
type ImportSummary struct {
	Added int
	// Skipped is the server's count of rejected students.
	Skipped int
	// Invalid counts rows dropped locally for a missing name or identifier.
	Invalid int
	NoData  bool
}

// Message is the text shown to the user after an import.
func (i ImportSummary) Message() string {
	if i.NoData {
		return "No data found."
	}
	return fmt.Sprintf("Imported %d students. Skipped %d rows.", i.Added, i.Skipped+i.Invalid)
}

func (s *Service) importCSV(ctx context.Context, text string) (ImportSummary, error) {
	class := s.state.CurrentClass
	if class == nil {
		return ImportSummary{}, ErrNoClass
	}
	extraction := csvio.ExtractStudents(text)
	if extraction.Empty {
		return ImportSummary{NoData: true}, nil
	}
	result, err := s.api.ImportStudents(ctx, class.ID, extraction.Students)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{Added: result.Added, Skipped: result.Skipped, Invalid: extraction.Skipped}
	s.logger.Info("imported students", "class", class.ID, "added", summary.Added, "skipped", summary.Skipped, "invalid", summary.Invalid)
	return summary, s.loadRoster(ctx)
}
