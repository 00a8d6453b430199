package attendance

import (
	"context"

	"rollbook/internal/model"
	"rollbook/internal/render"
	"rollbook/internal/validation"
)

// Command is a single user action. Commands are executed by Dispatch.
type Command interface {
	run(ctx context.Context, s *Service) error
}

// Dispatcher executes commands and returns the view that results.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) (render.View, error)
}

var _ Dispatcher = (*Service)(nil)

// Dispatch runs cmd with exclusive access to the state and renders the
// outcome. The view is returned even when cmd fails.
func (s *Service) Dispatch(ctx context.Context, cmd Command) (render.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := cmd.run(ctx, s)
	if err != nil {
		s.logger.Debug("command failed", "command", commandName(cmd), "error", err)
	}
	return render.Render(s.state), err
}

// Credentials signs a user in.
type Credentials struct {
	Name     string `json:"name" validate:"required" msg:"Enter both name and PIN."`
	PIN      string `json:"pin" validate:"required" msg:"Enter both name and PIN."`
	Remember bool   `json:"remember"`
}

// Registration creates an account and signs it in, remembered.
type Registration struct {
	Name string     `json:"name" validate:"required" msg:"Please enter a name and 4+ digit PIN."`
	PIN  string     `json:"pin" validate:"required,min=4" msg:"Please enter a name and 4+ digit PIN."`
	Role model.Role `json:"role" validate:"oneof=teacher rep" msg:"Role must be teacher or rep."`
}

// PINReset replaces a user's PIN.
type PINReset struct {
	Name    string `json:"name" validate:"required" msg:"Enter your registered full name."`
	NewPIN  string `json:"new_pin" validate:"min=4" msg:"New PIN must be at least 4 characters."`
	Confirm string `json:"confirm" validate:"eqfield=NewPIN" msg:"New PIN and confirmation do not match."`
}

// RestoreSession validates a stored token. Restored reports the outcome.
type RestoreSession struct {
	Restored bool
}

func (c *RestoreSession) run(ctx context.Context, s *Service) error {
	restored, err := s.restoreSession(ctx)
	c.Restored = restored
	return err
}

type Login Credentials

func (c Login) run(ctx context.Context, s *Service) error { return s.login(ctx, Credentials(c)) }

type Register Registration

func (c Register) run(ctx context.Context, s *Service) error {
	return s.register(ctx, Registration(c))
}

type ResetPIN PINReset

func (c ResetPIN) run(ctx context.Context, s *Service) error { return s.resetPIN(ctx, PINReset(c)) }

type Logout struct{}

func (Logout) run(ctx context.Context, s *Service) error { return s.logout(ctx) }

// LoadClasses reloads the class list and then the roster of whichever class
// ends up selected.
type LoadClasses struct{}

func (LoadClasses) run(ctx context.Context, s *Service) error {
	if err := s.loadClasses(ctx); err != nil {
		return err
	}
	return s.loadRoster(ctx)
}

type LoadRoster struct{}

func (LoadRoster) run(ctx context.Context, s *Service) error { return s.loadRoster(ctx) }

// SelectClass switches to a listed class by ID, or by case-insensitive Name
// when ID is zero.
type SelectClass struct {
	ID   int64
	Name string
}

func (c SelectClass) run(ctx context.Context, s *Service) error {
	return s.selectClass(ctx, c.ID, c.Name)
}

// SetDate changes the selected day. An empty Date means today.
type SetDate struct {
	Date string
}

func (c SetDate) run(ctx context.Context, s *Service) error { return s.setDate(ctx, c.Date) }

// SetSearch changes the roster filter. No request is made.
type SetSearch struct {
	Text string
}

func (c SetSearch) run(_ context.Context, s *Service) error {
	s.state.Search = c.Text
	return nil
}

// SetStatus marks one student. Ref (a uid or numeric id) is resolved against
// the loaded roster when StudentID is zero.
type SetStatus struct {
	StudentID int64
	Ref       string
	Status    model.Status
}

func (c SetStatus) run(ctx context.Context, s *Service) error {
	id := c.StudentID
	if id == 0 {
		if s.state.CurrentClass == nil {
			return ErrNoClass
		}
		student, ok := s.state.FindStudent(c.Ref)
		if !ok {
			return validation.Errorf("No student matches %q.", c.Ref)
		}
		id = student.ID
	}
	return s.setStatus(ctx, id, c.Status)
}

type MarkAll struct {
	Status model.Status
}

func (c MarkAll) run(ctx context.Context, s *Service) error { return s.markAll(ctx, c.Status) }

type CreateClass struct {
	Name string
}

func (c CreateClass) run(ctx context.Context, s *Service) error { return s.createClass(ctx, c.Name) }

// RenameClass renames the selected class.
type RenameClass struct {
	Name string
}

func (c RenameClass) run(ctx context.Context, s *Service) error { return s.renameClass(ctx, c.Name) }

// DeleteClass deletes the selected class.
type DeleteClass struct{}

func (DeleteClass) run(ctx context.Context, s *Service) error { return s.deleteClass(ctx) }

// AddStudent adds a student to the selected class.
type AddStudent model.NewStudent

func (c AddStudent) run(ctx context.Context, s *Service) error {
	return s.addStudent(ctx, model.NewStudent(c))
}

// RemoveStudent deletes a student by ID, or by Ref like SetStatus.
type RemoveStudent struct {
	ID  int64
	Ref string
}

func (c RemoveStudent) run(ctx context.Context, s *Service) error {
	id := c.ID
	if id == 0 {
		student, ok := s.state.FindStudent(c.Ref)
		if !ok {
			return validation.Errorf("No student matches %q.", c.Ref)
		}
		id = student.ID
	}
	return s.removeStudent(ctx, id)
}

// ImportCSV uploads the students found in Text to the selected class.
type ImportCSV struct {
	Text    string
	Summary ImportSummary
}

func (c *ImportCSV) run(ctx context.Context, s *Service) error {
	summary, err := s.importCSV(ctx, c.Text)
	c.Summary = summary
	return err
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case *RestoreSession:
		return "restore_session"
	case Login:
		return "login"
	case Register:
		return "register"
	case ResetPIN:
		return "reset_pin"
	case Logout:
		return "logout"
	case LoadClasses:
		return "load_classes"
	case LoadRoster:
		return "load_roster"
	case SelectClass:
		return "select_class"
	case SetDate:
		return "set_date"
	case SetSearch:
		return "set_search"
	case SetStatus:
		return "set_status"
	case MarkAll:
		return "mark_all"
	case CreateClass:
		return "create_class"
	case RenameClass:
		return "rename_class"
	case DeleteClass:
		return "delete_class"
	case AddStudent:
		return "add_student"
	case RemoveStudent:
		return "remove_student"
	case *ImportCSV:
		return "import_csv"
	default:
		return "unknown"
	}
}
