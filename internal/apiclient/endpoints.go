package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"rollbook/internal/model"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name string     `json:"name"`
	PIN  string     `json:"pin"`
	Role model.Role `json:"role"`
}

// Roster is the roster endpoint's payload for one class and date.
type Roster struct {
	Class      model.ClassSummary `json:"class"`
	Students   []model.Student    `json:"students"`
	Attendance map[string]string  `json:"attendance"`
}

// ImportResult reports how many students the server added and skipped.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.Do(ctx, http.MethodPost, "/register", req, nil)
}

// Login authenticates and returns the issued session.
func (c *Client) Login(ctx context.Context, name, pin string) (model.Session, error) {
	var session model.Session
	err := c.Do(ctx, http.MethodPost, "/login", map[string]string{"name": name, "pin": pin}, &session)
	return session, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/logout", nil, nil)
}

// Session validates the current token and returns its user.
func (c *Client) Session(ctx context.Context) (model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	err := c.Do(ctx, http.MethodGet, "/session", nil, &resp)
	return resp.User, err
}

func (c *Client) ResetPIN(ctx context.Context, name, newPIN string) error {
	return c.Do(ctx, http.MethodPost, "/reset-pin", map[string]string{"name": name, "new_pin": newPIN}, nil)
}

func (c *Client) ListClasses(ctx context.Context) ([]model.ClassSummary, error) {
	var resp struct {
		Classes []model.ClassSummary `json:"classes"`
	}
	if err := c.Do(ctx, http.MethodGet, "/classes", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Classes == nil {
		resp.Classes = []model.ClassSummary{}
	}
	return resp.Classes, nil
}

// CreateClass returns the new class id.
func (c *Client) CreateClass(ctx context.Context, name string) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.Do(ctx, http.MethodPost, "/classes", map[string]string{"name": name}, &resp)
	return resp.ID, err
}

func (c *Client) RenameClass(ctx context.Context, classID int64, name string) error {
	return c.Do(ctx, http.MethodPatch, fmt.Sprintf("/classes/%d", classID), map[string]string{"name": name}, nil)
}

func (c *Client) DeleteClass(ctx context.Context, classID int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/classes/%d", classID), nil, nil)
}

// Roster fetches the students and attendance for a class on date.
func (c *Client) Roster(ctx context.Context, classID int64, date string) (Roster, error) {
	var roster Roster
	path := fmt.Sprintf("/classes/%d/roster?date=%s", classID, url.QueryEscape(date))
	err := c.Do(ctx, http.MethodGet, path, nil, &roster)
	return roster, err
}

func (c *Client) SetAttendance(ctx context.Context, classID int64, date string, studentID int64, status model.Status) error {
	body := struct {
		Date      string       `json:"date"`
		StudentID int64        `json:"student_id"`
		Status    model.Status `json:"status"`
	}{date, studentID, status}
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/classes/%d/attendance", classID), body, nil)
}

func (c *Client) BulkAttendance(ctx context.Context, classID int64, date string, status model.Status) error {
	body := struct {
		Date   string       `json:"date"`
		Status model.Status `json:"status"`
	}{date, status}
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/classes/%d/attendance/bulk", classID), body, nil)
}

func (c *Client) AddStudent(ctx context.Context, classID int64, student model.NewStudent) error {
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/classes/%d/students", classID), student, nil)
}

func (c *Client) RemoveStudent(ctx context.Context, studentID int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/students/%d", studentID), nil, nil)
}

func (c *Client) ImportStudents(ctx context.Context, classID int64, students []model.NewStudent) (ImportResult, error) {
	if students == nil {
		students = []model.NewStudent{}
	}
	body := struct {
		Students []model.NewStudent `json:"students"`
	}{students}
	var result ImportResult
	err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/classes/%d/students/import", classID), body, &result)
	return result, err
}
