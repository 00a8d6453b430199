package devserver

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"rollbook/internal/model"
)

// Error is a failure with the HTTP status it maps to.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

var (
	errBadCredentials = newError(http.StatusUnauthorized, "Invalid name or PIN")
	errUserExists     = newError(http.StatusConflict, "User already exists")
	errUserNotFound   = newError(http.StatusNotFound, "User not found")
	errClassNotFound  = newError(http.StatusNotFound, "Class not found")
	errStudentMissing = newError(http.StatusNotFound, "Student not found")
	errDuplicateUID   = newError(http.StatusConflict, "Student ID already exists")
)

type user struct {
	model.User
	pinHash []byte
}

type class struct {
	id    int64
	owner string
	name  string
}

type student struct {
	model.Student
	classID int64
}

// Store keeps every server-side entity in memory. All methods are safe for
// concurrent use.
type Store struct {
	mu         sync.Mutex
	bcryptCost int
	nextID     int64
	users      map[string]*user
	classes    map[int64]*class
	students   map[int64]*student
	// attendance is keyed by class, then date, then student.
	attendance map[int64]map[string]map[int64]model.Status
}

// NewStore creates an empty store. cost is the bcrypt cost for PIN hashes.
func NewStore(cost int) *Store {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		bcryptCost: cost,
		users:      make(map[string]*user),
		classes:    make(map[int64]*class),
		students:   make(map[int64]*student),
		attendance: make(map[int64]map[string]map[int64]model.Status),
	}
}

func userKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ---------- Users ----------

func (s *Store) Register(name, pin string, role model.Role) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.bcryptCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(name)
	if _, ok := s.users[key]; ok {
		return errUserExists
	}
	s.users[key] = &user{User: model.User{Name: strings.TrimSpace(name), Role: role}, pinHash: hash}
	return nil
}

// Authenticate checks a PIN against the stored hash.
func (s *Store) Authenticate(name, pin string) (model.User, error) {
	s.mu.Lock()
	u, ok := s.users[userKey(name)]
	s.mu.Unlock()
	if !ok {
		return model.User{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.pinHash, []byte(pin)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return model.User{}, errBadCredentials
		}
		return model.User{}, err
	}
	return u.User, nil
}

func (s *Store) User(name string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userKey(name)]
	if !ok {
		return model.User{}, false
	}
	return u.User, true
}

func (s *Store) ResetPIN(name, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.bcryptCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userKey(name)]
	if !ok {
		return errUserNotFound
	}
	u.pinHash = hash
	return nil
}

// ---------- Classes ----------

// owned returns the class when owner may see it. Callers hold s.mu.
func (s *Store) owned(owner string, classID int64) (*class, error) {
	c, ok := s.classes[classID]
	if !ok || c.owner != userKey(owner) {
		return nil, errClassNotFound
	}
	return c, nil
}

func (s *Store) summary(c *class) model.ClassSummary {
	count := 0
	for _, st := range s.students {
		if st.classID == c.id {
			count++
		}
	}
	return model.ClassSummary{ID: c.id, Name: c.name, StudentCount: count}
}

// Classes lists owner's classes in creation order.
func (s *Store) Classes(owner string) []model.ClassSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ClassSummary{}
	for _, c := range s.classes {
		if c.owner == userKey(owner) {
			out = append(out, s.summary(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CreateClass(owner, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &class{id: s.id(), owner: userKey(owner), name: name}
	s.classes[c.id] = c
	return c.id
}

func (s *Store) RenameClass(owner string, classID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.owned(owner, classID)
	if err != nil {
		return err
	}
	c.name = name
	return nil
}

// DeleteClass removes the class with its students and attendance.
func (s *Store) DeleteClass(owner string, classID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(owner, classID); err != nil {
		return err
	}
	delete(s.classes, classID)
	delete(s.attendance, classID)
	for id, st := range s.students {
		if st.classID == classID {
			delete(s.students, id)
		}
	}
	return nil
}

// Roster returns the class, its students ordered by name, and the statuses
// recorded on date.
func (s *Store) Roster(owner string, classID int64, date string) (model.ClassSummary, []model.Student, map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.owned(owner, classID)
	if err != nil {
		return model.ClassSummary{}, nil, nil, err
	}
	students := s.studentsOf(classID)
	attendance := make(map[string]string)
	for id, status := range s.attendance[classID][date] {
		attendance[model.StudentKey(id)] = status.String()
	}
	return s.summary(c), students, attendance, nil
}

func (s *Store) studentsOf(classID int64) []model.Student {
	out := []model.Student{}
	for _, st := range s.students {
		if st.classID == classID {
			out = append(out, st.Student)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ---------- Attendance ----------

func (s *Store) day(classID int64, date string) map[int64]model.Status {
	byDate, ok := s.attendance[classID]
	if !ok {
		byDate = make(map[string]map[int64]model.Status)
		s.attendance[classID] = byDate
	}
	statuses, ok := byDate[date]
	if !ok {
		statuses = make(map[int64]model.Status)
		byDate[date] = statuses
	}
	return statuses
}

// SetAttendance records one status. Unmarked removes the record.
func (s *Store) SetAttendance(owner string, classID int64, date string, studentID int64, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(owner, classID); err != nil {
		return err
	}
	st, ok := s.students[studentID]
	if !ok || st.classID != classID {
		return errStudentMissing
	}
	statuses := s.day(classID, date)
	if status == model.Unmarked {
		delete(statuses, studentID)
		return nil
	}
	statuses[studentID] = status
	return nil
}

// BulkAttendance applies status to every student currently in the class.
func (s *Store) BulkAttendance(owner string, classID int64, date string, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(owner, classID); err != nil {
		return err
	}
	statuses := s.day(classID, date)
	for id, st := range s.students {
		if st.classID != classID {
			continue
		}
		if status == model.Unmarked {
			delete(statuses, id)
		} else {
			statuses[id] = status
		}
	}
	return nil
}

// ---------- Students ----------

func (s *Store) uidTaken(classID int64, uid string) bool {
	for _, st := range s.students {
		if st.classID == classID && strings.EqualFold(st.StudentUID, uid) {
			return true
		}
	}
	return false
}

func (s *Store) AddStudent(owner string, classID int64, in model.NewStudent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(owner, classID); err != nil {
		return err
	}
	if s.uidTaken(classID, in.StudentUID) {
		return errDuplicateUID
	}
	id := s.id()
	s.students[id] = &student{
		Student: model.Student{ID: id, Name: in.Name, StudentUID: in.StudentUID},
		classID: classID,
	}
	return nil
}

// RemoveStudent deletes a student from one of owner's classes along with
// their attendance.
func (s *Store) RemoveStudent(owner string, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		return errStudentMissing
	}
	if _, err := s.owned(owner, st.classID); err != nil {
		return errStudentMissing
	}
	delete(s.students, studentID)
	for _, statuses := range s.attendance[st.classID] {
		delete(statuses, studentID)
	}
	return nil
}

// ImportStudents adds every student with a name and an unused uid. Blank
// entries and duplicates, including repeats within the batch, are skipped.
func (s *Store) ImportStudents(owner string, classID int64, in []model.NewStudent) (added, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(owner, classID); err != nil {
		return 0, 0, err
	}
	for _, candidate := range in {
		name := strings.TrimSpace(candidate.Name)
		uid := strings.TrimSpace(candidate.StudentUID)
		if name == "" || uid == "" || s.uidTaken(classID, uid) {
			skipped++
			continue
		}
		id := s.id()
		s.students[id] = &student{
			Student: model.Student{ID: id, Name: name, StudentUID: uid},
			classID: classID,
		}
		added++
	}
	return added, skipped, nil
}
