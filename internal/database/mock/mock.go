// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockRoster is a mock implementation of database.RosterReader and database.EncodingWriter
type MockRoster struct {
	mu       sync.RWMutex
	classes  map[int64]*database.SchoolClass
	students map[int64]*database.Student
	samples  map[int64][]database.FaceSample
	teachers map[int64]*database.Teacher // keyed by user id

	// Error injection
	GetClassError      error
	ListClassesError   error
	GetStudentError    error
	ListStudentsError  error
	ListSamplesError   error
	TeacherByUserError error
	SaveEncodingError  error
}

// NewMockRoster creates a new mock roster
func NewMockRoster() *MockRoster {
	return &MockRoster{
		classes:  make(map[int64]*database.SchoolClass),
		students: make(map[int64]*database.Student),
		samples:  make(map[int64][]database.FaceSample),
		teachers: make(map[int64]*database.Teacher),
	}
}

// AddClass adds a class to the mock roster
func (m *MockRoster) AddClass(class database.SchoolClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[class.ID] = &class
}

// AddStudent adds or replaces a student
func (m *MockRoster) AddStudent(student database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.ID] = &student
}

// AddSample appends a face sample to a student
func (m *MockRoster) AddSample(sample database.FaceSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[sample.StudentID] = append(m.samples[sample.StudentID], sample)
}

// AddTeacher adds a teacher profile
func (m *MockRoster) AddTeacher(teacher database.Teacher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teachers[teacher.UserID] = &teacher
}

// GetClass retrieves a class by id
func (m *MockRoster) GetClass(ctx context.Context, classID int64) (*database.SchoolClass, error) {
	if m.GetClassError != nil {
		return nil, m.GetClassError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	class, ok := m.classes[classID]
	if !ok {
		return nil, nil
	}
	c := *class
	return &c, nil
}

// ListClasses returns every class ordered by grade and section
func (m *MockRoster) ListClasses(ctx context.Context) ([]database.SchoolClass, error) {
	if m.ListClassesError != nil {
		return nil, m.ListClassesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.SchoolClass, 0, len(m.classes))
	for _, c := range m.classes {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Grade != result[j].Grade {
			return result[i].Grade < result[j].Grade
		}
		return result[i].Section < result[j].Section
	})
	return result, nil
}

// GetStudent retrieves a student by id
func (m *MockRoster) GetStudent(ctx context.Context, studentID int64) (*database.Student, error) {
	if m.GetStudentError != nil {
		return nil, m.GetStudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// ListStudents returns the students enrolled in a class in roster order
func (m *MockRoster) ListStudents(ctx context.Context, classID int64) ([]database.Student, error) {
	if m.ListStudentsError != nil {
		return nil, m.ListStudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.Student
	for _, s := range m.students {
		if s.InClass(classID) {
			result = append(result, *s)
		}
	}
	sortByID(result)
	database.SortRoster(result)
	return result, nil
}

// ListSamples returns a student's face samples in insertion order
func (m *MockRoster) ListSamples(ctx context.Context, studentID int64) ([]database.FaceSample, error) {
	if m.ListSamplesError != nil {
		return nil, m.ListSamplesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.FaceSample(nil), m.samples[studentID]...), nil
}

// TeacherByUser retrieves a teacher profile by user id
func (m *MockRoster) TeacherByUser(ctx context.Context, userID int64) (*database.Teacher, error) {
	if m.TeacherByUserError != nil {
		return nil, m.TeacherByUserError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teachers[userID]
	if !ok {
		return nil, nil
	}
	c := *t
	c.ClassIDs = append([]int64(nil), t.ClassIDs...)
	return &c, nil
}

// StudentsWithPhotos returns students with a photo, optionally only those without an encoding
func (m *MockRoster) StudentsWithPhotos(ctx context.Context, force bool) ([]database.Student, error) {
	if m.ListStudentsError != nil {
		return nil, m.ListStudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.Student
	for _, s := range m.students {
		if s.PhotoPath == "" {
			continue
		}
		if !force && len(s.FaceEncoding) > 0 {
			continue
		}
		result = append(result, *s)
	}
	sortByID(result)
	return result, nil
}

// SaveFaceEncoding stores a student's primary encoding
func (m *MockRoster) SaveFaceEncoding(ctx context.Context, studentID int64, encoding database.Embedding) error {
	if m.SaveEncodingError != nil {
		return m.SaveEncodingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[studentID]; ok {
		s.FaceEncoding = append(database.Embedding(nil), encoding...)
	}
	return nil
}

func sortByID(students []database.Student) {
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
}

// Ensure interface compliance
var (
	_ database.RosterReader   = (*MockRoster)(nil)
	_ database.EncodingWriter = (*MockRoster)(nil)
)
