package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var (
	// ErrForbidden is returned when the principal's role may not use an operation
	ErrForbidden = errors.New("forbidden")
	// ErrForbiddenClass is returned when the principal may not access a class
	ErrForbiddenClass = errors.New("class not accessible")
	// ErrTeacherProfileMissing is returned for teacher users without a teacher profile
	ErrTeacherProfileMissing = errors.New("teacher profile missing")
	// ErrNoClassesAssigned is returned for teachers without any class
	ErrNoClassesAssigned = errors.New("no classes assigned")
)

// Principal is the authenticated caller
type Principal struct {
	UserID int64
	Role   database.Role
}

// IsStaff reports whether the principal is a teacher or an admin
func (p Principal) IsStaff() bool {
	return p.Role == database.RoleAdmin || p.Role == database.RoleTeacher
}

// Access answers per-role class access questions from the roster
type Access struct {
	roster database.RosterReader
}

// NewAccess creates an access checker
func NewAccess(roster database.RosterReader) *Access {
	return &Access{roster: roster}
}

// CanAccessClass reports whether p may see classID. Admins see every class,
// teachers their assigned classes and students their own class.
func (a *Access) CanAccessClass(ctx context.Context, p Principal, classID int64) (bool, error) {
	switch p.Role {
	case database.RoleAdmin:
		return true, nil
	case database.RoleTeacher:
		teacher, err := a.roster.TeacherByUser(ctx, p.UserID)
		if err != nil {
			return false, fmt.Errorf("get teacher of user %d: %w", p.UserID, err)
		}
		return teacher != nil && teacher.Teaches(classID), nil
	case database.RoleStudent:
		student, err := a.roster.GetStudent(ctx, p.UserID)
		if err != nil {
			return false, fmt.Errorf("get student %d: %w", p.UserID, err)
		}
		return student != nil && student.InClass(classID), nil
	default:
		return false, nil
	}
}

// AllowedClassIDs returns the classes p may see. A nil slice means every
// class (admins), an empty one means none.
func (a *Access) AllowedClassIDs(ctx context.Context, p Principal) ([]int64, error) {
	switch p.Role {
	case database.RoleAdmin:
		return nil, nil
	case database.RoleTeacher:
		teacher, err := a.roster.TeacherByUser(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("get teacher of user %d: %w", p.UserID, err)
		}
		// Clone keeps nil, which would read as unrestricted
		if teacher == nil || len(teacher.ClassIDs) == 0 {
			return []int64{}, nil
		}
		return slices.Clone(teacher.ClassIDs), nil
	case database.RoleStudent:
		student, err := a.roster.GetStudent(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("get student %d: %w", p.UserID, err)
		}
		if student == nil || student.ClassID == nil {
			return []int64{}, nil
		}
		return []int64{*student.ClassID}, nil
	default:
		return []int64{}, nil
	}
}

// ActingTeacher returns the teacher profile id whose quota an excuse by p
// is charged to: nil for admins, ErrTeacherProfileMissing for teacher users
// without a profile and ErrForbidden for everyone else.
func (a *Access) ActingTeacher(ctx context.Context, p Principal) (*int64, error) {
	switch p.Role {
	case database.RoleAdmin:
		return nil, nil
	case database.RoleTeacher:
		teacher, err := a.roster.TeacherByUser(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("get teacher of user %d: %w", p.UserID, err)
		}
		if teacher == nil {
			return nil, ErrTeacherProfileMissing
		}
		return &teacher.ID, nil
	default:
		return nil, ErrForbidden
	}
}
