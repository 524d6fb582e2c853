package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// RosterRepository reads classes, students and teachers and maintains
// students' primary face encodings.
type RosterRepository struct {
	pool *Pool
}

// NewRosterRepository creates a new PostgreSQL roster repository.
func NewRosterRepository(pool *Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

func classSelect() sq.SelectBuilder {
	return psql.Select("c.id", "c.grade", "c.section", "c.academic_year_id", "COALESCE(y.year, '')").
		From("school_classes c").
		LeftJoin("academic_years y ON y.id = c.academic_year_id")
}

func studentSelect() sq.SelectBuilder {
	return psql.Select(
		"s.user_id", "u.username", "u.first_name", "u.last_name",
		"s.roll_number", "s.school_class_id", "s.photo", "s.face_encoding",
	).
		From("students s").
		Join("users u ON u.id = s.user_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (database.SchoolClass, error) {
	var c database.SchoolClass
	var yearID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Grade, &c.Section, &yearID, &c.AcademicYear); err != nil {
		return c, err
	}
	if yearID.Valid {
		c.AcademicYearID = &yearID.Int64
	}
	return c, nil
}

func scanStudent(row rowScanner) (database.Student, error) {
	var s database.Student
	var classID sql.NullInt64
	var vec *pgvector.Vector
	if err := row.Scan(&s.ID, &s.Username, &s.FirstName, &s.LastName, &s.RollNumber, &classID, &s.PhotoPath, &vec); err != nil {
		return s, err
	}
	if classID.Valid {
		s.ClassID = &classID.Int64
	}
	if vec != nil {
		s.FaceEncoding = fromVector(*vec)
	}
	return s, nil
}

// GetClass retrieves a class with its academic year label.
func (r *RosterRepository) GetClass(ctx context.Context, classID int64) (*database.SchoolClass, error) {
	query, args, err := classSelect().Where(sq.Eq{"c.id": classID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build class query: %w", err)
	}
	c, err := scanClass(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &c, nil
}

// ListClasses returns every class ordered by grade and section.
func (r *RosterRepository) ListClasses(ctx context.Context) ([]database.SchoolClass, error) {
	rows, err := r.pool.QueryBuilder(ctx, classSelect().OrderBy("c.grade", "c.section", "c.id"))
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var classes []database.SchoolClass
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

// GetStudent retrieves a student by user id.
func (r *RosterRepository) GetStudent(ctx context.Context, studentID int64) (*database.Student, error) {
	query, args, err := studentSelect().Where(sq.Eq{"s.user_id": studentID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build student query: %w", err)
	}
	s, err := scanStudent(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}

func (r *RosterRepository) queryStudents(ctx context.Context, b sq.SelectBuilder) ([]database.Student, error) {
	rows, err := r.pool.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// ListStudents returns the students enrolled in a class in roster order.
// Roll numbers compare naturally ("2" before "10"), which SQL ordering can't do.
func (r *RosterRepository) ListStudents(ctx context.Context, classID int64) ([]database.Student, error) {
	students, err := r.queryStudents(ctx, studentSelect().Where(sq.Eq{"s.school_class_id": classID}).OrderBy("s.user_id"))
	if err != nil {
		return nil, err
	}
	database.SortRoster(students)
	return students, nil
}

// ListSamples returns a student's face samples in creation order.
func (r *RosterRepository) ListSamples(ctx context.Context, studentID int64) ([]database.FaceSample, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, student_id, image, created_at
		FROM face_samples
		WHERE student_id = $1
		ORDER BY created_at, id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query face samples: %w", err)
	}
	defer rows.Close()

	var samples []database.FaceSample
	for rows.Next() {
		var fs database.FaceSample
		if err := rows.Scan(&fs.ID, &fs.StudentID, &fs.ImagePath, &fs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face sample: %w", err)
		}
		samples = append(samples, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face samples: %w", err)
	}
	return samples, nil
}

// TeacherByUser retrieves the teacher profile owned by a user with its class ids.
func (r *RosterRepository) TeacherByUser(ctx context.Context, userID int64) (*database.Teacher, error) {
	var t database.Teacher
	var classIDs pq.Int64Array
	err := r.pool.QueryRow(ctx, `
		SELECT t.id, t.user_id,
		       COALESCE(array_agg(tc.school_class_id ORDER BY tc.school_class_id)
		                FILTER (WHERE tc.school_class_id IS NOT NULL), '{}')
		FROM teachers t
		LEFT JOIN teacher_classes tc ON tc.teacher_id = t.id
		WHERE t.user_id = $1
		GROUP BY t.id, t.user_id
	`, userID).Scan(&t.ID, &t.UserID, &classIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	t.ClassIDs = []int64(classIDs)
	return &t, nil
}

// StudentsWithPhotos returns students that have a photo, restricted to those
// without an encoding unless force is set.
func (r *RosterRepository) StudentsWithPhotos(ctx context.Context, force bool) ([]database.Student, error) {
	b := studentSelect().Where(sq.NotEq{"s.photo": ""})
	if !force {
		b = b.Where(sq.Eq{"s.face_encoding": nil})
	}
	return r.queryStudents(ctx, b.OrderBy("s.user_id"))
}

// SaveFaceEncoding stores a student's primary encoding.
func (r *RosterRepository) SaveFaceEncoding(ctx context.Context, studentID int64, encoding database.Embedding) error {
	res, err := r.pool.Exec(ctx, "UPDATE students SET face_encoding = $1 WHERE user_id = $2", toVector(encoding), studentID)
	if err != nil {
		return fmt.Errorf("save face encoding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save face encoding: student %d not found", studentID)
	}
	return nil
}

// toVector converts an embedding to the pgvector column type
func toVector(emb database.Embedding) pgvector.Vector {
	v := make([]float32, len(emb))
	for i, x := range emb {
		v[i] = float32(x)
	}
	return pgvector.NewVector(v)
}

func fromVector(vec pgvector.Vector) database.Embedding {
	src := vec.Slice()
	emb := make(database.Embedding, len(src))
	for i, x := range src {
		emb[i] = float64(x)
	}
	return emb
}

var (
	_ database.RosterReader   = (*RosterRepository)(nil)
	_ database.EncodingWriter = (*RosterRepository)(nil)
)
