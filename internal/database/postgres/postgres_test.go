//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

// seed creates year 1, class 1 (3-B) with students 10 ("2") and 11 ("10"),
// class 2 with student 12, and teacher 1 (user 20) assigned to class 1.
func seed(t *testing.T, pool *Pool) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO academic_years (id, year, is_active) VALUES (1, '2024-2025', TRUE)`,
		`INSERT INTO school_classes (id, grade, section, academic_year_id) VALUES (1, 3, 'b', 1), (2, 4, 'a', 1), (3, 1, 'x', NULL)`,
		`INSERT INTO users (id, username, first_name, last_name, role) VALUES
			(10, 'alice', 'Alice', 'Adams', 'student'),
			(11, 'bob', 'Bob', 'Brown', 'student'),
			(12, 'cleo', 'Cleo', 'Clark', 'student'),
			(20, 'tina', 'Tina', 'Teacher', 'teacher'),
			(21, 'idle', 'Ida', 'Idle', 'teacher')`,
		`INSERT INTO students (user_id, roll_number, school_class_id, photo, face_encoding) VALUES
			(10, '2', 1, 'students/alice.jpg', '[0.1,0.2,0.3]'),
			(11, '10', 1, 'students/bob.jpg', NULL),
			(12, '1', 2, '', NULL)`,
		`INSERT INTO face_samples (student_id, image, created_at) VALUES
			(11, 'samples/b2.jpg', NOW()),
			(11, 'samples/b1.jpg', NOW() - INTERVAL '1 day')`,
		`INSERT INTO teachers (id, user_id) VALUES (1, 20), (2, 21)`,
		`INSERT INTO teacher_classes (teacher_id, school_class_id) VALUES (1, 1)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	versions, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("expected 2 applied migrations, got %v", versions)
	}
}

func TestRosterRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()
	seed(t, pool)

	ctx := context.Background()
	repo := NewRosterRepository(pool)

	t.Run("GetClass", func(t *testing.T) {
		c, err := repo.GetClass(ctx, 1)
		if err != nil {
			t.Fatalf("get class: %v", err)
		}
		if c == nil || c.AcademicYear != "2024-2025" || c.AcademicYearID == nil || c.Label() != "Class 3-B" {
			t.Errorf("unexpected class: %+v", c)
		}
		c, err = repo.GetClass(ctx, 3)
		if err != nil || c == nil || c.AcademicYearID != nil {
			t.Errorf("expected class 3 without year, got %+v, %v", c, err)
		}
		c, err = repo.GetClass(ctx, 99)
		if err != nil || c != nil {
			t.Errorf("expected nil for missing class, got %+v, %v", c, err)
		}
	})

	t.Run("ListStudentsNaturalOrder", func(t *testing.T) {
		students, err := repo.ListStudents(ctx, 1)
		if err != nil {
			t.Fatalf("list students: %v", err)
		}
		if len(students) != 2 || students[0].ID != 10 || students[1].ID != 11 {
			t.Fatalf("expected roll order 2, 10, got %+v", students)
		}
		if len(students[0].FaceEncoding) != 3 || students[1].FaceEncoding != nil {
			t.Errorf("unexpected encodings: %v / %v", students[0].FaceEncoding, students[1].FaceEncoding)
		}
	})

	t.Run("ListSamplesCreationOrder", func(t *testing.T) {
		samples, err := repo.ListSamples(ctx, 11)
		if err != nil {
			t.Fatalf("list samples: %v", err)
		}
		if len(samples) != 2 || samples[0].ImagePath != "samples/b1.jpg" {
			t.Errorf("expected b1 first, got %+v", samples)
		}
	})

	t.Run("TeacherByUser", func(t *testing.T) {
		teacher, err := repo.TeacherByUser(ctx, 20)
		if err != nil {
			t.Fatalf("teacher: %v", err)
		}
		if teacher == nil || teacher.ID != 1 || len(teacher.ClassIDs) != 1 || teacher.ClassIDs[0] != 1 {
			t.Errorf("unexpected teacher: %+v", teacher)
		}
		idle, err := repo.TeacherByUser(ctx, 21)
		if err != nil || idle == nil || len(idle.ClassIDs) != 0 {
			t.Errorf("expected teacher without classes, got %+v, %v", idle, err)
		}
		none, err := repo.TeacherByUser(ctx, 10)
		if err != nil || none != nil {
			t.Errorf("expected nil for non-teacher, got %+v, %v", none, err)
		}
	})

	t.Run("EncodingBackfill", func(t *testing.T) {
		missing, err := repo.StudentsWithPhotos(ctx, false)
		if err != nil {
			t.Fatalf("students with photos: %v", err)
		}
		if len(missing) != 1 || missing[0].ID != 11 {
			t.Fatalf("expected only Bob, got %+v", missing)
		}
		if err := repo.SaveFaceEncoding(ctx, 11, database.Embedding{1, 2, 3}); err != nil {
			t.Fatalf("save encoding: %v", err)
		}
		bob, _ := repo.GetStudent(ctx, 11)
		if len(bob.FaceEncoding) != 3 || bob.FaceEncoding[2] != 3 {
			t.Errorf("expected stored encoding, got %v", bob.FaceEncoding)
		}
		all, _ := repo.StudentsWithPhotos(ctx, true)
		if len(all) != 2 {
			t.Errorf("expected 2 students with photos, got %d", len(all))
		}
		if err := repo.SaveFaceEncoding(ctx, 404, database.Embedding{1}); err == nil {
			t.Error("expected error for unknown student")
		}
	})
}

func TestLedgerRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()
	seed(t, pool)

	ctx := context.Background()
	repo := NewLedgerRepository(pool)
	day := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	key := database.RecordKey{StudentID: 10, ClassID: 1, Date: day, AcademicYearID: 1}

	t.Run("UpsertAndRead", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx database.LedgerTx) error {
			if err := tx.LockKey(ctx, key); err != nil {
				return err
			}
			if err := tx.PutRecord(ctx, key, database.StatusPresent, 0.7, time.Now()); err != nil {
				return err
			}
			return tx.PutRecord(ctx, key, database.StatusExcused, 1, time.Now())
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}

		records, err := repo.RecordsForClass(ctx, 1, day, 1)
		if err != nil {
			t.Fatalf("records: %v", err)
		}
		if len(records) != 1 || records[0].Status != database.StatusExcused || !records[0].Date.Equal(day) {
			t.Errorf("expected one excused record, got %+v", records)
		}
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		other := database.RecordKey{StudentID: 11, ClassID: 1, Date: day, AcademicYearID: 1}
		err := repo.WithinTx(ctx, func(tx database.LedgerTx) error {
			if err := tx.PutRecord(ctx, other, database.StatusPresent, 0.9, time.Now()); err != nil {
				return err
			}
			return fmt.Errorf("boom")
		})
		if err == nil {
			t.Fatal("expected error")
		}
		err = repo.WithinTx(ctx, func(tx database.LedgerTx) error {
			rec, err := tx.GetRecord(ctx, other)
			if err != nil {
				return err
			}
			if rec != nil {
				t.Errorf("expected rolled back record to be absent, got %+v", rec)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
	})

	t.Run("ExcuseLog", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx database.LedgerTx) error {
			if err := tx.LockTeacherDay(ctx, 1, day); err != nil {
				return err
			}
			return tx.AppendExcuse(ctx, database.ExcuseLogEntry{
				ID: uuid.New(), TeacherID: 1, StudentID: 10, ClassID: 1, Date: day, CreatedAt: time.Now(),
			})
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		var n int
		err = repo.WithinTx(ctx, func(tx database.LedgerTx) error {
			var err error
			n, err = tx.CountExcuses(ctx, 1, day)
			return err
		})
		if err != nil || n != 1 {
			t.Errorf("expected 1 excuse, got %d, %v", n, err)
		}

		if _, err := pool.Exec(ctx, "UPDATE manual_excuse_logs SET teacher_id = 2"); err == nil {
			t.Error("expected the excuse log to reject updates")
		}
	})

	t.Run("ConcurrentLockedWriters", func(t *testing.T) {
		concurrent := database.RecordKey{StudentID: 11, ClassID: 1, Date: day.AddDate(0, 0, 1), AcademicYearID: 1}
		var wg sync.WaitGroup
		created := make(chan bool, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.WithinTx(ctx, func(tx database.LedgerTx) error {
					if err := tx.LockKey(ctx, concurrent); err != nil {
						return err
					}
					rec, err := tx.GetRecord(ctx, concurrent)
					if err != nil || rec != nil {
						return err
					}
					created <- true
					return tx.PutRecord(ctx, concurrent, database.StatusPresent, 0.8, time.Now())
				})
				if err != nil {
					t.Errorf("tx: %v", err)
				}
			}()
		}
		wg.Wait()
		close(created)
		if len(created) != 1 {
			t.Errorf("expected exactly one creator, got %d", len(created))
		}
	})

	t.Run("StudentHistory", func(t *testing.T) {
		history, err := repo.StudentHistory(ctx, 10, nil)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 1 || history[0].Grade != 3 || history[0].AcademicYear != "2024-2025" {
			t.Errorf("unexpected history: %+v", history)
		}
		restricted, err := repo.StudentHistory(ctx, 10, []int64{2})
		if err != nil || len(restricted) != 0 {
			t.Errorf("expected no records for class 2, got %+v, %v", restricted, err)
		}
		none, err := repo.StudentHistory(ctx, 10, []int64{})
		if err != nil || len(none) != 0 {
			t.Errorf("expected empty restriction to match nothing, got %+v, %v", none, err)
		}
	})
}
