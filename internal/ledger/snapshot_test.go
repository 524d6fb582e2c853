package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func TestSnapshot_PresentAndAbsent(t *testing.T) {
	l, _, _ := setup(t, ledger.WithPhotoURL(func(p string) string { return "/media/" + p }))
	ctx := context.Background()
	l.RecordMatches(ctx, []ledger.Match{{StudentID: studentA, Confidence: 0.8}}, classC, day)

	snap, err := l.Snapshot(ctx, classC, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Class.Label() != "Class 3-B" {
		t.Errorf("unexpected class label %q", snap.Class.Label())
	}
	if len(snap.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(snap.Rows))
	}

	a, b := snap.Rows[0], snap.Rows[1]
	if a.StudentID != studentA || a.Status != database.StatusPresent || a.Confidence == nil || *a.Confidence != 0.8 {
		t.Errorf("expected A present/0.8, got %+v", a)
	}
	if a.Name != "Alice Adams" || a.PhotoURL == nil || *a.PhotoURL != "/media/students/photos/a.jpg" {
		t.Errorf("unexpected row details %+v", a)
	}
	if b.StudentID != studentB || b.Status != database.StatusAbsent || b.Confidence != nil || b.PhotoURL != nil {
		t.Errorf("expected B absent without confidence, got %+v", b)
	}
}

func TestSnapshot_OtherDaysAreIgnored(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()
	l.RecordMatches(ctx, []ledger.Match{{StudentID: studentA, Confidence: 0.8}}, classC, day.AddDate(0, 0, -1))

	snap, _ := l.Snapshot(ctx, classC, day)
	for _, r := range snap.Rows {
		if r.Status != database.StatusAbsent {
			t.Errorf("expected everyone absent, got %+v", r)
		}
	}
}

func TestSnapshot_NoAcademicYearListsEveryoneAbsent(t *testing.T) {
	l, roster, _ := setup(t)
	roster.AddClass(database.SchoolClass{ID: 3, Grade: 1, Section: "c"})
	roster.AddStudent(database.Student{ID: 40, ClassID: int64Ptr(3)})

	snap, err := l.Snapshot(context.Background(), 3, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Rows) != 1 || snap.Rows[0].Status != database.StatusAbsent {
		t.Errorf("expected one absent row, got %+v", snap.Rows)
	}
}

func TestSnapshot_ClassNotFound(t *testing.T) {
	l, _, _ := setup(t)
	if _, err := l.Snapshot(context.Background(), 404, day); !errors.Is(err, ledger.ErrClassNotFound) {
		t.Errorf("expected ErrClassNotFound, got %v", err)
	}
}

func TestBreakdown(t *testing.T) {
	rows := []ledger.SnapshotRow{
		{Status: database.StatusPresent},
		{Status: database.StatusPresent},
		{Status: database.StatusAbsent},
		{Status: database.StatusLate},
		{Status: database.StatusExcused},
	}

	got := ledger.Breakdown(rows)
	want := ledger.StatusBreakdown{Present: 2, Absent: 1, Late: 1, Excused: 1, Total: 5}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestStudentHistory(t *testing.T) {
	l, _, store := setup(t)
	store.SeedRecord(database.AttendanceRecord{StudentID: studentA, ClassID: classC, AcademicYearID: yearID, Date: day.AddDate(0, 0, -2), Status: database.StatusLate, Confidence: 0.7})
	store.SeedRecord(database.AttendanceRecord{StudentID: studentA, ClassID: classC, AcademicYearID: yearID, Date: day, Status: database.StatusPresent, Confidence: 0.9})
	store.SeedRecord(database.AttendanceRecord{StudentID: studentA, ClassID: 2, AcademicYearID: yearID, Date: day.AddDate(0, 0, -1), Status: database.StatusPresent, Confidence: 0.6})
	ctx := context.Background()

	all, err := l.StudentHistory(ctx, studentA, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].Date != "2024-01-10" || all[2].Date != "2024-01-08" {
		t.Fatalf("expected 3 entries newest first, got %+v", all)
	}
	if all[0].Class != "Class 3-B" || all[0].AcademicYear != "2023-2024" {
		t.Errorf("expected class details, got %+v", all[0])
	}

	restricted, _ := l.StudentHistory(ctx, studentA, []int64{classC})
	if len(restricted) != 2 {
		t.Errorf("expected 2 entries in class C, got %d", len(restricted))
	}

	none, _ := l.StudentHistory(ctx, studentA, []int64{})
	if len(none) != 0 {
		t.Errorf("expected no entries for an empty class list, got %d", len(none))
	}
}
