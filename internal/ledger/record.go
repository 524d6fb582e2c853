package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Match is one recognized student with the match confidence
type Match struct {
	StudentID  int64
	Confidence float64
}

// RecordMatches marks every matched, enrolled student present for date.
// Existing present, late and excused records are left untouched, so
// repeating a call changes nothing. All writes happen in one transaction.
// It returns how many records transitioned into present.
func (l *Ledger) RecordMatches(ctx context.Context, matches []Match, classID int64, date time.Time) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	_, yearID, err := l.resolveClass(ctx, classID)
	if err != nil {
		return 0, err
	}

	students, err := l.roster.ListStudents(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("list students of class %d: %w", classID, err)
	}
	enrolled := make(map[int64]bool, len(students))
	for _, s := range students {
		enrolled[s.ID] = true
	}

	// first detection of a student wins, then lock keys in a stable order
	seen := make(map[int64]bool, len(matches))
	batch := make([]Match, 0, len(matches))
	for _, m := range matches {
		if !enrolled[m.StudentID] {
			l.logger.Debug("ignoring match for student not in class", "student_id", m.StudentID, "class_id", classID)
			continue
		}
		if seen[m.StudentID] {
			continue
		}
		seen[m.StudentID] = true
		batch = append(batch, m)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].StudentID < batch[j].StudentID })

	date = database.DateOf(date)
	now := l.now()

	var marked int
	err = l.store.WithinTx(ctx, func(tx database.LedgerTx) error {
		marked = 0
		for _, m := range batch {
			key := database.RecordKey{StudentID: m.StudentID, ClassID: classID, Date: date, AcademicYearID: yearID}
			if err := tx.LockKey(ctx, key); err != nil {
				return err
			}
			rec, err := tx.GetRecord(ctx, key)
			if err != nil {
				return err
			}
			var existing *database.Status
			if rec != nil {
				existing = &rec.Status
			}
			if !canMarkPresent(existing) {
				continue
			}
			if err := tx.PutRecord(ctx, key, database.StatusPresent, clampConfidence(m.Confidence), now); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record matches for class %d: %w", classID, err)
	}

	if marked > 0 {
		l.logger.Info("attendance marked", "class_id", classID, "date", database.FormatDate(date), "newly_marked", marked)
	}
	return marked, nil
}
