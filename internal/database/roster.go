package database

import (
	"sort"

	"github.com/facette/natsort"
)

// SortRoster orders students the way class lists are printed: roll number in
// natural order ("2" before "10"), then first name, then last name.
func SortRoster(students []Student) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := &students[i], &students[j]
		if a.RollNumber != b.RollNumber {
			return natsort.Compare(a.RollNumber, b.RollNumber)
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.LastName < b.LastName
	})
}
