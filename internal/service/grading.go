package service

import (
	"math"
	"time"

	"github.com/Aar2284/University-Management-Sys/internal/models"
)

// gradeBand maps a relative-percentage floor to its letter/point pair.
// Bands are evaluated top-down; the first floor at or below the value wins,
// so an exact boundary resolves to the higher band.
type gradeBand struct {
	floor  float64
	letter models.GradeLetter
	point  float64
}

var gradeCurve = []gradeBand{
	{90, models.LetterOutstanding, 10.0},
	{80, models.LetterAPlus, 9.0},
	{70, models.LetterA, 8.0},
	{60, models.LetterBPlus, 7.0},
	{50, models.LetterB, 6.0},
	{40, models.LetterC, 5.0},
}

var failingGrade = models.DerivedGrade{Letter: models.LetterF, Point: 0.0}

// ComputeRelativeGrade curves a raw mark against the full set of marks
// recorded for the same subject. The top scorer always lands at 100 percent
// relative; everyone else is scaled against that maximum. An empty cohort or
// a non-positive maximum yields a failing grade rather than a division fault.
//
// The function is pure: identical inputs always produce identical output, and
// the result is never persisted.
func ComputeRelativeGrade(mark float64, cohort []float64) models.DerivedGrade {
	if len(cohort) == 0 {
		return failingGrade
	}
	highest := cohort[0]
	for _, m := range cohort[1:] {
		if m > highest {
			highest = m
		}
	}
	if highest <= 0 {
		return failingGrade
	}

	relative := mark / highest * 100
	for _, band := range gradeCurve {
		if relative >= band.floor {
			return models.DerivedGrade{Letter: band.letter, Point: band.point}
		}
	}
	return failingGrade
}

// AttendanceRate counts Present records against the total and reports the
// truncated percentage. A student with no recorded classes reports 100
// percent, not zero. When dedupeDaily is set, multiple records for the same
// subject and day collapse into one (any Present that day counts as Present).
func AttendanceRate(records []models.Attendance, dedupeDaily bool) models.AttendanceSummary {
	if dedupeDaily {
		records = dedupeByDay(records)
	}

	attended := 0
	for _, record := range records {
		if record.Status == models.AttendanceStatusPresent {
			attended++
		}
	}
	total := len(records)

	percent := 100
	if total > 0 {
		percent = attended * 100 / total
	}
	return models.AttendanceSummary{Attended: attended, Total: total, Percent: percent}
}

// AverageMark returns the rounded arithmetic mean of the given grade records,
// or nil when there are none. The nil sentinel distinguishes "no grades yet"
// from a genuine average of zero.
func AverageMark(records []models.Grade) *int {
	if len(records) == 0 {
		return nil
	}
	sum := 0.0
	for _, record := range records {
		sum += record.Marks
	}
	avg := int(math.Round(sum / float64(len(records))))
	return &avg
}

// SubjectAverages computes the mean mark per subject in the given history,
// preserving the input (assignment) order. Subjects without grades report 0:
// these rollups render as percentages, where a null cell reads worse than an
// explicit zero. Single-student views should prefer AverageMark's nil
// sentinel instead.
func SubjectAverages(history []models.SubjectHistoryEntry, gradesBySubject map[string][]models.Grade) []models.SubjectAverage {
	averages := make([]models.SubjectAverage, 0, len(history))
	for _, entry := range history {
		average := 0
		if avg := AverageMark(gradesBySubject[entry.SubjectID]); avg != nil {
			average = *avg
		}
		averages = append(averages, models.SubjectAverage{
			SubjectName: entry.SubjectName,
			SubjectCode: entry.SubjectCode,
			Average:     average,
		})
	}
	return averages
}

func dedupeByDay(records []models.Attendance) []models.Attendance {
	type dayKey struct {
		subjectID string
		day       string
	}
	best := make(map[dayKey]models.Attendance, len(records))
	order := make([]dayKey, 0, len(records))
	for _, record := range records {
		key := dayKey{record.SubjectID, record.Date.Format(time.DateOnly)}
		existing, seen := best[key]
		if !seen {
			best[key] = record
			order = append(order, key)
			continue
		}
		if existing.Status != models.AttendanceStatusPresent && record.Status == models.AttendanceStatusPresent {
			best[key] = record
		}
	}
	deduped := make([]models.Attendance, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, best[key])
	}
	return deduped
}
