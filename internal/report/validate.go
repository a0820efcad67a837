package report

import "fmt"

// Thresholds are the minimum input volumes a period must have before the
// expensive AI and rendering stages are attempted.
type Thresholds struct {
	MinNotes  int
	MinPhotos int
}

// DefaultThresholds returns the standard input minimums.
func DefaultThresholds() Thresholds {
	return Thresholds{MinNotes: 4, MinPhotos: 5}
}

// ValidationResult reports whether the fetched input volumes clear the
// thresholds. Message is set only when Valid is false, and only for the
// first violated threshold: notes are checked before photos.
type ValidationResult struct {
	Valid       bool
	NotesCount  int
	PhotosCount int
	Message     string
}

// Validate is a pure predicate over the fetched input volumes.
func Validate(notesCount, photosCount int, t Thresholds) ValidationResult {
	res := ValidationResult{
		NotesCount:  notesCount,
		PhotosCount: photosCount,
	}

	if notesCount < t.MinNotes {
		res.Message = fmt.Sprintf("at least %d daily log notes are required for a report; the period has %d",
			t.MinNotes, notesCount)
		return res
	}
	if photosCount < t.MinPhotos {
		res.Message = fmt.Sprintf("at least %d site photos are required for a report; the period has %d",
			t.MinPhotos, photosCount)
		return res
	}

	res.Valid = true
	return res
}
