package report

import (
	"sort"
	"time"

	"github.com/sitebrief/sitebrief/pkg/models"
)

// SelectorOptions bound the candidate list size. MinCandidates triggers the
// quality-sorted fill pass when the photo-day pass comes up short.
type SelectorOptions struct {
	MaxCandidates int
	MinCandidates int
}

// SelectCandidates chooses a bounded, ordered subset of the image pool.
//
// Pass 1 walks the photo-day suggestions by priority (1 highest, missing
// last, date as tie-break) and takes every pool image dated on the suggested
// day or one calendar day either side, stopping the instant MaxCandidates is
// reached. Pass 2 runs only if fewer than MinCandidates were taken: the
// remaining pool, sorted described-first then by byte size descending, fills
// up to MinCandidates (never past MaxCandidates).
//
// The returned list is always sorted by normalized date ascending, id as
// tie-break, regardless of which pass contributed each image, so identical
// inputs yield identical output. Images without a determinable date are
// excluded entirely.
func SelectCandidates(pool []models.CandidateImage, suggestions []models.PhotoDaySuggestion, opts SelectorOptions) []models.CandidateImage {
	dated := make([]models.CandidateImage, 0, len(pool))
	for _, img := range pool {
		if !img.TakenOn.IsZero() {
			dated = append(dated, img)
		}
	}
	if len(dated) == 0 || opts.MaxCandidates <= 0 {
		return []models.CandidateImage{}
	}

	ordered := make([]models.PhotoDaySuggestion, len(suggestions))
	copy(ordered, suggestions)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := suggestionRank(ordered[i]), suggestionRank(ordered[j])
		if pi != pj {
			return pi < pj
		}
		return ordered[i].Date.Before(ordered[j].Date)
	})

	selected := make([]models.CandidateImage, 0, opts.MaxCandidates)
	taken := make(map[string]bool)

	// Pass 1: photo-day windows.
pass1:
	for _, sug := range ordered {
		for _, day := range []time.Time{sug.Date, sug.Date.AddDate(0, 0, -1), sug.Date.AddDate(0, 0, 1)} {
			for _, img := range dated {
				if taken[img.ID] || !sameDay(img.TakenOn, day) {
					continue
				}
				selected = append(selected, img)
				taken[img.ID] = true
				if len(selected) >= opts.MaxCandidates {
					break pass1
				}
			}
		}
	}

	// Pass 2: quality-sorted fill.
	if len(selected) < opts.MinCandidates {
		rest := make([]models.CandidateImage, 0, len(dated))
		for _, img := range dated {
			if !taken[img.ID] {
				rest = append(rest, img)
			}
		}
		sort.SliceStable(rest, func(i, j int) bool {
			di, dj := rest[i].Description != "", rest[j].Description != ""
			if di != dj {
				return di
			}
			return rest[i].SizeBytes > rest[j].SizeBytes
		})
		for _, img := range rest {
			if len(selected) >= opts.MinCandidates || len(selected) >= opts.MaxCandidates {
				break
			}
			selected = append(selected, img)
			taken[img.ID] = true
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].TakenOn.Equal(selected[j].TakenOn) {
			return selected[i].TakenOn.Before(selected[j].TakenOn)
		}
		return selected[i].ID < selected[j].ID
	})

	return selected
}

// suggestionRank maps a missing priority after every explicit one.
func suggestionRank(s models.PhotoDaySuggestion) int {
	if s.Priority == nil {
		return int(^uint(0) >> 1)
	}
	return *s.Priority
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
