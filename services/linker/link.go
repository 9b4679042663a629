package linker

import (
	"schoolsync-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the similarity above which a candidate is taken
// without operator review.
const DefaultThreshold = 0.85

type Status int

const (
	StatusNeedsReview Status = iota
	StatusAutoConfirmed
)

func (s Status) String() string {
	switch s {
	case StatusAutoConfirmed:
		return "auto-confirmed"
	case StatusNeedsReview:
		return "needs-review"
	}
	return "unknown"
}

type Candidate struct {
	ID   int64
	Name string
}

type Result struct {
	Candidate Candidate
	Score     float64
	Status    Status
	// Matched is false when the candidate list was empty.
	Matched bool
}

// Match scores externalName against every candidate over canonical
// forms and returns the best one. Ties keep the first maximal
// candidate in input order.
func Match(externalName string, candidates []Candidate, threshold float64) Result {
	key := textutil.Canonicalize(externalName)

	var best Result
	for _, c := range candidates {
		candidateKey := textutil.Canonicalize(c.Name)

		var score float64
		if key == candidateKey {
			score = 1
		} else {
			score = matchr.JaroWinkler(key, candidateKey, false)
		}
		if !best.Matched || score > best.Score {
			best = Result{Candidate: c, Score: score, Matched: true}
		}
	}

	if best.Matched && best.Score >= threshold {
		best.Status = StatusAutoConfirmed
	}
	return best
}

type ExternalStudent struct {
	ID   string
	Name string
}

type ReconciliationCandidate struct {
	ExternalID   string
	ExternalName string
	// zero when no local partner was left for this external
	LocalID   int64
	LocalName string
	Score     float64
	Status    Status
}

// reconcile pairs external students with local candidates. Exact
// canonical matches are taken greedily first so a perfect pair never
// loses its partner to an earlier fuzzy match, then each remaining
// external takes the most similar local still unclaimed.
func reconcile(external []ExternalStudent, local []Candidate, threshold float64) []ReconciliationCandidate {
	localKeys := make([]string, len(local))
	for i, c := range local {
		localKeys[i] = textutil.Canonicalize(c.Name)
	}

	var result []ReconciliationCandidate
	matchedExternal := make(map[string]struct{})
	matchedLocal := make(map[int64]struct{})

	for _, ext := range external {
		key := textutil.Canonicalize(ext.Name)
		for i, c := range local {
			_, isMatchedLocal := matchedLocal[c.ID]
			if isMatchedLocal {
				continue
			}
			if key == localKeys[i] {
				result = append(result, ReconciliationCandidate{
					ExternalID:   ext.ID,
					ExternalName: ext.Name,
					LocalID:      c.ID,
					LocalName:    c.Name,
					Score:        1,
					Status:       StatusAutoConfirmed,
				})
				matchedExternal[ext.ID] = struct{}{}
				matchedLocal[c.ID] = struct{}{}
				break
			}
		}
	}

	for _, ext := range external {
		_, isMatchedExternal := matchedExternal[ext.ID]
		if isMatchedExternal {
			continue
		}

		key := textutil.Canonicalize(ext.Name)

		var mostSimilarity float64
		var mostSimilar Candidate
		for i, c := range local {
			_, isMatchedLocal := matchedLocal[c.ID]
			if isMatchedLocal {
				continue
			}

			similarity := matchr.JaroWinkler(key, localKeys[i], false)
			if similarity > mostSimilarity {
				mostSimilarity = similarity
				mostSimilar = c
			}
		}

		if mostSimilarity == 0 {
			// no unclaimed local at all, still reported so the
			// operator learns the external exists
			result = append(result, ReconciliationCandidate{
				ExternalID:   ext.ID,
				ExternalName: ext.Name,
				Status:       StatusNeedsReview,
			})
			continue
		}

		status := StatusNeedsReview
		if mostSimilarity >= threshold {
			status = StatusAutoConfirmed
		}
		result = append(result, ReconciliationCandidate{
			ExternalID:   ext.ID,
			ExternalName: ext.Name,
			LocalID:      mostSimilar.ID,
			LocalName:    mostSimilar.Name,
			Score:        mostSimilarity,
			Status:       status,
		})
		matchedExternal[ext.ID] = struct{}{}
		matchedLocal[mostSimilar.ID] = struct{}{}
	}

	return result
}
