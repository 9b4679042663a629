package linker

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestMatchExact(t *testing.T) {
	result := Match("MATEMÁTICA APLICADA", []Candidate{
		{ID: 1, Name: "História Geral"},
		{ID: 2, Name: "Matematica Aplicada"},
	}, DefaultThreshold)

	require.True(t, result.Matched)
	require.Equal(t, int64(2), result.Candidate.ID)
	require.Equal(t, float64(1), result.Score)
	require.Equal(t, StatusAutoConfirmed, result.Status)
}

func TestMatchTieKeepsFirst(t *testing.T) {
	result := Match("João Silva", []Candidate{
		{ID: 1, Name: "JOAO SILVA"},
		{ID: 2, Name: "Joao Silva"},
	}, DefaultThreshold)

	require.True(t, result.Matched)
	require.Equal(t, int64(1), result.Candidate.ID)
	require.Equal(t, float64(1), result.Score)
}

func TestMatchBelowThreshold(t *testing.T) {
	result := Match("Maria Oliveira", []Candidate{
		{ID: 1, Name: "Pedro Cardoso"},
	}, DefaultThreshold)

	require.True(t, result.Matched)
	require.Less(t, result.Score, DefaultThreshold)
	require.Equal(t, StatusNeedsReview, result.Status)
}

func TestMatchNoCandidates(t *testing.T) {
	result := Match("Maria Oliveira", nil, DefaultThreshold)
	require.False(t, result.Matched)
}

func TestReconcile(t *testing.T) {
	testCases := []struct {
		name      string
		external  []ExternalStudent
		local     []Candidate
		threshold float64
		// Score is only asserted when non-zero
		expected []ReconciliationCandidate
	}{
		{
			name: "exact pairs claimed first",
			external: []ExternalStudent{
				{ID: "e1", Name: "Ana Beatriz Souza"},
				{ID: "e2", Name: "ANA BEATRIZ SOUZA E SILVA"},
			},
			local: []Candidate{
				{ID: 1, Name: "Ana Beatriz Souza e Silva"},
				{ID: 2, Name: "Ana Beatriz Souza"},
			},
			threshold: DefaultThreshold,
			expected: []ReconciliationCandidate{
				{
					ExternalID:   "e1",
					ExternalName: "Ana Beatriz Souza",
					LocalID:      2,
					LocalName:    "Ana Beatriz Souza",
					Score:        1,
					Status:       StatusAutoConfirmed,
				},
				{
					ExternalID:   "e2",
					ExternalName: "ANA BEATRIZ SOUZA E SILVA",
					LocalID:      1,
					LocalName:    "Ana Beatriz Souza e Silva",
					Score:        1,
					Status:       StatusAutoConfirmed,
				},
			},
		},
		{
			name: "near match needs review",
			external: []ExternalStudent{
				{ID: "e1", Name: "Carlos Eduardo M. Santos"},
			},
			local: []Candidate{
				{ID: 1, Name: "Carlos Eduardo Mendes Santos"},
			},
			threshold: 0.99,
			expected: []ReconciliationCandidate{
				{
					ExternalID:   "e1",
					ExternalName: "Carlos Eduardo M. Santos",
					LocalID:      1,
					LocalName:    "Carlos Eduardo Mendes Santos",
					Status:       StatusNeedsReview,
				},
			},
		},
		{
			name: "homonym left over after its local is claimed",
			external: []ExternalStudent{
				{ID: "e1", Name: "Ana Beatriz Souza"},
				{ID: "e2", Name: "Ana Beatriz Souza"},
			},
			local: []Candidate{
				{ID: 1, Name: "Ana Beatriz Souza"},
			},
			threshold: DefaultThreshold,
			expected: []ReconciliationCandidate{
				{
					ExternalID:   "e1",
					ExternalName: "Ana Beatriz Souza",
					LocalID:      1,
					LocalName:    "Ana Beatriz Souza",
					Score:        1,
					Status:       StatusAutoConfirmed,
				},
				{
					ExternalID:   "e2",
					ExternalName: "Ana Beatriz Souza",
					Status:       StatusNeedsReview,
				},
			},
		},
		{
			name: "no locals left still reported",
			external: []ExternalStudent{
				{ID: "e1", Name: "Ana"},
			},
			local:     nil,
			threshold: DefaultThreshold,
			expected: []ReconciliationCandidate{
				{
					ExternalID:   "e1",
					ExternalName: "Ana",
					Status:       StatusNeedsReview,
				},
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := reconcile(test.external, test.local, test.threshold)
			diff := cmp.Diff(
				test.expected,
				got,
				cmpopts.IgnoreFields(ReconciliationCandidate{}, "Score"),
			)
			if diff != "" {
				t.Fatal(diff)
			}
			for i, want := range test.expected {
				if want.Score != 0 {
					require.Equal(t, want.Score, got[i].Score)
				}
			}
		})
	}
}
