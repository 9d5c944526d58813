package retriever

import (
	"context"
)

// QueryCase bundles a query text with the filenames that should answer it.
type QueryCase struct {
	Query string   `yaml:"query" json:"query"`
	Truth []string `yaml:"truth" json:"truth"`
}

// Metrics aggregates leaderboard numbers.
type Metrics struct {
	Cases int     `json:"cases"`
	KAt5  float64 `json:"hitAt5"`
	KAt10 float64 `json:"hitAt10"`
	MRR   float64 `json:"mrr"`
}

// Evaluate runs a searcher across cases and computes hit@5, hit@10, and MRR
// over result filenames. Several chunks of one file count as one hit.
func Evaluate(ctx context.Context, s Searcher, cases []QueryCase) (Metrics, error) {
	var hits5, hits10, sumRR float64
	n := float64(len(cases))
	for _, c := range cases {
		res, err := s.Search(ctx, c.Query, 10)
		if err != nil {
			return Metrics{}, err
		}
		files := dedupFiles(res)
		truth := toSet(c.Truth)
		if hitAtK(files, truth, 5) {
			hits5 += 1
		}
		if hitAtK(files, truth, 10) {
			hits10 += 1
		}
		sumRR += rr(files, truth)
	}
	if n == 0 {
		return Metrics{}, nil
	}
	return Metrics{Cases: len(cases), KAt5: hits5 / n, KAt10: hits10 / n, MRR: sumRR / n}, nil
}

func dedupFiles(res []Result) []string {
	seen := make(map[string]struct{}, len(res))
	out := make([]string, 0, len(res))
	for _, r := range res {
		if _, ok := seen[r.Filename]; ok {
			continue
		}
		seen[r.Filename] = struct{}{}
		out = append(out, r.Filename)
	}
	return out
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

func hitAtK(files []string, truth map[string]struct{}, k int) bool {
	if k > len(files) {
		k = len(files)
	}
	for i := 0; i < k; i++ {
		if _, ok := truth[files[i]]; ok {
			return true
		}
	}
	return false
}

func rr(files []string, truth map[string]struct{}) float64 {
	for i := 0; i < len(files); i++ {
		if _, ok := truth[files[i]]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
