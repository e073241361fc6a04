package predcache

import "github.com/ecolens/tierscore/internal/domain/score"

type entry struct {
	Label      string      `json:"label"`
	Score      int         `json:"score"`
	Confidence float64     `json:"confidence"`
	Top        []candidate `json:"top,omitempty"`
}

type candidate struct {
	Label       string  `json:"label"`
	Score       int     `json:"score"`
	Probability float64 `json:"probability"`
}

func fromResult(r score.Result) entry {
	e := entry{Label: r.Label, Score: r.Score, Confidence: r.Confidence}
	for _, c := range r.Top {
		e.Top = append(e.Top, candidate(c))
	}
	return e
}

func (e entry) toResult() score.Result {
	r := score.Result{Label: e.Label, Score: e.Score, Confidence: e.Confidence}
	for _, c := range e.Top {
		r.Top = append(r.Top, score.Candidate(c))
	}
	return r
}
