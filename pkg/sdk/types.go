package tierscore

import (
	"time"

	"github.com/ecolens/tierscore/internal/domain/score"
	inferenceuc "github.com/ecolens/tierscore/internal/usecase/inference"
)

// Prediction is the classification of one image.
type Prediction struct {
	Class      string
	Score      int
	Confidence float64
	// Top holds the most probable classes when WithTopK was given.
	Top []Candidate
}

// Candidate is one ranked class.
type Candidate struct {
	Class       string
	Score       int
	Probability float64
}

// ModelInfo describes the loaded artifact.
type ModelInfo struct {
	State      string
	Name       string
	Version    string
	Digest     string
	Labels     []string
	InputShape []int64
	Layout     string
	LoadedAt   time.Time
	LastError  string
}

func toPrediction(r score.Result) Prediction {
	p := Prediction{
		Class:      r.Label,
		Score:      r.Score,
		Confidence: r.Confidence,
	}
	if len(r.Top) > 0 {
		p.Top = make([]Candidate, len(r.Top))
		for i, c := range r.Top {
			p.Top[i] = Candidate{Class: c.Label, Score: c.Score, Probability: c.Probability}
		}
	}
	return p
}

func toModelInfo(info inferenceuc.Info) ModelInfo {
	return ModelInfo{
		State:      info.State.String(),
		Name:       info.Name,
		Version:    info.Version,
		Digest:     info.Digest,
		Labels:     info.Labels,
		InputShape: info.InputShape,
		Layout:     string(info.Layout),
		LoadedAt:   info.LoadedAt,
		LastError:  info.LastError,
	}
}
