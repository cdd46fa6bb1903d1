package engine

import (
	"sort"

	"github.com/google/uuid"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// PassageProgress is the answered/total breakdown for one passage.
type PassageProgress struct {
	PassageIndex  int `json:"passage_index"`
	AnsweredCount int `json:"answered_count"`
	TotalCount    int `json:"total_count"`
}

// Progress is the derived completion view of an attempt. Never persisted.
type Progress struct {
	AnsweredCount int               `json:"answered_count"`
	TotalCount    int               `json:"total_count"`
	Passages      []PassageProgress `json:"passages"`
}

// ComputeProgress derives per-passage and overall counts from the question
// set and an answer snapshot. Pure: no side effects, no caching.
func ComputeProgress(passages []model.Passage, questions []model.Question, answers map[uuid.UUID]string) Progress {
	indexByPassage := make(map[uuid.UUID]int, len(passages))
	perPassage := make(map[int]*PassageProgress, len(passages))
	for _, p := range passages {
		indexByPassage[p.ID] = p.PassageIndex
		perPassage[p.PassageIndex] = &PassageProgress{PassageIndex: p.PassageIndex}
	}

	var total, answered int
	for _, q := range questions {
		total++
		idx, ok := indexByPassage[q.PassageID]
		if !ok {
			// Question outside any known passage still counts overall.
			if answers[q.ID] != "" {
				answered++
			}
			continue
		}
		pp := perPassage[idx]
		pp.TotalCount++
		if answers[q.ID] != "" {
			answered++
			pp.AnsweredCount++
		}
	}

	out := Progress{AnsweredCount: answered, TotalCount: total}
	for _, pp := range perPassage {
		out.Passages = append(out.Passages, *pp)
	}
	sort.Slice(out.Passages, func(i, j int) bool {
		return out.Passages[i].PassageIndex < out.Passages[j].PassageIndex
	})
	return out
}
