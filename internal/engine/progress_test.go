package engine

import (
	"testing"

	"github.com/google/uuid"
)

func TestComputeProgress(t *testing.T) {
	_, passages, questions := fixtureTest(60) // 3 passages x 4 questions

	answers := map[uuid.UUID]string{
		questions[0].ID: "A",      // passage 1
		questions[1].ID: "C",      // passage 1
		questions[4].ID: "answer", // passage 2
	}

	p := ComputeProgress(passages, questions, answers)

	if p.TotalCount != 12 || p.AnsweredCount != 3 {
		t.Fatalf("overall = %d/%d, want 3/12", p.AnsweredCount, p.TotalCount)
	}
	if len(p.Passages) != 3 {
		t.Fatalf("passages = %d, want 3", len(p.Passages))
	}

	want := []struct{ idx, answered, total int }{
		{1, 2, 4},
		{2, 1, 4},
		{3, 0, 4},
	}
	for i, w := range want {
		got := p.Passages[i]
		if got.PassageIndex != w.idx || got.AnsweredCount != w.answered || got.TotalCount != w.total {
			t.Fatalf("passage %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestComputeProgressEmptyValueNotAnswered(t *testing.T) {
	_, passages, questions := fixtureTest(60)

	// A cleared answer ("" value) does not count as answered.
	answers := map[uuid.UUID]string{questions[0].ID: ""}

	p := ComputeProgress(passages, questions, answers)
	if p.AnsweredCount != 0 {
		t.Fatalf("answered = %d, want 0", p.AnsweredCount)
	}
}

func TestComputeProgressNoAnswers(t *testing.T) {
	_, passages, questions := fixtureTest(60)

	p := ComputeProgress(passages, questions, nil)
	if p.AnsweredCount != 0 || p.TotalCount != 12 {
		t.Fatalf("progress = %d/%d, want 0/12", p.AnsweredCount, p.TotalCount)
	}
}
