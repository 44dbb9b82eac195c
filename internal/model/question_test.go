package model

import (
	"encoding/json"
	"testing"
)

func TestQuestionRefWireForm(t *testing.T) {
	payload := struct {
		Position QuestionRef `json:"position"`
		Visited  RefSet      `json:"visited"`
		Answers  Answers     `json:"answers"`
	}{
		Position: QuestionRef{Subject: 0, Question: 1},
		Visited:  RefSet{{Subject: 1, Question: 0}: {}, {Subject: 0, Question: 1}: {}},
		Answers:  Answers{{Subject: 1, Question: 2}: 3},
	}

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"position":"0:1","visited":["0:1","1:0"],"answers":{"1:2":3}}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}

	var ref QuestionRef
	if err := json.Unmarshal([]byte(`"2:x"`), &ref); err == nil {
		t.Fatalf("expected malformed ref to be rejected")
	}
}
