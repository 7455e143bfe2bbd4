package domain

import "testing"

func TestMatchImagesToSpecsDirect(t *testing.T) {
	images := []SourceImage{{ID: "a"}, {ID: "b"}}
	specs := []ImageSpec{{Title: "First"}, {Title: "Second"}}

	pairs := MatchImagesToSpecs(images, specs)
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	for i, p := range pairs {
		if p.Kind != MatchDirect {
			t.Fatalf("pair %d kind = %s, want direct", i, p.Kind)
		}
	}
	if pairs[1].Spec.Title != "Second" || pairs[1].Image.ID != "b" {
		t.Fatalf("positional pairing broken: %+v", pairs[1])
	}
}

func TestMatchImagesToSpecsCyclicWrap(t *testing.T) {
	images := []SourceImage{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	specs := []ImageSpec{{Title: "One"}, {Title: "Two"}}

	pairs := MatchImagesToSpecs(images, specs)
	if len(pairs) != 5 {
		t.Fatalf("got %d pairs, want 5", len(pairs))
	}

	wantTitles := []string{"One", "Two", "One", "Two", "One"}
	wantKinds := []MatchKind{MatchDirect, MatchDirect, MatchCyclic, MatchCyclic, MatchCyclic}
	for i, p := range pairs {
		if p.Spec.Title != wantTitles[i] {
			t.Errorf("pair %d title = %q, want %q", i, p.Spec.Title, wantTitles[i])
		}
		if p.Kind != wantKinds[i] {
			t.Errorf("pair %d kind = %s, want %s", i, p.Kind, wantKinds[i])
		}
	}
}

func TestMatchImagesToSpecsFewerImages(t *testing.T) {
	images := []SourceImage{{ID: "a"}}
	specs := []ImageSpec{{Title: "One"}, {Title: "Two"}, {Title: "Three"}}

	pairs := MatchImagesToSpecs(images, specs)
	if len(pairs) != 1 || pairs[0].Spec.Title != "One" || pairs[0].Kind != MatchDirect {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestMatchImagesToSpecsNoSpecs(t *testing.T) {
	if pairs := MatchImagesToSpecs([]SourceImage{{ID: "a"}}, nil); pairs != nil {
		t.Fatalf("expected nil pairs, got %+v", pairs)
	}
}
