package intake

import "testing"

func TestRenderReply_Ask(t *testing.T) {
	got := RenderReply(Reply{Mode: ModeAsk, Message: "M", Question: "Q"})
	if got != "M Q" {
		t.Errorf("render = %q, want %q", got, "M Q")
	}
}

func TestRenderReply_AskSkipsEmpties(t *testing.T) {
	if got := RenderReply(Reply{Mode: ModeAsk, Message: "M"}); got != "M" {
		t.Errorf("missing question: %q", got)
	}
	if got := RenderReply(Reply{Mode: ModeAsk, Question: "Q"}); got != "Q" {
		t.Errorf("missing message: %q", got)
	}
	if got := RenderReply(Reply{Mode: ModeAsk}); got != "" {
		t.Errorf("all empty: %q", got)
	}
}

func TestRenderReply_GuideTruncatesSteps(t *testing.T) {
	got := RenderReply(Reply{Mode: ModeGuide, Message: "M", Steps: []string{"a", "b", "c", "d"}})
	want := "M\n1. a\n2. b\n3. c"
	if got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestRenderReply_GuideFewSteps(t *testing.T) {
	got := RenderReply(Reply{Mode: ModeGuide, Message: "M", Steps: []string{"only"}})
	if got != "M\n1. only" {
		t.Errorf("render = %q", got)
	}
	if got := RenderReply(Reply{Mode: ModeGuide, Message: "M"}); got != "M" {
		t.Errorf("no steps: %q", got)
	}
}

func TestRenderReply_Deterministic(t *testing.T) {
	r := Reply{Mode: ModeGuide, Message: "M", Steps: []string{"a", "b"}}
	if RenderReply(r) != RenderReply(r) {
		t.Fatal("render must be a pure function of its input")
	}
}

func TestRenderReply_Fallback(t *testing.T) {
	got := RenderReply(FallbackReply())
	want := "Sorry, I didn't catch that. Could you briefly share what happened, when, and where?"
	if got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}
