package ui

import "testing"

func TestRepliesEmptyFieldsYieldNil(t *testing.T) {
	var r Replies
	if r.UnknownText() != nil || r.UnknownPhoto() != nil || r.UnknownCallback() != nil {
		t.Fatal("empty replies must produce nil handlers")
	}
	r = Replies{Text: "a", Photo: "b", Callback: "c"}
	if r.UnknownText() == nil || r.UnknownPhoto() == nil || r.UnknownCallback() == nil {
		t.Fatal("filled replies must produce handlers")
	}
}
