package cleantext

import "testing"

func TestText(t *testing.T) {
	cases := map[string]string{
		"plain bio":                         "plain bio",
		"  padded  ":                        "padded",
		"<b>bold</b> move":                  "bold move",
		"hi<script>alert(1)</script> there": "hi there",
		"Q&A with Tom & Jerry":              "Q&A with Tom & Jerry",
		"a < b && c":                        "a < b && c",
		`say "hi" it's fine`:                `say "hi" it's fine`,
		"<b></b>":                           "",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Errorf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLimit(t *testing.T) {
	if got := Limit("héllo", 3); got != "hél" {
		t.Fatalf("got %q", got)
	}
	if got := Limit("ok", 10); got != "ok" {
		t.Fatalf("got %q", got)
	}
	if got := Limit(Text("a&b"), 2); got != "a&" {
		t.Fatalf("limit after Text = %q", got)
	}
}
