package main

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func TestBearerToken(t *testing.T) {
	tests := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":    {"abc", true},
		"Token abc":     {"abc", true},
		"bearer  abc  ": {"abc", true},
		"Basic abc":     {"", false},
		"Bearer":        {"", false},
		"Bearer ":       {"", false},
		"":              {"", false},
	}
	for header, want := range tests {
		got, ok := bearerToken(header)
		if got != want.token || ok != want.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", header, got, ok, want.token, want.ok)
		}
	}
}

func TestCustomValidators(t *testing.T) {
	registerValidators()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		t.Fatal("validator engine unavailable")
	}
	urls := map[string]bool{
		"https://example.com":  true,
		"http://example.com/a": true,
		"ftp://files.example":  true,
		"":                     true,
		"example.com":          false,
		"javascript:alert(1)":  false,
		"mailto:a@example.com": false,
		"https://":             false,
	}
	for in, want := range urls {
		if err := v.Var(in, "weburl"); (err == nil) != want {
			t.Errorf("weburl %q: err=%v want valid=%v", in, err, want)
		}
	}
	names := map[string]bool{
		"alice":     true,
		"a.b+c@d-e": true,
		"bad name":  false,
		"semi;":     false,
	}
	for in, want := range names {
		if err := v.Var(in, "username"); (err == nil) != want {
			t.Errorf("username %q: err=%v want valid=%v", in, err, want)
		}
	}
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	registerValidators()
	req := struct {
		Title string `json:"title" binding:"required"`
	}{}
	err := binding.Validator.ValidateStruct(&req)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) != 1 {
		t.Fatalf("err = %v", err)
	}
	if verrs[0].Field() != "title" {
		t.Fatalf("field = %q, want title", verrs[0].Field())
	}
	if msg := fieldMessage(verrs[0]); msg != "This field is required." {
		t.Fatalf("message = %q", msg)
	}
}

func TestHealth(t *testing.T) {
	r, _ := setupTestServer(t)
	rec := performRequest(r, http.MethodGet, "/health", nil, "", "")
	expect(t, rec, http.StatusOK)
}

func TestMinMessageDependsOnKind(t *testing.T) {
	registerValidators()
	req := struct {
		Name  string `json:"name" binding:"min=3"`
		Count int    `json:"count" binding:"min=1"`
	}{Name: "ab"}
	err := binding.Validator.ValidateStruct(&req)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) != 2 {
		t.Fatalf("err = %v", err)
	}
	want := map[string]string{
		"name":  "Ensure this field has at least 3 characters.",
		"count": "Ensure this value is greater than or equal to 1.",
	}
	for _, fe := range verrs {
		if got := fieldMessage(fe); got != want[fe.Field()] {
			t.Errorf("%s: message = %q, want %q", fe.Field(), got, want[fe.Field()])
		}
	}
}
