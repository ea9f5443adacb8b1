package models

import (
	"encoding/json"
	"testing"
)

func TestPickFields(t *testing.T) {
	md := "# Hi"
	res := &ScrapeResult{URL: "https://example.com/", Markdown: &md, TimeTaken: "1.00s"}

	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{"subset", []string{"url", "markdown", "missing"}, `{"markdown":"# Hi","url":"https://example.com/"}`},
		{"unknown only", []string{"nope"}, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(PickFields(res, tt.fields))
			if err != nil {
				t.Fatal(err)
			}
			if string(raw) != tt.want {
				t.Errorf("got %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestPickFields_NoFieldsIsIdentity(t *testing.T) {
	res := &ScrapeResult{}
	if got := PickFields(res, nil); got != any(res) {
		t.Errorf("got %v, want the input unchanged", got)
	}
	if got := PickFields([]int{1}, []string{"a"}); got == nil {
		t.Error("non-object values should pass through")
	}
}
