package main

import (
	"strings"
	"testing"
	"time"

	"pyindexer/internal/core/app"
)

func TestRenderSummary(t *testing.T) {
	res := app.Result{
		RunID:      "run-1",
		Files:      3,
		Symbols:    12,
		References: 7,
		Duration:   1500 * time.Millisecond,
	}

	tests := []struct {
		name   string
		failed int
		want   []string
	}{
		{"Clean", 0, []string{"run-1", "deep", "12", "7", "1.5s", "all files indexed"}},
		{"Failures", 2, []string{"2 file(s) could not be parsed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := res
			r.Failed = tt.failed
			out := renderSummary(r, "deep", "index.sqlite")
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("summary missing %q:\n%s", w, out)
				}
			}
		})
	}
}
