package pagination

import (
	"context"
	"errors"
	"testing"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		pages []testPage
		want  []int
	}{
		{
			name:  "no pages",
			pages: nil,
			want:  []int{},
		},
		{
			name:  "single page",
			pages: []testPage{{Data: []int{1, 2, 3}}},
			want:  []int{1, 2, 3},
		},
		{
			name: "empty pages are skipped",
			pages: []testPage{
				{Data: []int{1}},
				{Data: nil},
				{Data: []int{2, 3}},
			},
			want: []int{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten[int](tt.pages)
			if len(got) != len(tt.want) {
				t.Fatalf("Flatten() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Flatten()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFlatten_KTimesM(t *testing.T) {
	const k, m = 7, 4

	pages := make([]testPage, k)
	for i := range pages {
		for j := 0; j < m; j++ {
			pages[i].Data = append(pages[i].Data, i*m+j)
		}
	}

	got := Flatten[int](pages)
	if len(got) != k*m {
		t.Fatalf("len(Flatten()) = %d, want %d", len(got), k*m)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("Flatten()[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestLoadAll(t *testing.T) {
	src := newFakeSource(25, 10)

	cfg := DefaultConfig()
	cfg.Strategy = StrategyBatched
	cfg.BatchSize = 1

	records, err := LoadAll[int](context.Background(), src.fetch, cfg)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(records) != 25 {
		t.Fatalf("len(records) = %d, want 25", len(records))
	}
	for i, r := range records {
		if r != i {
			t.Errorf("records[%d] = %d, want %d", i, r, i)
		}
	}
}

func TestLoadAll_Error(t *testing.T) {
	src := newFakeSource(25, 10)
	src.fail[2] = errors.New("gateway timeout")

	records, err := LoadAll[int](context.Background(), src.fetch, DefaultConfig())
	if err == nil {
		t.Fatal("LoadAll() error = nil, want failure")
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}
