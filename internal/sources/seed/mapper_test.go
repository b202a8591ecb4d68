package seed

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestMap(t *testing.T) {
	file := File{
		{"Roads": {
			{Keyword: "  асфальт  "},
			{Keyword: "ремонт дорог", Active: boolPtr(false)},
			{Keyword: "   "},
		}},
		{"Medical": {
			{Keyword: "Асфальт"},
			{Keyword: "томограф"},
		}},
		{"": {
			{Keyword: "uncategorized"},
		}},
	}

	got := Map(file)

	want := []struct {
		keyword  string
		category string
		active   bool
	}{
		{"асфальт", "Roads", true},
		{"ремонт дорог", "Roads", false},
		{"томограф", "Medical", true},
		{"uncategorized", "", true},
	}

	if len(got) != len(want) {
		t.Fatalf("Map() returned %d queries, want %d", len(got), len(want))
	}
	for i, w := range want {
		q := got[i]
		if q.Keyword != w.keyword || q.Active != w.active {
			t.Errorf("query %d = {%q %v}, want {%q %v}", i, q.Keyword, q.Active, w.keyword, w.active)
		}
		category := ""
		if q.Category != nil {
			category = *q.Category
		}
		if category != w.category {
			t.Errorf("query %d category = %q, want %q", i, category, w.category)
		}
	}
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Асфальт", "асфальт"},
		{"  ремонт   ДОРОГ ", "ремонт дорог"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKeyword(tt.in); got != tt.want {
			t.Errorf("NormalizeKeyword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
