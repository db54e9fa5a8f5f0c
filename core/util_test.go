package core

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		lower bool
		want  []string
	}{
		{name: "empty", in: "", want: []string{}},
		{name: "only commas", in: " , ,", want: []string{}},
		{name: "trims", in: "loans, cards ,,online ", want: []string{"loans", "cards", "online"}},
		{name: "lower", in: "Loans,CARDS", lower: true, want: []string{"loans", "cards"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitList(tt.in, tt.lower); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: []int{}},
		{in: "1, 2,3", want: []int{1, 2, 3}},
		{in: "1,x", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-4", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SplitIDs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitIDs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !IsValidationError(err) {
				t.Errorf("SplitIDs(%q) error = %T, want *ValidationError", tt.in, err)
			}
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitIDs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSlugValidation(t *testing.T) {
	validate, _ := NewValidator()
	type payload struct {
		Slug string `json:"slug" validate:"slug"`
	}
	tests := []struct {
		slug    string
		wantErr bool
	}{
		{"credit-plus", false},
		{"mfo2", false},
		{"Credit-Plus", true},
		{"credit--plus", true},
		{"-credit", true},
		{"credit plus", true},
	}
	for _, tt := range tests {
		if err := validate.Struct(payload{Slug: tt.slug}); (err != nil) != tt.wantErr {
			t.Errorf("validate(%q) error = %v, wantErr %v", tt.slug, err, tt.wantErr)
		}
	}
}
