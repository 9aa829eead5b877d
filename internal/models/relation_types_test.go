package models

import "testing"

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		fn   func(int16) string
		code int16
		want string
	}{
		{"sequel", SubjectRelationLabel, 3, "Sequel"},
		{"game expansion", SubjectRelationLabel, 4015, "Expansion"},
		{"unknown relation", SubjectRelationLabel, 12345, Unclassified},
		{"negative relation", SubjectRelationLabel, -1, Unclassified},
		{"director", PersonPositionLabel, 2, "Director"},
		{"unknown position", PersonPositionLabel, 0, Unclassified},
		{"main cast", CastTypeLabel, 1, "Main"},
		{"guest cast", CastTypeLabel, 3, "Guest"},
		{"unknown cast", CastTypeLabel, 4, Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.code); got != tt.want {
				t.Errorf("label(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
