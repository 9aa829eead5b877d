package models

// Unclassified is the label of a relation code that is not known.
const Unclassified = "Unclassified"

var subjectRelationLabels = map[int16]string{
	1:    "Adaptation",
	2:    "Prequel",
	3:    "Sequel",
	4:    "Summary",
	5:    "Full Story",
	6:    "Side Story",
	7:    "Character",
	8:    "Same Setting",
	9:    "Alternative Setting",
	10:   "Alternative Version",
	11:   "Spin-off",
	12:   "Parent Story",
	14:   "Collaboration",
	99:   "Other",
	1002: "Series",
	1003: "Offprint",
	1004: "Album",
	1005: "Prequel",
	1006: "Sequel",
	1007: "Side Story",
	1008: "Parent Story",
	1010: "Alternative Version",
	1011: "Character",
	1012: "Same Setting",
	1013: "Alternative Setting",
	1014: "Other",
	3001: "Original Soundtrack",
	3002: "Character Song",
	3003: "Opening Song",
	3004: "Ending Song",
	3005: "Insert Song",
	3006: "Image Song",
	3007: "Drama",
	3099: "Other",
	4002: "Prequel",
	4003: "Sequel",
	4006: "Side Story",
	4012: "Parent Story",
	4014: "Version",
	4015: "Expansion",
	4017: "Collection",
	4018: "In Collection",
	4099: "Other",
}

var personPositionLabels = map[int16]string{
	1:  "Original Creator",
	2:  "Director",
	3:  "Script",
	4:  "Storyboard",
	5:  "Episode Director",
	6:  "Music",
	7:  "Original Character Design",
	8:  "Character Design",
	9:  "Layout",
	10: "Series Composition",
	11: "Art Direction",
	13: "Color Design",
	14: "Chief Animation Director",
	15: "Animation Director",
	16: "Mechanical Design",
	17: "Director of Photography",
	18: "Supervision",
	19: "Prop Design",
	20: "Key Animation",
	21: "Second Key Animation",
	22: "In-Between Animation",
	23: "Special Effects",
	24: "Production",
	25: "Assistant Producer",
	26: "Producer",
	27: "Music Assistant",
	28: "Production Manager",
	29: "Setting",
	30: "Sound Director",
	31: "Theme Song Arrangement",
	32: "Theme Song Composition",
	33: "Theme Song Lyrics",
	34: "Theme Song Performance",
	35: "Inserted Song Performance",
	36: "Planning",
	37: "Planning Producer",
	38: "Production Manager",
	39: "Publicity",
	40: "Recording",
	41: "Recording Assistant",
	42: "Editing",
	43: "Animation Production",
	44: "Background Art",
	45: "CG Director",
}

var castTypeLabels = map[int16]string{
	1: "Main",
	2: "Supporting",
	3: "Guest",
}

// SubjectRelationLabel returns the display label of a subject relation type
// code.
func SubjectRelationLabel(code int16) string {
	return label(subjectRelationLabels, code)
}

// PersonPositionLabel returns the display label of a staff position code.
func PersonPositionLabel(code int16) string {
	return label(personPositionLabels, code)
}

// CastTypeLabel returns the display label of a character cast type code.
func CastTypeLabel(code int16) string {
	return label(castTypeLabels, code)
}

func label(m map[int16]string, code int16) string {
	if s, ok := m[code]; ok {
		return s
	}
	return Unclassified
}
