package scope

import "testing"

func testConfig() Config {
	return Config{
		"Person": {
			Label:       "Person",
			Aliases:     []string{"people", "member"},
			Description: "A registered person",
			Scopes: map[string]Scope{
				"volunteers": {
					ScopeName:         "volunteers",
					Entity:            "Person",
					SpecificationType: PropertyFilter,
					Concept:           "people who volunteer",
					Filter:            map[string]any{"role": "volunteer"},
				},
			},
		},
		"Order": {
			Label:   "Order",
			Aliases: []string{"orders", "purchase"},
		},
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name         string
		question     string
		wantEntities []string
		wantScopes   []string
	}{
		{
			name:         "entity by name",
			question:     "How many Order nodes are there?",
			wantEntities: []string{"Order"},
		},
		{
			name:         "entity by alias case insensitive",
			question:     "Show me all PEOPLE in the system",
			wantEntities: []string{"Person"},
		},
		{
			name:         "scope by name",
			question:     "List the volunteers from last year",
			wantEntities: []string{},
			wantScopes:   []string{"volunteers"},
		},
		{
			name:         "no mentions",
			question:     "What is the average temperature?",
			wantEntities: []string{},
		},
		{
			name:         "empty question",
			question:     "   ",
			wantEntities: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detection := Detect(tt.question, testConfig())

			if len(detection.DetectedEntities) != len(tt.wantEntities) {
				t.Fatalf("expected %d entities, got %v", len(tt.wantEntities), detection.DetectedEntities)
			}
			for _, want := range tt.wantEntities {
				if _, ok := detection.EntityMetadata[want]; !ok {
					t.Fatalf("expected metadata for entity %q", want)
				}
			}
			if len(detection.DetectedScopes) != len(tt.wantScopes) {
				t.Fatalf("expected %d scopes, got %v", len(tt.wantScopes), detection.DetectedScopes)
			}
			for _, want := range tt.wantScopes {
				if _, ok := detection.DetectedScopes[want]; !ok {
					t.Fatalf("expected scope %q to be detected", want)
				}
			}
		})
	}
}
