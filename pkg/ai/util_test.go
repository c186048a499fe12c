package ai

import "testing"

type sampleOut struct {
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantAnswer string
		wantCount  int
		wantErr    bool
	}{
		{
			name:       "standard json",
			input:      `{"answer": "ok", "count": 3}`,
			wantAnswer: "ok",
			wantCount:  3,
		},
		{
			name:       "double encoded",
			input:      `"{\"answer\": \"ok\", \"count\": 1}"`,
			wantAnswer: "ok",
			wantCount:  1,
		},
		{
			name:       "malformed repaired",
			input:      `{answer: "ok", count: 2}`,
			wantAnswer: "ok",
			wantCount:  2,
		},
		{
			name:       "duplicate leading brace",
			input:      `{ {"answer": "ok", "count": 5}`,
			wantAnswer: "ok",
			wantCount:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out sampleOut
			err := UnmarshalFlexible(tt.input, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Answer != tt.wantAnswer || out.Count != tt.wantCount {
				t.Fatalf("unexpected result: %+v", out)
			}
		})
	}
}

func TestGenerateSchema_NotNil(t *testing.T) {
	schema := GenerateSchema(&sampleOut{})
	if schema == nil {
		t.Fatal("expected schema, got nil")
	}
}
