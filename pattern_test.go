package unifs

import "testing"

func TestMatchName(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"", "anything.txt", true},
		{"*", "anything", true},
		{"*.*", "no-extension", true},
		{"*.txt", "notes.txt", true},
		{"*.txt", "notes.log", false},
		{"data-??.csv", "data-01.csv", true},
		{"data-??.csv", "data-001.csv", false},
		{"[ab]*", "beta", true},
		{"[ab]*", "gamma", false},
		{"{*.jpg,*.png}", "photo.png", true},
		{"[", "[", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			if got := MatchName(tt.pattern, tt.name); got != tt.want {
				t.Errorf("MatchName(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}

func TestCompilePattern(t *testing.T) {
	p1, err := CompilePattern("*.json")
	if err != nil {
		t.Fatalf("CompilePattern() error = %v", err)
	}
	p2, _ := CompilePattern("*.json")
	if p1 != p2 {
		t.Error("compiled patterns should be cached")
	}
	if p1.String() != "*.json" {
		t.Errorf("String() = %s", p1)
	}

	if _, err := CompilePattern("[unterminated"); err == nil {
		t.Error("expected error for invalid pattern")
	}

	var nilPattern *NamePattern
	if !nilPattern.Match("x") || nilPattern.String() != "" {
		t.Error("nil pattern must match everything")
	}
}
