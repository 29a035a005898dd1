package similarity

import "testing"

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		minScore float64
	}{
		{"identical", "The Matrix", "The Matrix", 1.0},
		{"case insensitive", "The Matrix", "the matrix", 1.0},
		{"dots vs spaces", "The.Matrix", "The Matrix", 0.99},
		{"reordered tokens", "Knight Dark The", "The Dark Knight", 0.99},
		{"one-sided extra words", "The Dark Knight 1080p WEB-DL GROUP", "The Dark Knight", 0.9},
		{"different strings", "The Matrix", "Inception", 0.5}, // upper bound check below
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := TokenSetRatio(tt.a, tt.b)
			if tt.name == "different strings" {
				if score >= tt.minScore {
					t.Fatalf("expected score below %v for unrelated titles, got %v", tt.minScore, score)
				}
				return
			}
			if score < tt.minScore {
				t.Fatalf("expected score >= %v, got %v", tt.minScore, score)
			}
		})
	}
}

func TestTokenSetRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"The Matrix", "Matrix, The"},
		{"Will Vinton's Claymation Christmas", "Claymation Christmas"},
		{"One Piece", "One  Piece!!"},
	}
	for _, p := range pairs {
		ab := TokenSetRatio(p[0], p[1])
		ba := TokenSetRatio(p[1], p[0])
		if ab != ba {
			t.Fatalf("TokenSetRatio(%q,%q)=%v != TokenSetRatio(%q,%q)=%v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestMatchesThreshold(t *testing.T) {
	candidates := []string{"Breaking Bad", "Better Call Saul"}
	if !Matches("Breaking.Bad.S01E01.1080p", candidates, DefaultThreshold) {
		t.Fatalf("expected a match above threshold")
	}
	if Matches("Completely Unrelated Show", candidates, DefaultThreshold) {
		t.Fatalf("expected no match")
	}
}

func TestNormalizeStripsLeadingArticle(t *testing.T) {
	if got := Normalize("The Matrix"); got != "matrix" {
		t.Fatalf("expected 'matrix', got %q", got)
	}
	if got := Normalize("A Bug's Life"); got != "bugs life" {
		t.Fatalf("expected 'bugs life', got %q", got)
	}
}
