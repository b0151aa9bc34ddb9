package domain

import "testing"

func TestScrapedResult_Predicates(t *testing.T) {
	var nilResult *ScrapedResult
	if nilResult.HasMedia() || nilResult.IsPlaceholder() {
		t.Error("nil result should have no media and not be a placeholder")
	}

	p := Placeholder(PlatformTwitter, "https://x.com/u/status/1")
	if !p.IsPlaceholder() || p.HasMedia() {
		t.Errorf("placeholder = %+v", p)
	}
	if p.Caption != PlaceholderCaption || p.OriginalURL != "https://x.com/u/status/1" {
		t.Errorf("placeholder fields = %+v", p)
	}

	r := &ScrapedResult{MethodUsed: "primary", Items: []MediaItem{{URL: "u", Kind: MediaImage}}}
	if !r.HasMedia() || r.IsPlaceholder() {
		t.Errorf("result = %+v", r)
	}
	if r.Items[0].Downloaded() {
		t.Error("item without data reported as downloaded")
	}
	if !(MediaItem{Data: []byte{}}).Downloaded() {
		t.Error("empty non-nil data counts as downloaded")
	}
}

func TestSpan_Contains(t *testing.T) {
	s := Span{Offset: 4, Length: 3}
	tests := []struct {
		pos  int
		want bool
	}{
		{3, false},
		{4, true},
		{6, true},
		{7, false},
	}
	for _, tt := range tests {
		if got := s.Contains(tt.pos); got != tt.want {
			t.Errorf("Contains(%d) = %v, want %v", tt.pos, got, tt.want)
		}
	}
}
