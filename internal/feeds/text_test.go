package feeds

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hi", 2, "hi"},
		{"hi", 1, "h"},
		{"", 5, ""},
		{"Тегеран заявил", 10, "Тегеран..."},
	}

	for _, tc := range tests {
		result := Truncate(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestCut(t *testing.T) {
	if got := Cut("héllo world", 5); got != "héllo" {
		t.Errorf("Cut = %q", got)
	}
	if got := Cut("short", 10); got != "short" {
		t.Errorf("Cut = %q", got)
	}
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Iran&#039;s move", "Iran's move"},
		{"Iran&amp;#039;s move", "Iran's move"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"  plain  ", "plain"},
	}
	for _, tt := range tests {
		if got := DecodeEntities(tt.in, 2); got != tt.want {
			t.Errorf("DecodeEntities(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	// A single pass leaves the inner entity in place.
	if got := DecodeEntities("Iran&amp;#039;s", 1); got != "Iran&#039;s" {
		t.Errorf("single pass = %q", got)
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<p>Strikes near <a href="x">Isfahan</a></p>`, "Strikes near Isfahan"},
		{"<img src=\"a.jpg\"/>Tehran<br>update", "Tehran update"},
		{"no   markup\n here", "no markup here"},
		{"Tom &amp; Jerry <b>x</b>", "Tom &amp; Jerry x"},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashIDStable(t *testing.T) {
	a := HashID("title", "https://example.com")
	b := HashID("title", "https://example.com")
	if a != b || len(a) != 16 {
		t.Errorf("HashID not stable or wrong length: %q %q", a, b)
	}
	if a == HashID("other", "https://example.com") {
		t.Error("HashID collision for different input")
	}
}
