package platform

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected Platform
	}{
		{
			name:     "YouTube watch URL",
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: YouTube,
		},
		{
			name:     "YouTube short URL",
			url:      "https://youtu.be/dQw4w9WgXcQ",
			expected: YouTube,
		},
		{
			name:     "YouTube mobile URL",
			url:      "https://m.youtube.com/watch?v=abc123",
			expected: YouTube,
		},
		{
			name:     "Instagram reel",
			url:      "https://www.instagram.com/reel/Cxyz123/",
			expected: Instagram,
		},
		{
			name:     "Instagram post",
			url:      "https://instagram.com/p/Cabc456/",
			expected: Instagram,
		},
		{
			name:     "TikTok video",
			url:      "https://www.tiktok.com/@user/video/7123456789",
			expected: TikTok,
		},
		{
			name:     "Unknown host",
			url:      "https://vimeo.com/12345",
			expected: Unknown,
		},
		{
			name:     "Empty string",
			url:      "",
			expected: Unknown,
		},
		{
			name:     "YouTube wins over Instagram when both present",
			url:      "https://instagram.com/?next=youtube.com",
			expected: YouTube,
		},
		{
			name:     "substring match in query parameter",
			url:      "https://example.com/?ref=youtube.com",
			expected: YouTube,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.url); got != tt.expected {
				t.Errorf("Classify(%q) = %q; want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Platform
	}{
		{"youtube", YouTube},
		{"YouTube", YouTube},
		{"instagram", Instagram},
		{"tiktok", TikTok},
		{"facebook", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		if got := Parse(tt.input); got != tt.expected {
			t.Errorf("Parse(%q) = %q; want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSupported(t *testing.T) {
	if !Supported(YouTube) || !Supported(Instagram) || !Supported(TikTok) {
		t.Error("expected youtube, instagram and tiktok to be supported")
	}
	if Supported(Unknown) {
		t.Error("unknown platform must not be supported")
	}
}
