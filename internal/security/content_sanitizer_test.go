package security

import (
	"strings"
	"testing"
)

// TestSanitize_RemovesDangerousTags は危険なタグが除去されることをテストする。
func TestSanitize_RemovesDangerousTags(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name    string
		input   string
		banned  string
		keep    string
	}{
		{
			name:   "scriptタグを除去",
			input:  `<p>Breaking news</p><script>alert("xss")</script>`,
			banned: "<script",
			keep:   "Breaking news",
		},
		{
			name:   "iframeタグを除去",
			input:  `<p>Analysis</p><iframe src="https://evil.example"></iframe>`,
			banned: "<iframe",
			keep:   "Analysis",
		},
		{
			name:   "styleタグを除去",
			input:  `<style>body{display:none}</style><p>Report</p>`,
			banned: "<style",
			keep:   "Report",
		},
		{
			name:   "on*イベント属性を除去",
			input:  `<p onclick="steal()">Summary</p>`,
			banned: "onclick",
			keep:   "Summary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if strings.Contains(got, tt.banned) {
				t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, tt.banned)
			}
			if !strings.Contains(got, tt.keep) {
				t.Errorf("Sanitize(%q) = %q, should keep %q", tt.input, got, tt.keep)
			}
		})
	}
}

// TestSanitize_KeepsAllowedTags は許可タグが保持されることをテストする。
func TestSanitize_KeepsAllowedTags(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>Lead paragraph</p><ul><li>First</li><li>Second</li></ul><blockquote>Quote</blockquote><pre><code>go run .</code></pre><strong>bold</strong><em>italic</em>`
	got := s.Sanitize(input)

	for _, tag := range []string{"<p>", "<ul>", "<li>", "<blockquote>", "<pre>", "<code>", "<strong>", "<em>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("allowed tag %s should survive, got %q", tag, got)
		}
	}
}

// TestSanitize_ImageSrcHTTPSOnly はimgのsrcがhttpsのみ許可されることをテストする。
func TestSanitize_ImageSrcHTTPSOnly(t *testing.T) {
	s := NewContentSanitizer()

	httpsImg := s.Sanitize(`<img src="https://cdn.example.com/photo.jpg" alt="photo">`)
	if !strings.Contains(httpsImg, `src="https://cdn.example.com/photo.jpg"`) {
		t.Errorf("https image src should survive, got %q", httpsImg)
	}
	if !strings.Contains(httpsImg, `alt="photo"`) {
		t.Errorf("alt attribute should survive, got %q", httpsImg)
	}

	for _, input := range []string{
		`<img src="http://cdn.example.com/photo.jpg">`,
		`<img src="javascript:alert(1)">`,
		`<img src="data:image/png;base64,AAAA">`,
	} {
		got := s.Sanitize(input)
		if strings.Contains(got, "src=") {
			t.Errorf("Sanitize(%q) = %q, non-https src should be removed", input, got)
		}
	}
}

// TestSanitize_LinkAttributes はaタグにtarget/relが強制付与されることをテストする。
func TestSanitize_LinkAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="https://example.com/story">full story</a>`)
	if !strings.Contains(got, `href="https://example.com/story"`) {
		t.Errorf("href should survive, got %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("target=_blank should be added, got %q", got)
	}
	if !strings.Contains(got, "noopener") || !strings.Contains(got, "noreferrer") {
		t.Errorf("rel should contain noopener noreferrer, got %q", got)
	}

	// 相対URLのリンクは不許可
	rel := s.Sanitize(`<a href="/local/path">local</a>`)
	if strings.Contains(rel, "href=") {
		t.Errorf("relative href should be removed, got %q", rel)
	}
}

// TestSanitize_EmptyInput は空文字列の入力に空文字列を返すことをテストする。
func TestSanitize_EmptyInput(t *testing.T) {
	s := NewContentSanitizer()
	if got := s.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty string", got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことをテストする。
func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()
	input := `<p>Stable</p><script>x()</script><a href="https://example.com">link</a>`

	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("sanitizing sanitized output changed it: %q -> %q", first, second)
	}
}
