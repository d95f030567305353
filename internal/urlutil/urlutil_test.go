package urlutil

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestOrigin(t *testing.T) {
	valid := map[string]string{
		"http://127.0.0.1:8089/":     "http://127.0.0.1:8089",
		" https://example.test ":     "https://example.test",
		"https://example.test/blog/": "https://example.test/blog",
	}
	for in, want := range valid {
		got, err := Origin(in)
		if err != nil {
			t.Errorf("Origin(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Origin(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "example.test", "ftp://example.test", "http://", "http://x.test/?a=1", "http://x.test/#top"} {
		if _, err := Origin(in); err == nil {
			t.Errorf("Origin(%q) accepted an invalid base URL", in)
		}
	}
}

func TestBuildAbsolute_GeneratesExpectedURLs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := fmt.Sprintf(
			"https://%s.%s",
			rapid.StringMatching(`[a-z]{3,12}`).Draw(rt, "baseHost"),
			rapid.StringMatching(`[a-z]{2,8}`).Draw(rt, "baseTld"),
		)
		if rapid.Bool().Draw(rt, "baseHasSlash") {
			base += "/"
		}

		pathKind := rapid.IntRange(0, 3).Draw(rt, "pathKind")
		var path string
		switch pathKind {
		case 0:
			path = ""
		case 1:
			path = "/" + rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "relativePath")
		case 2:
			path = "wp-admin/" + rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "nestedPath")
		case 3:
			path = fmt.Sprintf(
				"https://%s.%s/post-new",
				rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "absoluteHost"),
				rapid.StringMatching(`[a-z]{2,6}`).Draw(rt, "absoluteTld"),
			)
		}

		got := BuildAbsolute(base, path)
		var want string
		switch {
		case path == "":
			want = strings.TrimRight(base, "/")
		case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
			want = path
		case strings.HasPrefix(path, "/"):
			want = strings.TrimRight(base, "/") + path
		default:
			want = strings.TrimRight(base, "/") + "/" + path
		}

		if got != want {
			rt.Fatalf("BuildAbsolute mismatch: got=%s want=%s", got, want)
		}
		parsed, err := url.Parse(got)
		if err != nil {
			rt.Fatalf("BuildAbsolute returned invalid URL %s: %v", got, err)
		}
		if parsed.Scheme == "" {
			rt.Fatalf("expected absolute URL with scheme, got=%s", got)
		}
	})
}
