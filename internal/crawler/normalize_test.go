package crawler

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "strips fragment", in: "http://ex.org/a#top", want: "http://ex.org/a"},
		{name: "strips from first hash", in: "http://ex.org/a#x#y", want: "http://ex.org/a"},
		{name: "collapses empty query", in: "http://ex.org/a?", want: "http://ex.org/a"},
		{name: "keeps query", in: "http://ex.org/a?b=1", want: "http://ex.org/a?b=1"},
		{name: "empty path becomes slash", in: "http://ex.org", want: "http://ex.org/"},
		{name: "lowercases scheme and host", in: "HTTP://Ex.ORG/Path", want: "http://ex.org/Path"},
		{name: "relative path untouched", in: "b/c", want: "b/c"},
		{name: "fragment only", in: "#section", want: ""},
		{name: "empty", in: "", want: ""},
		{name: "unparseable keeps text", in: "http://[::1#frag", want: "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://ex.org/a#top",
		"HTTP://EX.org?",
		"/b/../c?x=1#y",
		"mailto:someone@ex.org",
		"http://ex.org/a b",
		"http://[::1",
		"//ex.org",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://ex.org/dir/page")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "absolute path", in: "/b", want: "http://ex.org/b"},
		{name: "relative path", in: "c", want: "http://ex.org/dir/c"},
		{name: "dot segments", in: "../d", want: "http://ex.org/d"},
		{name: "absolute url", in: "http://ex.org/e#frag", want: "http://ex.org/e"},
		{name: "scheme relative", in: "//ex.org", want: "http://ex.org/"},
		{name: "query only", in: "?q=1", want: "http://ex.org/dir/page?q=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Resolve(base, tt.in)
			if !ok {
				t.Fatalf("Resolve(%q) failed", tt.in)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		t.Parallel()

		if _, ok := Resolve(base, "http://[::1"); ok {
			t.Error("expected failure for unparseable link")
		}
	})
}

func TestScopeInScope(t *testing.T) {
	t.Parallel()

	scope := NewScope("ex.org")

	tests := []struct {
		link string
		want bool
	}{
		{link: "/b", want: true},
		{link: "c", want: true},
		{link: "http://ex.org/x", want: true},
		{link: "https://EX.org/x", want: true},
		{link: "?page=2", want: true},
		{link: "http://other.org/x", want: false},
		{link: "//other.org/x", want: false},
		{link: "mailto:a@ex.org", want: false},
		{link: "javascript:void(0)", want: false},
		{link: "ftp://ex.org/file", want: false},
		{link: "", want: false},
		{link: "#top", want: false},
		{link: "http://ex.org:8080/x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			t.Parallel()

			if got := scope.InScope(tt.link); got != tt.want {
				t.Errorf("InScope(%q) = %v, want %v", tt.link, got, tt.want)
			}
		})
	}
}

func TestScopeContains(t *testing.T) {
	t.Parallel()

	scope := NewScope("ex.org")

	if !scope.Contains("http://ex.org/a") {
		t.Error("expected root host to be contained")
	}
	if scope.Contains("http://other.org/a") {
		t.Error("expected foreign host to be rejected")
	}
	if scope.Contains("/relative") {
		t.Error("expected relative URL to be rejected")
	}
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	t.Run("zero value allows everything", func(t *testing.T) {
		t.Parallel()

		var f PathFilter
		if !f.Allow("http://ex.org/anything") {
			t.Error("expected allow")
		}
	})

	t.Run("ignore patterns", func(t *testing.T) {
		t.Parallel()

		f := PathFilter{Ignore: []string{"/admin/*", "*.pdf"}}
		cases := map[string]bool{
			"http://ex.org/admin":          false,
			"http://ex.org/admin/users":    false,
			"http://ex.org/docs/guide.pdf": false,
			"http://ex.org/docs/guide":     true,
			"http://ex.org/administrator":  true,
		}
		for u, want := range cases {
			if got := f.Allow(u); got != want {
				t.Errorf("Allow(%q) = %v, want %v", u, got, want)
			}
		}
	})

	t.Run("follow patterns", func(t *testing.T) {
		t.Parallel()

		f := PathFilter{Follow: []string{"/blog/*"}, Ignore: []string{"/blog/drafts/*"}}
		cases := map[string]bool{
			"http://ex.org/blog/post":     true,
			"http://ex.org/blog/drafts/x": false,
			"http://ex.org/shop":          false,
		}
		for u, want := range cases {
			if got := f.Allow(u); got != want {
				t.Errorf("Allow(%q) = %v, want %v", u, got, want)
			}
		}
	})
}
