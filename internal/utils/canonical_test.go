package utils

import (
	"errors"
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		opts CanonicalizeOptions
		want string
	}{
		{
			in:   "HTTP://Example.COM:80/foo/../bar/?b=2&a=1#frag",
			opts: CanonicalizeOptions{},
			want: "http://example.com/bar/?a=1&b=2",
		},
		{
			in:   "https://user:pw@example.com:443/index.html#section",
			opts: CanonicalizeOptions{},
			want: "https://example.com/index.html",
		},
		{
			in:   "example.com/page?utm_source=x&utm_medium=y&z=1",
			opts: CanonicalizeOptions{DefaultScheme: "https", DropTrackingParams: true},
			want: "https://example.com/page?z=1",
		},
		{
			in:   "https://例え.テスト/a",
			opts: CanonicalizeOptions{},
			want: "https://xn--r8jz45g.xn--zckzah/a",
		},
		{
			in:   "https://example.com/foo/",
			opts: CanonicalizeOptions{StripTrailingSlash: true},
			want: "https://example.com/foo",
		},
		{
			in:   "https://example.com",
			opts: CanonicalizeOptions{StripTrailingSlash: true},
			want: "https://example.com/",
		},
		{
			in:   "http://example.com:8080/x",
			opts: CanonicalizeOptions{},
			want: "http://example.com:8080/x",
		},
	}

	for _, tt := range tests {
		got, err := Canonicalize(tt.in, tt.opts)
		if err != nil {
			t.Fatalf("canonicalize(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize_Errors(t *testing.T) {
	if _, err := Canonicalize("  ", CanonicalizeOptions{}); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("expected ErrEmptyURL, got %v", err)
	}
	if _, err := Canonicalize("/relative/path", CanonicalizeOptions{}); !errors.Is(err, ErrMissingHost) {
		t.Errorf("expected ErrMissingHost, got %v", err)
	}
}

func TestValidateScanURL(t *testing.T) {
	valid := []string{"https://good.example", "http://a.example:8080/x?y=1", "HTTPS://Bit.ly/45JqCvI"}
	for _, v := range valid {
		if err := ValidateScanURL(v); err != nil {
			t.Errorf("ValidateScanURL(%q) = %v", v, err)
		}
	}

	invalid := map[string]error{
		"":                    ErrEmptyURL,
		"ftp://files.example": ErrUnsupportedURL,
		"not a url":           ErrUnsupportedURL,
		"https://":            ErrMissingHost,
	}
	for in, want := range invalid {
		if err := ValidateScanURL(in); !errors.Is(err, want) {
			t.Errorf("ValidateScanURL(%q) = %v, want %v", in, err, want)
		}
	}
}

func TestDedupeURLs(t *testing.T) {
	in := []string{"a", "https://b.example", " ", "https://b.example ", "c", "a", ""}
	got := DedupeURLs(in)
	want := []string{"a", "https://b.example", "", "c", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeURLs = %v, want %v", got, want)
	}
}

func TestDedupeURLs_ComparesByValue(t *testing.T) {
	in := []string{
		"https://a.example/x",
		"https://a.example/x/",
		"https://a.example/p?b=1&a=2",
		"https://a.example/p?a=2&b=1",
		"https://a.example/a/../x",
		"https://A.example/x",
	}
	got := DedupeURLs(in)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("distinct values must survive, got %v", got)
	}
}

func TestDedupeURLs_HomepageNewsUnion(t *testing.T) {
	homepages := []string{"https://a.example", "https://b.example"}
	news := []string{"https://b.example", "https://c.example"}

	got := DedupeURLs(append(homepages, news...))
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeURLs = %v, want %v", got, want)
	}
}
