package routing

import "testing"

func TestMakeSlug(t *testing.T) {
	cases := map[string]string{
		"River Clean-up 2025!":  "river-clean-up-2025",
		"  --Hello   World--  ": "hello-world",
		"Ünïcode only":          "n-code-only",
		"!!!":                   "item",
	}
	for in, want := range cases {
		if got := MakeSlug(in); got != want {
			t.Errorf("MakeSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidSlug(t *testing.T) {
	for _, ok := range []string{"river-cleanup", "a", "2025-report"} {
		if !ValidSlug(ok) {
			t.Errorf("ValidSlug(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"", "River-Cleanup", "river cleanup", "river_cleanup", "café"} {
		if ValidSlug(bad) {
			t.Errorf("ValidSlug(%q) = true, want false", bad)
		}
	}
}

func TestBuildPath(t *testing.T) {
	if got := BuildPath("/admin/ngo/", "projects"); got != "/admin/ngo/projects" {
		t.Fatalf("BuildPath = %q", got)
	}
	if got := BuildPath("", ""); got != "/" {
		t.Fatalf("BuildPath empty = %q", got)
	}
}
