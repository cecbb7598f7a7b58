package cli

import "testing"

func TestFirstNonFlag(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		fallback string
		want     string
	}{
		{"empty uses fallback", nil, "origin", "origin"},
		{"only flags uses fallback", []string{"--force", "-v"}, "origin", "origin"},
		{"finds remote name", []string{"--force", "upstream"}, "origin", "upstream"},
		{"first non-flag wins", []string{"upstream", "main"}, "origin", "upstream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := firstNonFlag(tc.args, tc.fallback)
			if got != tc.want {
				t.Errorf("firstNonFlag(%v, %q) = %q, want %q", tc.args, tc.fallback, got, tc.want)
			}
		})
	}
}

func TestResolveRevOnTempRepo(t *testing.T) {
	dir := t.TempDir()
	runGitCmd(t, dir, "init")
	runGitCmd(t, dir, "config", "user.email", "test@test.com")
	runGitCmd(t, dir, "config", "user.name", "Test")
	sha := writeAndCommit(t, dir, "a.txt", "hello\n")

	got, err := resolveRev(dir, "HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if got != sha {
		t.Errorf("resolveRev(HEAD) = %q, want %q", got, sha)
	}
}

func TestResolveRevUnknownRevision(t *testing.T) {
	dir := t.TempDir()
	runGitCmd(t, dir, "init")

	if _, err := resolveRev(dir, "nonexistent-branch"); err == nil {
		t.Error("expected an error resolving a nonexistent revision")
	}
}

func TestShortSHA(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "0123456"},
	}
	for _, tc := range cases {
		if got := shortSHA(tc.in); got != tc.want {
			t.Errorf("shortSHA(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
