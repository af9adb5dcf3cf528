package upload

import "testing"

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"my file.txt":           "my_file.txt",
		"dir/sub/photo.png":     "photo.png",
		`C:\Users\me\notes.txt`: "notes.txt",
		".hidden.txt":           "hidden.txt",
		"héllo wörld.txt":       "hllo_wrld.txt",
		"a;rm -rf.txt":          "arm_-rf.txt",
		"$$$":                   "",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a.PDF":     "pdf",
		"a.tar.zip": "zip",
		"noext":     "",
		"trailing.": "",
	}
	for in, want := range cases {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
