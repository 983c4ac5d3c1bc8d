package lang

import (
	"testing"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".c", "c"},
		{".h", "c"},
		{".H", "c"},
		{".py", ""},
		{".wdl", ""},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.ext)
			if got != tt.want {
				t.Errorf("ForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"main.c", true},
		{"lib/util.h", true},
		{`lib\util.H`, true},
		{"README", false},
		{"dir.c/README", false},
		{"notes.txt", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got := ForPath(tt.path)
			if (got != nil) != tt.want {
				t.Errorf("ForPath(%q) = %v, want found=%v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	cl, ok := Languages["c"]
	if !ok {
		t.Fatal("c language not registered")
	}
	if cl.GetLanguage() == nil {
		t.Error("c language is nil")
	}
}

func TestNewParser(t *testing.T) {
	t.Parallel()

	p := Languages["c"].NewParser()
	if p == nil {
		t.Fatal("NewParser returned nil")
	}
}
