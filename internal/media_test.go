package internal

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"/in/PXL_20221227_152002772.jpg": "PXL_20221227_152002772",
		"/in/archive.tar.gz":             "archive.tar",
		"/in/3661100":                    "3661100",
		"IMG-20150225-WA0001.jpeg":       "IMG-20150225-WA0001",
		"/in/.hidden":                    "",
	}
	for path, want := range tests {
		if got := BaseName(path); got != want {
			t.Errorf("BaseName(%q): expected %q, got %q", path, want, got)
		}
	}
}

func TestDetectMedia(t *testing.T) {
	dir := t.TempDir()

	jpg := filepath.Join(dir, "wrong-extension.txt")
	writeJPEG(t, jpg, "", "")
	file, ok, err := DetectMedia(jpg, DefaultMediaTypes)
	if err != nil || !ok {
		t.Fatalf("Expected JPEG content to be detected, got ok=%v err=%v", ok, err)
	}
	if file.ContentType != "image/jpeg" || file.Name != "wrong-extension" {
		t.Errorf("Unexpected media file: %+v", file)
	}

	txt := filepath.Join(dir, "notes.jpg")
	writeFile(t, txt, []byte("just text"))
	if _, ok, err := DetectMedia(txt, DefaultMediaTypes); err != nil || ok {
		t.Errorf("Expected text not to count as media, got ok=%v err=%v", ok, err)
	}

	if _, _, err := DetectMedia(filepath.Join(dir, "missing.jpg"), DefaultMediaTypes); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestScanMediaFiles(t *testing.T) {
	input := t.TempDir()
	output := filepath.Join(input, "library")

	writeJPEG(t, filepath.Join(input, "a.jpg"), "", "")
	writeJPEG(t, filepath.Join(input, "nested", "deeper", "b.jpg"), "", "")
	writeMP4(t, filepath.Join(input, "clip.mp4"), utc(2018, 7, 8, 9, 10, 11, 0))
	writeFile(t, filepath.Join(input, "readme.txt"), []byte("not media"))
	writeJPEG(t, filepath.Join(output, "2015", "02", "15", "organised.jpg"), "", "")
	writeJPEG(t, filepath.Join(input, sessionDirName, "sessions", "x", "link.jpg"), "", "")

	cfg := &Config{Output: output, MediaTypes: DefaultMediaTypes}
	files, err := ScanMediaFiles(input, cfg)
	if err != nil {
		t.Fatalf("ScanMediaFiles failed: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{"a", "b", "clip"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
			break
		}
	}
}

func TestScanMediaFiles_Errors(t *testing.T) {
	cfg := &Config{MediaTypes: DefaultMediaTypes}
	dir := t.TempDir()

	if _, err := ScanMediaFiles("  ", cfg); err == nil {
		t.Error("Expected error for blank input")
	}
	if _, err := ScanMediaFiles(filepath.Join(dir, "missing"), cfg); err == nil {
		t.Error("Expected error for missing input")
	}
	file := filepath.Join(dir, "file.jpg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ScanMediaFiles(file, cfg); err == nil {
		t.Error("Expected error when input is a file")
	}
}
