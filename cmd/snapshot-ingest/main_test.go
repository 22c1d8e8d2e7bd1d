package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadSources(t *testing.T) {
	input := "# gate cameras\n/data/a.jpg\n\n  https://cdn.example.com/b.jpg  \n#/data/skip.jpg\n"
	got, err := readSources(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readSources: %v", err)
	}
	want := []string{"/data/a.jpg", "https://cdn.example.com/b.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readSources() = %v, want %v", got, want)
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.txt")
	if err := os.WriteFile(path, []byte("one.jpg\ntwo.jpg\n"), 0o600); err != nil {
		t.Fatalf("write list: %v", err)
	}

	fromFile, err := loadSources(path, []string{"ignored.jpg"})
	if err != nil {
		t.Fatalf("loadSources: %v", err)
	}
	if len(fromFile) != 2 {
		t.Errorf("from file = %v", fromFile)
	}

	fromArgs, err := loadSources("", []string{" x.jpg ", ""})
	if err != nil {
		t.Fatalf("loadSources: %v", err)
	}
	if !reflect.DeepEqual(fromArgs, []string{"x.jpg"}) {
		t.Errorf("from args = %v", fromArgs)
	}

	if _, err := loadSources(filepath.Join(t.TempDir(), "missing.txt"), nil); err == nil {
		t.Error("expected error for missing list")
	}
}
