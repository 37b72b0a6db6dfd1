package testhelper

import (
	"os"
	"path/filepath"
	"testing"
)

// LoadTestdata loads a file from the caller's testdata directory.
func LoadTestdata(t testing.TB, filename string) []byte {
	t.Helper()

	testdataPath := filepath.Join("testdata", filename)

	data, err := os.ReadFile(testdataPath) //nolint:gosec // Test file paths are controlled
	if err != nil {
		t.Fatalf("Failed to load testdata file %s: %v", testdataPath, err)
	}

	return data
}

// LoadText loads a testdata file as a string.
func LoadText(t testing.TB, filename string) string {
	t.Helper()
	return string(LoadTestdata(t, filename))
}
