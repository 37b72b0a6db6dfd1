package docsource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/pkg/errors"
)

// writePDF writes a minimal PDF with one Helvetica text line per page.
func writePDF(t *testing.T, path string, lines ...string) {
	t.Helper()

	var objects []string
	kids := ""
	pageObjs := make([]int, len(lines))
	next := 4 // 1 catalog, 2 pages, 3 font
	for i := range lines {
		pageObjs[i] = next
		kids += fmt.Sprintf("%d 0 R ", next)
		next += 2
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(lines)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, line := range lines {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageObjs[i]+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "850.md")
	require.NoError(t, os.WriteFile(path, []byte("# 850 Purchase Order\nBEG Beginning Segment\n"), 0o600))

	got, err := New().ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# 850 Purchase Order\nBEG Beginning Segment\n", got)
}

func TestExtractPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "850.pdf")
	writePDF(t, path, "BEG Beginning Segment", "PO1 Baseline Item Data")

	got, err := New().ExtractText(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, got, "--- Page 1 ---")
	assert.Contains(t, got, "--- Page 2 ---")
	assert.Contains(t, got, "BEG")
	assert.Contains(t, got, "PO1")
	assert.Less(t, bytes.Index([]byte(got), []byte("BEG")), bytes.Index([]byte(got), []byte("--- Page 2 ---")))
}

func TestExtractPDFCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "850.pdf")
	writePDF(t, path, "BEG")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ExtractText(ctx, path)
	assert.True(t, errors.IsCanceled(err))
	assert.ErrorIs(t, err, errors.ErrDocumentRead)
}

func TestExtractTextErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte(" \n\t"), 0o600))
	docx := filepath.Join(dir, "spec.docx")
	require.NoError(t, os.WriteFile(docx, []byte("PK"), 0o600))
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("not a pdf"), 0o600))

	tests := []struct {
		name     string
		path     string
		notFound bool
	}{
		{name: "missing", path: filepath.Join(dir, "nope.txt"), notFound: true},
		{name: "directory", path: dir},
		{name: "unsupported", path: docx},
		{name: "empty", path: empty},
		{name: "broken pdf", path: broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().ExtractText(context.Background(), tt.path)
			require.Error(t, err)

			var docErr *errors.DocumentReadError
			require.ErrorAs(t, err, &docErr)
			assert.Equal(t, tt.path, docErr.Path)
			assert.True(t, errors.IsFatal(err))
			assert.Equal(t, tt.notFound, errors.IsNotFound(err))
		})
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf("Spec.PDF")
	assert.True(t, ok)
	assert.Equal(t, KindPDF, kind)

	kind, ok = KindOf("notes.markdown")
	assert.True(t, ok)
	assert.Equal(t, KindText, kind)

	_, ok = KindOf("grid.xlsx")
	assert.False(t, ok)
}
