package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePDF builds an uncompressed PDF with n text pages and a correct xref table.
func samplePDF(n int) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // pages tree, filled below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var kids []string
	for i := 0; i < n; i++ {
		pageNum := len(objs) + 1
		contentNum := pageNum + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentNum),
		)
		stream := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET", i+1)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestSplitter_OnePDFPerPage(t *testing.T) {
	pages, err := Splitter{}.Split(context.Background(), samplePDF(5))
	require.NoError(t, err)
	require.Len(t, pages, 5)
	for i, p := range pages {
		n, err := api.PageCount(bytes.NewReader(p), relaxedConfig())
		require.NoError(t, err, "page %d", i)
		assert.Equal(t, 1, n)
	}
}

func TestSplitter_RejectsGarbage(t *testing.T) {
	_, err := Splitter{}.Split(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)
}

func TestAnnotator_KeepsPages(t *testing.T) {
	out, err := Annotator{}.Annotate(context.Background(), samplePDF(2), map[string]string{
		"Title":    "2024-01-31_Stmt_First Bank",
		"Keywords": "Bank Statements",
		"Subject":  "  ",
	})
	require.NoError(t, err)
	n, err := api.PageCount(bytes.NewReader(out), relaxedConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImages_TextOnlyPage(t *testing.T) {
	paths, err := Images(samplePDF(1), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, paths)
}
