package ai_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"rfpmanager/internal/ai"

	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractTextDOCX(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:r><w:t>Need 20 laptops</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t xml:space="preserve">Budget: </w:t></w:r><w:r><w:t>$50,000</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Item</w:t><w:tab/><w:t>Qty</w:t></w:r></w:p>`)

	text, err := ai.ExtractText(data, ai.MimeDOCX)
	require.NoError(t, err)
	require.Equal(t, "Need 20 laptops\nBudget: $50,000\nItem\tQty", text)
}

func TestExtractTextDOCXWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ai.ExtractText(buf.Bytes(), ai.MimeDOCX)
	require.Error(t, err)
}

func TestExtractTextPlain(t *testing.T) {
	text, err := ai.ExtractText([]byte("  plain RFP text \n"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	require.Equal(t, "plain RFP text", text)

	_, err = ai.ExtractText([]byte{0xff, 0xfe, 0xfd}, ai.MimeText)
	require.Error(t, err)
}

func TestExtractTextBrokenPDF(t *testing.T) {
	_, err := ai.ExtractText([]byte("%PDF-1.4 not really"), ai.MimePDF)
	require.Error(t, err)
}

func TestExtractTextUnsupported(t *testing.T) {
	_, err := ai.ExtractText([]byte("x"), "image/png")
	require.ErrorIs(t, err, ai.ErrUnsupportedType)
}
