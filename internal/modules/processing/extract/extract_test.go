package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

// buildPDF assembles a minimal single-font PDF with one page per entry.
func buildPDF(pages ...string) []byte {
	var objects []string
	n := len(pages)
	fontID := 3 + 2*n

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func extract(t *testing.T, name string, data []byte) (string, error) {
	t.Helper()
	doc, ok := models.NewDocument(name, data)
	if !ok {
		t.Fatalf("unsupported test file %q", name)
	}
	return New(nil).Extract(context.Background(), doc)
}

func TestWhitespaceIsEmptyForEveryFormat(t *testing.T) {
	for _, name := range []string{"a.pdf", "a.eml", "a.msg", "a.txt"} {
		for _, payload := range []string{"", "   \n\t  "} {
			_, err := extract(t, name, []byte(payload))
			if !errors.Is(err, ErrEmptyContent) {
				t.Errorf("%s %q: err = %v, want ErrEmptyContent", name, payload, err)
			}
			if !errors.Is(err, apperr.ErrExtraction) {
				t.Errorf("%s: empty content must be an extraction error", name)
			}
		}
	}
}

func TestPDFPagesInOrder(t *testing.T) {
	text, err := extract(t, "report.PDF", buildPDF("First page", "Second page"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	first := strings.Index(text, "Page 1:")
	second := strings.Index(text, "Page 2:")
	if first < 0 || second < first {
		t.Fatalf("page headers out of order: %q", text)
	}
	if !strings.Contains(text, "First page") || !strings.Contains(text, "Second page") {
		t.Errorf("text = %q", text)
	}
}

func TestPDFWithBlankPagesIsEmpty(t *testing.T) {
	_, err := extract(t, "blank.pdf", buildPDF("", ""))
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v", err)
	}
}

func TestMalformedPDF(t *testing.T) {
	_, err := extract(t, "bad.pdf", []byte("%PDF-1.4 not really"))
	if err == nil || errors.Is(err, ErrEmptyContent) || !errors.Is(err, apperr.ErrExtraction) {
		t.Fatalf("err = %v", err)
	}
}

const multipartEmail = "From: a@example.com\r\n" +
	"Subject: =?UTF-8?B?UXVhcnRlcmx5IHVwZGF0ZQ==?=\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"UmV2ZW51ZSBncmV3Lg==\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>ignored</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain; charset=iso-8859-1\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Caf=E9 opens soon.\r\n" +
	"--outer--\r\n"

func TestEMLCollectsPlainTextDepthFirst(t *testing.T) {
	text, err := extract(t, "mail.eml", []byte(multipartEmail))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Subject: Quarterly update\n\nRevenue grew.\nCafé opens soon."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestEMLSinglePart(t *testing.T) {
	raw := "Subject: Hi\r\n\r\nJust a note.\r\n"
	text, err := extract(t, "note.eml", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if text != "Subject: Hi\n\nJust a note." {
		t.Errorf("text = %q", text)
	}
}

func TestEMLWithoutBodyIsEmpty(t *testing.T) {
	_, err := extract(t, "empty.eml", []byte("Subject: Only a subject\r\n\r\n   \r\n"))
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v", err)
	}
}

func TestTXTLatin1Fallback(t *testing.T) {
	text, err := extract(t, "notes.txt", []byte{'c', 'a', 'f', 0xE9})
	if err != nil {
		t.Fatal(err)
	}
	if text != "café" {
		t.Errorf("text = %q", text)
	}

	text, err = extract(t, "bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("  hello  ")...))
	if err != nil || text != "hello" {
		t.Errorf("bom text = %q, %v", text, err)
	}
}

func TestMSGRejectsNonContainer(t *testing.T) {
	_, err := extract(t, "mail.msg", []byte("definitely not a compound file"))
	if err == nil || !errors.Is(err, apperr.ErrExtraction) || errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v", err)
	}
}

func TestMSGPropertyPrefersUnicode(t *testing.T) {
	streams := map[string][]byte{
		streamSubjectUnicode: {'H', 0, 'i', 0, 0, 0},
		streamSubjectANSI:    []byte("ignored"),
		streamBodyANSI:       []byte("Body text\x00"),
	}
	subject, err := msgProperty(streams, streamSubjectUnicode, streamSubjectANSI)
	if err != nil || subject != "Hi" {
		t.Errorf("subject = %q, %v", subject, err)
	}
	body, err := msgProperty(streams, streamBodyUnicode, streamBodyANSI)
	if err != nil || body != "Body text" {
		t.Errorf("body = %q, %v", body, err)
	}
	if got := withSubject(subject, body); got != "Subject: Hi\n\nBody text" {
		t.Errorf("withSubject = %q", got)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	doc := models.Document{Filename: "a.docx", Format: "docx", Data: []byte("x")}
	_, err := New(nil).Extract(context.Background(), doc)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
}

func TestExtractDirCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":     "alpha",
		"b.eml":     "Subject: B\r\n\r\nbeta\r\n",
		"c.txt":     "   ",
		"skip.docx": "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := New(nil).ExtractDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Processed) != 2 || result.Processed[0].Text != "alpha" {
		t.Errorf("processed = %+v", result.Processed)
	}
	if len(result.Failed) != 1 || !strings.HasSuffix(result.Failed[0].Path, "c.txt") {
		t.Errorf("failed = %+v", result.Failed)
	}

	if _, err := New(nil).ExtractDir(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("missing dir should fail")
	}
}
