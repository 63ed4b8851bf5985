package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"
)

// MAPI property streams stored at the root of an Outlook .msg container.
// Suffix 001F is UTF-16LE, 001E is 8-bit.
const (
	streamSubjectUnicode = "__substg1.0_0037001F"
	streamSubjectANSI    = "__substg1.0_0037001E"
	streamBodyUnicode    = "__substg1.0_1000001F"
	streamBodyANSI       = "__substg1.0_1000001E"
)

func extractMSG(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open msg: %w", err)
	}

	streams := make(map[string][]byte, 4)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if len(entry.Path) != 0 {
			continue // attachments and recipients live in sub-storages
		}
		switch entry.Name {
		case streamSubjectUnicode, streamSubjectANSI, streamBodyUnicode, streamBodyANSI:
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(entry, buf); err != nil {
				return "", fmt.Errorf("read %s: %w", entry.Name, err)
			}
			streams[entry.Name] = buf
		}
	}

	subject, err := msgProperty(streams, streamSubjectUnicode, streamSubjectANSI)
	if err != nil {
		return "", err
	}
	body, err := msgProperty(streams, streamBodyUnicode, streamBodyANSI)
	if err != nil {
		return "", err
	}
	return withSubject(subject, body), nil
}

func msgProperty(streams map[string][]byte, unicodeName, ansiName string) (string, error) {
	if raw, ok := streams[unicodeName]; ok {
		return decodeUTF16(raw)
	}
	if raw, ok := streams[ansiName]; ok {
		return decodeText(bytes.TrimRight(raw, "\x00"))
	}
	return "", nil
}

func decodeUTF16(raw []byte) (string, error) {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}
