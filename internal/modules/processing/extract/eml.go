package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"golang.org/x/net/html/charset"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}

func extractEML(data []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse email: %w", err)
	}

	subject, err := wordDecoder.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}

	header := textproto.MIMEHeader(msg.Header)
	var parts []string
	if err := collectPlainText(header, msg.Body, &parts); err != nil {
		return "", err
	}
	return withSubject(subject, strings.Join(parts, "\n")), nil
}

// collectPlainText walks the MIME tree depth first and appends the decoded
// text of every text/plain leaf.
func collectPlainText(header textproto.MIMEHeader, body io.Reader, out *[]string) error {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		// Missing or broken Content-Type means plain text per RFC 2045.
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read mime part: %w", err)
			}
			if err := collectPlainText(part.Header, part, out); err != nil {
				return err
			}
		}
	}

	if mediaType != "text/plain" {
		return nil
	}

	text, err := decodePart(body, header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) != "" {
		*out = append(*out, strings.TrimSpace(text))
	}
	return nil
}

func decodePart(body io.Reader, transferEncoding, cs string) (string, error) {
	r := body
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		r = quotedprintable.NewReader(body)
	}

	cs = strings.ToLower(strings.TrimSpace(cs))
	if cs != "" && cs != "utf-8" && cs != "utf8" && cs != "us-ascii" {
		converted, err := charset.NewReaderLabel(cs, r)
		if err != nil {
			return "", fmt.Errorf("charset %q: %w", cs, err)
		}
		r = converted
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode part: %w", err)
	}
	return decodeText(raw)
}
