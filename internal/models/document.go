package models

import (
	"path/filepath"
	"strings"
)

// Format is the declared type of an uploaded document.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatEML Format = "eml"
	FormatMSG Format = "msg"
	FormatTXT Format = "txt"
)

// Document is raw upload bytes plus the format derived from the filename.
type Document struct {
	Filename string
	Format   Format
	Data     []byte
}

// FormatFromFilename maps a file extension onto a supported format.
func FormatFromFilename(name string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(name))), ".")
	switch Format(ext) {
	case FormatPDF, FormatEML, FormatMSG, FormatTXT:
		return Format(ext), true
	}
	return "", false
}

// NewDocument builds a Document, resolving the format from the filename.
func NewDocument(filename string, data []byte) (Document, bool) {
	format, ok := FormatFromFilename(filename)
	return Document{Filename: filename, Format: format, Data: data}, ok
}

// IsEmail reports whether the format is one of the two email formats.
func (f Format) IsEmail() bool { return f == FormatEML || f == FormatMSG }
