package services

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	FileTypeImage        = "image"
	FileTypeVideo        = "video"
	FileTypeAudio        = "audio"
	FileTypePDF          = "pdf"
	FileTypeDocument     = "document"
	FileTypeSpreadsheet  = "spreadsheet"
	FileTypePresentation = "presentation"
	FileTypeArchive      = "archive"
	FileTypeText         = "text"
	FileTypeOther        = "other"
)

var extensionFileTypes = map[string]string{
	".doc": FileTypeDocument, ".docx": FileTypeDocument, ".odt": FileTypeDocument, ".rtf": FileTypeDocument,
	".xls": FileTypeSpreadsheet, ".xlsx": FileTypeSpreadsheet, ".ods": FileTypeSpreadsheet, ".csv": FileTypeSpreadsheet,
	".ppt": FileTypePresentation, ".pptx": FileTypePresentation, ".odp": FileTypePresentation,
	".zip": FileTypeArchive, ".rar": FileTypeArchive, ".7z": FileTypeArchive, ".tar": FileTypeArchive, ".gz": FileTypeArchive,
	".txt": FileTypeText, ".md": FileTypeText,
}

// DetectMIME trusts a specific declared type and sniffs the content
// otherwise.
func DetectMIME(data []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if base, _, err := mime.ParseMediaType(declared); err == nil {
			return base
		}
	}

	detected := mimetype.Detect(data).String()
	if base, _, err := mime.ParseMediaType(detected); err == nil {
		return base
	}
	return "application/octet-stream"
}

// ClassifyFileType maps a MIME type, falling back to the file extension, to
// the short tag stored on each file.
func ClassifyFileType(mimeType, name string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileTypeAudio
	case mimeType == "application/pdf":
		return FileTypePDF
	case strings.Contains(mimeType, "wordprocessingml"), mimeType == "application/msword":
		return FileTypeDocument
	case strings.Contains(mimeType, "spreadsheetml"), mimeType == "application/vnd.ms-excel", mimeType == "text/csv":
		return FileTypeSpreadsheet
	case strings.Contains(mimeType, "presentationml"), mimeType == "application/vnd.ms-powerpoint":
		return FileTypePresentation
	case mimeType == "application/zip", mimeType == "application/x-7z-compressed", mimeType == "application/gzip", mimeType == "application/x-tar":
		return FileTypeArchive
	}

	if t, ok := extensionFileTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	if strings.HasPrefix(mimeType, "text/") {
		return FileTypeText
	}
	return FileTypeOther
}
