package validation

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/DieForGlory/process-peredach/src/logger"
)

// AllowedSurveyContentTypes is a map for quick lookup of allowed
// client-declared MIME types for the survey workbook upload.
var AllowedSurveyContentTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel": true, // some browsers still declare xlsx this way
	"application/octet-stream": true, // fallback, magic bytes checked separately
}

// AllowedScanContentTypes is the allowlist for uploaded act/defect-list scans.
var AllowedScanContentTypes = map[string]bool{
	"application/pdf":          true,
	"application/octet-stream": true,
}

// ValidateSurveyContentType checks the Content-Type header declared by the
// client for a survey upload.
func ValidateSurveyContentType(contentType string) error {
	normalized := strings.ToLower(strings.Split(contentType, ";")[0])
	if !AllowedSurveyContentTypes[normalized] {
		logger.L.Warn("Disallowed client-declared Content-Type for survey upload", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for survey upload", contentType)
	}
	return nil
}

// ValidateScanContentType checks the Content-Type header declared by the
// client for a scan upload.
func ValidateScanContentType(contentType string) error {
	normalized := strings.ToLower(strings.Split(contentType, ";")[0])
	if !AllowedScanContentTypes[normalized] {
		logger.L.Warn("Disallowed client-declared Content-Type for scan upload", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for scan upload", contentType)
	}
	return nil
}

// ValidateXLSXMagicBytes checks that the file starts with the zip signature
// every xlsx carries, then resets the read pointer for the actual parser.
func ValidateXLSXMagicBytes(file io.ReadSeeker) error {
	return validateMagicBytes(file, []byte{0x50, 0x4B, 0x03, 0x04}, "xlsx")
}

// ValidatePDFMagicBytes checks the %PDF- signature of an uploaded scan.
func ValidatePDFMagicBytes(file io.ReadSeeker) error {
	return validateMagicBytes(file, []byte("%PDF-"), "pdf")
}

func validateMagicBytes(file io.ReadSeeker, signature []byte, kind string) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}

	buffer := make([]byte, len(signature))
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("failed to read file for content checking: %w", err)
	}

	// Reset the file read pointer so the actual consumer reads the full file.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	if n < len(signature) || !bytes.Equal(buffer[:n], signature) {
		logger.L.Warn("File content does not match expected signature", "expected", kind)
		return fmt.Errorf("file content is not a valid %s file", kind)
	}
	return nil
}
