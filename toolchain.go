package office2png

import (
	"fmt"
	"os"
	"os/exec"
	"slices"

	"github.com/alnah/go-office2png/internal/fileutil"
)

// supportedExtensions lists the input formats LibreOffice exports to PDF
// through the writer and calc filters.
var supportedExtensions = []string{"docx", "doc", "odt", "rtf", "xlsx", "xls", "ods"}

// sofficeCandidates are well-known install locations, checked before $PATH.
var sofficeCandidates = []string{
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
	"/usr/bin/soffice",
	"/usr/lib/libreoffice/program/soffice",
	"/opt/libreoffice/program/soffice",
	"/snap/bin/libreoffice.soffice",
	`C:\Program Files\LibreOffice\program\soffice.exe`,
}

// sofficeNames are looked up in $PATH when no candidate exists.
var sofficeNames = []string{"soffice", "libreoffice"}

// SupportedExtensions returns the supported input extensions, without dots.
func SupportedExtensions() []string {
	return slices.Clone(supportedExtensions)
}

// IsSupportedExtension reports whether ext is a supported input format.
// Comparison is case-insensitive and a leading dot is ignored.
func IsSupportedExtension(ext string) bool {
	return slices.Contains(supportedExtensions, fileutil.NormalizeExtension(ext))
}

// LookupSoffice resolves the LibreOffice binary.
// An explicit path must exist; otherwise well-known locations are tried,
// then soffice and libreoffice in $PATH.
func LookupSoffice(explicit string) (string, error) {
	if explicit != "" {
		if fileutil.FileExists(explicit) {
			return explicit, nil
		}
		return "", fmt.Errorf("%w: %s does not exist", ErrToolchainNotFound, explicit)
	}

	for _, candidate := range sofficeCandidates {
		if fileutil.FileExists(candidate) {
			return candidate, nil
		}
	}

	for _, name := range sofficeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: searched %d locations and $PATH", ErrToolchainNotFound, len(sofficeCandidates))
}

// ToolchainPath returns the resolved LibreOffice binary, honoring
// OFFICE2PNG_SOFFICE when set.
func ToolchainPath() (string, error) {
	return LookupSoffice(os.Getenv("OFFICE2PNG_SOFFICE"))
}

// ToolchainAvailable reports whether LibreOffice can be found.
func ToolchainAvailable() bool {
	_, err := ToolchainPath()
	return err == nil
}
