// pkg/utils/system.go

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexmullins/zip"
)

// RunningAsRoot checks if the tool is running with root/sudo privileges
func RunningAsRoot() bool {
	return os.Geteuid() == 0
}

// CompressWithPassword compresses a file into an encrypted zip next to it
func CompressWithPassword(sourcePath string, password string) (string, error) {
	// Check if source exists
	if _, err := os.Stat(sourcePath); os.IsNotExist(err) {
		return "", fmt.Errorf("source file not found: %s", sourcePath)
	}

	zipPath := sourcePath + ".zip"

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		zipWriter.Close()
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	// Create encrypted entry
	writer, err := zipWriter.Encrypt(filepath.Base(sourcePath), password)
	if err != nil {
		zipWriter.Close()
		return "", fmt.Errorf("failed to create encrypted entry: %w", err)
	}

	if _, err := io.Copy(writer, sourceFile); err != nil {
		zipWriter.Close()
		return "", fmt.Errorf("failed to write to zip: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize zip: %w", err)
	}

	return zipPath, nil
}
