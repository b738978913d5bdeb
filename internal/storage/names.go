package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// StampName derives the archive name for fileID:
//
//	{base}-{yyyy-MM-dd [HH mm ss fff]}{ext}
//
// ext keeps its leading dot and is empty when fileID has no extension.
func StampName(fileID string, t time.Time) string {
	ext := filepath.Ext(fileID)
	base := strings.TrimSuffix(fileID, ext)
	stamp := fmt.Sprintf("%s [%02d %02d %02d %03d]",
		t.Format("2006-01-02"), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
	return base + "-" + stamp + ext
}

// SettingsFileID returns the fileId holding default settings for class.
// The instance id does not participate: all instances of a class share one file.
func SettingsFileID(class, _ string) string {
	return class + "AppSettings.xml"
}

func validateFileID(fileID string) error {
	if fileID == "" || fileID == "." || fileID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	if strings.ContainsAny(fileID, `/\`) {
		return fmt.Errorf("%w: %q must be a basename", ErrInvalidFileID, fileID)
	}
	return nil
}
