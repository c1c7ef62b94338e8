package image

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// removeStaleFormats deletes files that share keep's base name but carry a
// different image extension, so an entity never has two stored images.
func removeStaleFormats(keep string, logger *slog.Logger) {
	ext := strings.ToLower(filepath.Ext(keep))
	base := strings.TrimSuffix(keep, filepath.Ext(keep))
	for _, alt := range imageExtensions {
		if alt == ext {
			continue
		}
		path := base + alt
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("removing stale image", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("removed stale image", slog.String("path", path), slog.String("replaced_by", keep))
	}
}
