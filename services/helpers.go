package services

import (
	"fmt"
	"strings"
	"time"
)

func validateTournamentDates(start, end, deadline time.Time) error {
	if start.Before(time.Now()) {
		return ErrTournamentStartInPast
	}
	if !start.Before(end) {
		return ErrTournamentInvalidDates
	}
	if deadline.After(start) {
		return ErrTournamentInvalidDeadline
	}
	return nil
}

func extensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: %q", contentType)
	}
}
