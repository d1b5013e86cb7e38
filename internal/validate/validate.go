// Package validate provides the acceptance rules shared by the API and the CLI.
package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/VinMeld/complaint-portal/internal/models"
)

// Attachment limits.
const (
	MaxFileSize  int64 = 10 * 1024 * 1024
	MaxTotalSize int64 = 50 * 1024 * 1024
)

var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".png": {}, ".jpeg": {}, ".jpg": {},
	".gif": {}, ".ogg": {}, ".mp4": {}, ".mp3": {}, ".msg": {},
}

// AllowedExtension checks the file name's extension against the allow-list (case insensitive).
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := allowedExtensions[ext]
	return ok
}

// IllegalExtensionMessage is the application-level rejection for a disallowed file.
func IllegalExtensionMessage(name string) string {
	return fmt.Sprintf("File '%s' has an illegal file extension.", name)
}

// FileTooLargeMessage is the application-level rejection for an oversized file.
func FileTooLargeMessage(name string) string {
	return fmt.Sprintf("File '%s' exceeds the maximum file size.", name)
}

// FileSizeOK checks a single attachment against MaxFileSize.
func FileSizeOK(size int64) bool {
	return size >= 0 && size <= MaxFileSize
}

// TotalSizeOK checks the sum of general attachments against MaxTotalSize.
func TotalSizeOK(total int64) bool {
	return total <= MaxTotalSize
}

func lengthBetween(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n < min || n > max {
		return fmt.Errorf("%s must be between %d and %d characters", field, min, max)
	}
	return nil
}

// ContactDetails checks the lengths of the step 3 reference fields.
func ContactDetails(c models.ContactDetails) error {
	validators := []func() error{
		func() error { return lengthBetween("courtCaseNumber", strings.TrimSpace(c.CourtCaseNumber), 1, 100) },
		func() error { return lengthBetween("contactDescription", c.ContactDescription, 1, 7000) },
		func() error { return lengthBetween("courthouse", strings.TrimSpace(c.Courthouse), 1, 100) },
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// Survey checks the optional satisfaction survey payload.
func Survey(s models.Survey) error {
	if strings.TrimSpace(s.UserToken) == "" {
		return errors.New("userToken is required")
	}
	if s.Satisfaction < 1 || s.Satisfaction > 5 {
		return errors.New("satisfaction must be between 1 and 5")
	}
	if s.EaseOfUse < 1 || s.EaseOfUse > 5 {
		return errors.New("easeOfUse must be between 1 and 5")
	}
	if utf8.RuneCountInString(s.Comments) > 2000 {
		return errors.New("comments must be at most 2000 characters")
	}
	return nil
}

// ReportPeriod checks a requested report month against the current month.
func ReportPeriod(month, year int, now time.Time) error {
	if month < 1 || month > 12 {
		return errors.New("Month must be between 1 and 12")
	}
	if year < 2000 {
		return errors.New("Year must be between 2000 and current year")
	}
	if year > now.Year() || (year == now.Year() && month > int(now.Month())) {
		return fmt.Errorf("Cannot request report for future months. Current month is %d/%d", int(now.Month()), now.Year())
	}
	return nil
}
