package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/VinMeld/complaint-portal/internal/validate"
)

var (
	ErrFileTooLarge      = errors.New("file exceeds the 10MB limit")
	ErrTotalSizeExceeded = errors.New("attachments exceed the 50MB total limit")
)

// DefaultViewportWidth is used when the config does not set one.
const DefaultViewportWidth = 1024

const (
	narrowViewport   = 750
	displayNameRunes = 15
)

var sizeUnits = []string{"Kb", "Mb", "Gb"}

// Attachment describes a selected file. Path is the handle to the bytes and
// is only opened when the submission is sent.
type Attachment struct {
	FileName    string `json:"fileName"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	SizeUnit    string `json:"sizeUnit"`
	DisplaySize string `json:"displaySize"`
	DisplayName string `json:"displayName"`
	Accepted    bool   `json:"accepted"`
}

// NewAttachment stats path and fills in the display fields for a viewport
// of the given width.
func NewAttachment(path string, viewportWidth int) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, err
	}
	if info.IsDir() {
		return Attachment{}, fmt.Errorf("%s is a directory", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Attachment{}, err
	}
	return describe(filepath.Base(path), abs, info.Size(), viewportWidth), nil
}

func describe(name, path string, size int64, viewportWidth int) Attachment {
	value, unit := displaySize(size)
	return Attachment{
		FileName:    name,
		Path:        path,
		Size:        size,
		SizeUnit:    unit,
		DisplaySize: strconv.FormatFloat(value, 'f', -1, 64) + " " + unit,
		DisplayName: displayName(name, viewportWidth),
		Accepted:    true,
	}
}

// displaySize divides by 1000 until the value is in [1, 1000). Sizes below
// one kilobyte stay fractional Kb.
func displaySize(size int64) (float64, string) {
	value := float64(size)
	unit := 0
	for value >= 1000 && unit < len(sizeUnits) {
		value /= 1000
		unit++
	}
	if unit == 0 {
		return value / 1000, sizeUnits[0]
	}
	return value, sizeUnits[unit-1]
}

func displayName(name string, viewportWidth int) string {
	if viewportWidth <= 0 {
		viewportWidth = DefaultViewportWidth
	}
	if viewportWidth >= narrowViewport || utf8.RuneCountInString(name) <= displayNameRunes {
		return name
	}
	return string([]rune(name)[:displayNameRunes]) + "…"
}

// admissible applies the per-file limit. The display unit is informational;
// the byte count decides, so exactly 10 MiB is accepted.
func admissible(a Attachment) error {
	if a.SizeUnit == "Gb" || !validate.FileSizeOK(a.Size) {
		return fmt.Errorf("%w: %s (%s)", ErrFileTooLarge, a.FileName, a.DisplaySize)
	}
	return nil
}
