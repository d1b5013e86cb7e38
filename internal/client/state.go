package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/VinMeld/complaint-portal/internal/validate"
)

// ErrPOARequired is returned by ComposePackage when step 2 says the
// complaint is filed on someone's behalf and no power of attorney is set.
var ErrPOARequired = errors.New("power of attorney document required")

const (
	poaStep  = "2"
	poaField = "isComplaintOnBehalfOfSomeone"
)

// CachedCaptcha is the last issued challenge and, once solved, its code.
type CachedCaptcha struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code,omitempty"`
	ImagePath string `json:"imagePath,omitempty"`
}

// FormState holds every step's fields and both attachment partitions so
// that moving between steps never loses data.
type FormState struct {
	Steps       map[string]map[string]any `json:"steps"`
	Attachments []Attachment              `json:"attachments"`
	POA         *Attachment               `json:"poa,omitempty"`
	Step4Valid  bool                      `json:"step4Valid"`
	Captcha     *CachedCaptcha            `json:"captcha,omitempty"`
}

// SubmissionPackage is what the transport sends.
type SubmissionPackage struct {
	Fields      map[string]string
	Attachments []Attachment
	POA         *Attachment
}

func NewFormState() *FormState {
	return &FormState{Steps: make(map[string]map[string]any)}
}

// UpdateStep replaces the record of step id. Values must be strings or bools.
func (s *FormState) UpdateStep(id string, fields map[string]any) error {
	for k, v := range fields {
		switch v.(type) {
		case string, bool:
		default:
			return fmt.Errorf("step %s field %q: unsupported value type %T", id, k, v)
		}
	}
	s.Steps[id] = maps.Clone(fields)
	if id == poaStep {
		s.RecomputeStep4Validity()
	}
	return nil
}

// GetStep returns a copy of step id's record, or nil if none was stored.
func (s *FormState) GetStep(id string) map[string]any {
	rec, ok := s.Steps[id]
	if !ok {
		return nil
	}
	return maps.Clone(rec)
}

// ClearStep forgets step id.
func (s *FormState) ClearStep(id string) {
	delete(s.Steps, id)
	if id == poaStep {
		s.RecomputeStep4Validity()
	}
}

// AddAttachments admits a batch of general attachments. The whole batch is
// refused with ErrTotalSizeExceeded if it would push the partition past the
// total limit. Otherwise oversized files are skipped and reported with
// ErrFileTooLarge while the rest are appended in order.
func (s *FormState) AddAttachments(batch ...Attachment) ([]Attachment, error) {
	var total int64
	for _, a := range s.Attachments {
		total += a.Size
	}
	for _, a := range batch {
		total += a.Size
	}
	if !validate.TotalSizeOK(total) {
		return nil, ErrTotalSizeExceeded
	}

	var added []Attachment
	var errs []error
	for _, a := range batch {
		if err := admissible(a); err != nil {
			errs = append(errs, err)
			continue
		}
		s.Attachments = append(s.Attachments, a)
		added = append(added, a)
	}
	s.RecomputeStep4Validity()
	return added, errors.Join(errs...)
}

// RemoveAttachmentAt removes the general attachment at index i.
func (s *FormState) RemoveAttachmentAt(i int) (Attachment, error) {
	if i < 0 || i >= len(s.Attachments) {
		return Attachment{}, fmt.Errorf("no attachment at index %d", i)
	}
	removed := s.Attachments[i]
	s.Attachments = slices.Delete(s.Attachments, i, i+1)
	s.RecomputeStep4Validity()
	return removed, nil
}

// ListAttachments returns the general attachments in insertion order.
func (s *FormState) ListAttachments() []Attachment {
	return slices.Clone(s.Attachments)
}

// SetPoaAttachment fills the power-of-attorney slot.
func (s *FormState) SetPoaAttachment(a Attachment) error {
	if err := admissible(a); err != nil {
		return err
	}
	s.POA = &a
	s.RecomputeStep4Validity()
	return nil
}

func (s *FormState) ClearPoaAttachment() {
	s.POA = nil
	s.RecomputeStep4Validity()
}

func (s *FormState) GetPoaAttachment() *Attachment {
	if s.POA == nil {
		return nil
	}
	a := *s.POA
	return &a
}

// POARequired reports step 2's on-behalf flag.
func (s *FormState) POARequired() bool {
	switch v := s.Steps[poaStep][poaField].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// RecomputeStep4Validity re-derives whether the documents step is complete.
func (s *FormState) RecomputeStep4Validity() bool {
	s.Step4Valid = !s.POARequired() || s.POA != nil
	return s.Step4Valid
}

// ComposePackage merges all steps in step order, later steps winning on
// key collisions, and attaches both partitions.
func (s *FormState) ComposePackage() (SubmissionPackage, error) {
	if !s.RecomputeStep4Validity() {
		return SubmissionPackage{}, ErrPOARequired
	}
	fields := make(map[string]string)
	for _, id := range s.stepOrder() {
		for k, v := range s.Steps[id] {
			fields[k] = stringify(v)
		}
	}
	return SubmissionPackage{
		Fields:      fields,
		Attachments: s.ListAttachments(),
		POA:         s.GetPoaAttachment(),
	}, nil
}

func (s *FormState) stepOrder() []string {
	ids := slices.Collect(maps.Keys(s.Steps))
	slices.SortFunc(ids, func(a, b string) int {
		na, aerr := strconv.Atoi(a)
		nb, berr := strconv.Atoi(b)
		switch {
		case aerr == nil && berr == nil:
			return na - nb
		case aerr == nil:
			return -1
		case berr == nil:
			return 1
		}
		return strings.Compare(a, b)
	})
	return ids
}

func stringify(v any) string {
	switch v := v.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	return fmt.Sprint(v)
}

// LoadState reads the saved form state; a missing file yields an empty state.
func LoadState(path string) (*FormState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewFormState(), nil
		}
		return nil, err
	}
	st := NewFormState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse form state %s: %w", path, err)
	}
	if st.Steps == nil {
		st.Steps = make(map[string]map[string]any)
	}
	return st, nil
}

func SaveState(path string, st *FormState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ClearState removes the saved form state.
func ClearState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
