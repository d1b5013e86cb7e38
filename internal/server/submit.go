package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/VinMeld/complaint-portal/internal/models"
	"github.com/VinMeld/complaint-portal/internal/staging"
	"github.com/VinMeld/complaint-portal/internal/transport"
	"github.com/VinMeld/complaint-portal/internal/validate"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	// maxFieldBytes caps a single text part.
	maxFieldBytes = 1 << 20
	// maxBodyBytes leaves room for the general files, the power-of-attorney
	// document and the text parts.
	maxBodyBytes = validate.MaxTotalSize + validate.MaxFileSize + 8<<20

	submitSuccessMessage = "Form submitted successfully!"
	invalidCaptcha       = "Invalid captcha."
	totalTooLarge        = "Total attachment size exceeds the maximum allowed."
	tooManyFiles         = "Too many files."
)

// spooledFile is an uploaded part parked in a temp file until the whole
// request has been read.
type spooledFile struct {
	part     string
	name     string
	path     string
	size     int64
	oversize bool
}

type submission struct {
	fields map[string]string
	files  []spooledFile
	tmpDir string
}

func (s *submission) cleanup() {
	if s.tmpDir != "" {
		_ = os.RemoveAll(s.tmpDir)
	}
}

// SubmitForm is the submission pipeline: presence, extension policy, size
// and count policy, captcha consume, staging, referral bookkeeping, archive.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	sub, err := readSubmission(r)
	defer sub.cleanup()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.Logger.Warn("submission body too large", "limit", humanize.IBytes(uint64(tooBig.Limit)))
			reject(w, totalTooLarge)
			return nil
		}
		h.Logger.Warn("malformed submission", "error", err)
		badRequest(w, "invalid multipart form")
		return nil
	}

	sessionID := sub.fields[transport.CaptchaSessionIDField]
	code := sub.fields[transport.CaptchaCodeField]
	if strings.TrimSpace(sessionID) == "" {
		badRequest(w, transport.CaptchaSessionIDField+" is required.")
		return nil
	}
	if strings.TrimSpace(code) == "" {
		badRequest(w, transport.CaptchaCodeField+" is required.")
		return nil
	}

	if msg, ok := h.checkAttachments(sub.files); !ok {
		h.Logger.Info("submission rejected", "reason", msg)
		reject(w, msg)
		return nil
	}

	valid, err := h.Captcha.ValidateAndConsume(r.Context(), sessionID, code)
	if err != nil {
		return fmt.Errorf("validate captcha: %w", err)
	}
	if !valid {
		h.Logger.Info("submission rejected", "reason", "invalid captcha")
		reject(w, invalidCaptcha)
		return nil
	}

	submissionID := uuid.New().String()
	dir, err := h.Staging.CreateStaging(submissionID)
	if err != nil {
		return err
	}
	saved, err := h.admitAll(dir, sub.files)
	if err != nil {
		if derr := h.Staging.Discard(dir); derr != nil {
			h.Logger.Error("discard staging directory", "submission_id", submissionID, "error", derr)
		}
		return err
	}

	h.recordReferral(r.Context(), sub.fields["courthouse"], submissionID)
	h.archive(r.Context(), dir, saved)

	form := make(map[string]string, len(sub.fields))
	for k, v := range sub.fields {
		if !transport.IsCaptchaField(k) {
			form[k] = v
		}
	}
	h.Logger.Info("submission accepted",
		"submission_id", submissionID,
		"files", len(saved),
		"bytes", humanize.IBytes(uint64(totalSize(sub.files))),
	)
	writeJSON(w, http.StatusOK, models.SubmitResponse{
		Message:       submitSuccessMessage,
		SubmissionID:  submissionID,
		FormData:      form,
		UploadedFiles: saved,
	})
	return nil
}

// checkAttachments applies the extension policy first, then per-file size,
// general total and file count. The first violation wins.
func (h *Handler) checkAttachments(files []spooledFile) (string, bool) {
	for _, f := range files {
		if !validate.AllowedExtension(f.name) {
			return validate.IllegalExtensionMessage(f.name), false
		}
	}
	var general int64
	for _, f := range files {
		if f.oversize || !validate.FileSizeOK(f.size) {
			return validate.FileTooLargeMessage(f.name), false
		}
		if f.part == transport.FilesPart {
			general += f.size
		}
	}
	if !validate.TotalSizeOK(general) {
		return totalTooLarge, false
	}
	if h.MaxFiles > 0 && len(files) > h.MaxFiles {
		return tooManyFiles, false
	}
	return "", true
}

func (h *Handler) admitAll(dir *staging.Directory, files []spooledFile) ([]string, error) {
	saved := make([]string, 0, len(files))
	for _, f := range files {
		name, err := admitSpooled(h.Staging, dir, f)
		if err != nil {
			return nil, err
		}
		saved = append(saved, name)
	}
	return saved, nil
}

func admitSpooled(store *staging.Store, dir *staging.Directory, f spooledFile) (string, error) {
	src, err := os.Open(f.path)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return store.Admit(dir, f.name, src)
}

func (h *Handler) recordReferral(ctx context.Context, courthouse, submissionID string) {
	if h.DB == nil || strings.TrimSpace(courthouse) == "" {
		return
	}
	if err := h.DB.RecordReferral(ctx, courthouse, submissionID, h.Now()); err != nil {
		h.Logger.Warn("record referral", "submission_id", submissionID, "error", err)
	}
}

func (h *Handler) archive(ctx context.Context, dir *staging.Directory, names []string) {
	if h.Archiver == nil || len(names) == 0 {
		return
	}
	if err := h.Archiver.Archive(ctx, dir, names); err != nil {
		h.Logger.Error("archive submission", "submission_id", dir.ID, "error", err)
	}
}

// readSubmission streams the multipart body, keeping text fields in memory
// and spooling file parts to a temp directory in receipt order. Empty file
// inputs are dropped.
func readSubmission(r *http.Request) (*submission, error) {
	sub := &submission{fields: make(map[string]string)}
	mr, err := r.MultipartReader()
	if err != nil {
		return sub, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return sub, nil
		}
		if err != nil {
			return sub, err
		}

		name := part.FormName()
		isFile := name == transport.FilesPart || name == transport.POAFilePart
		if part.FileName() == "" {
			if isFile {
				// An unused file input arrives with filename="".
				if _, err := io.Copy(io.Discard, part); err != nil {
					return sub, err
				}
				continue
			}
			raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				return sub, err
			}
			if len(raw) > maxFieldBytes {
				return sub, fmt.Errorf("field %q too large", name)
			}
			sub.fields[name] = string(raw)
			continue
		}
		if !isFile {
			continue
		}

		f, err := sub.spool(name, part.FileName(), part)
		if err != nil {
			return sub, err
		}
		if f.size > 0 || f.oversize {
			sub.files = append(sub.files, f)
		}
	}
}

func (s *submission) spool(part, name string, r io.Reader) (spooledFile, error) {
	if s.tmpDir == "" {
		dir, err := os.MkdirTemp("", "submission-*")
		if err != nil {
			return spooledFile{}, err
		}
		s.tmpDir = dir
	}
	tmp, err := os.CreateTemp(s.tmpDir, "part-*")
	if err != nil {
		return spooledFile{}, err
	}
	defer tmp.Close()

	n, err := io.Copy(tmp, io.LimitReader(r, validate.MaxFileSize+1))
	if err != nil {
		return spooledFile{}, err
	}
	oversize := n > validate.MaxFileSize
	if oversize {
		// drain the rest so the next part can be read
		if _, err := io.Copy(io.Discard, r); err != nil {
			return spooledFile{}, err
		}
	}
	return spooledFile{
		part:     part,
		name:     name,
		path:     tmp.Name(),
		size:     n,
		oversize: oversize,
	}, nil
}

func totalSize(files []spooledFile) int64 {
	var n int64
	for _, f := range files {
		n += f.size
	}
	return n
}
