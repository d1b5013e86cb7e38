package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/VinMeld/complaint-portal/internal/models"
	"github.com/VinMeld/complaint-portal/internal/transport"
)

// WriteSubmission streams pkg and the captcha pair as multipart parts: one
// part per field in key order, general files under "files", the power of
// attorney under "poaFile", then the captcha pair.
func WriteSubmission(mw *multipart.Writer, pkg SubmissionPackage, sessionID, code string) error {
	keys := make([]string, 0, len(pkg.Fields))
	for k := range pkg.Fields {
		if !transport.IsCaptchaField(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, pkg.Fields[k]); err != nil {
			return err
		}
	}

	for _, a := range pkg.Attachments {
		if err := writeFile(mw, transport.FilesPart, a); err != nil {
			return err
		}
	}
	if pkg.POA != nil {
		if err := writeFile(mw, transport.POAFilePart, *pkg.POA); err != nil {
			return err
		}
	}

	if err := mw.WriteField(transport.CaptchaSessionIDField, sessionID); err != nil {
		return err
	}
	if err := mw.WriteField(transport.CaptchaCodeField, code); err != nil {
		return err
	}
	return mw.Close()
}

func writeFile(mw *multipart.Writer, part string, a Attachment) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("open attachment %s: %w", a.FileName, err)
	}
	defer f.Close()

	w, err := mw.CreateFormFile(part, a.FileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read attachment %s: %w", a.FileName, err)
	}
	return nil
}

// SubmitResult is either an accepted submission or the server's rejection text.
type SubmitResult struct {
	Accepted  *models.SubmitResponse
	Rejection string
}

// APIClient talks to the complaint API.
type APIClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Ping calls the root endpoint and returns its status line with the
// round-trip time.
func (c *APIClient) Ping(ctx context.Context) (string, time.Duration, error) {
	start := time.Now()
	var msg string
	if err := c.getJSON(ctx, "/", &msg); err != nil {
		return "", 0, err
	}
	return msg, time.Since(start), nil
}

func (c *APIClient) Courts(ctx context.Context) ([]models.Court, error) {
	var resp models.CourtsResponse
	if err := c.getJSON(ctx, "/courts", &resp); err != nil {
		return nil, err
	}
	return resp.CourtsList, nil
}

// Captcha issues a challenge and returns the session id and decoded PNG.
func (c *APIClient) Captcha(ctx context.Context) (string, []byte, error) {
	var resp models.CaptchaResponse
	if err := c.getJSON(ctx, "/captcha", &resp); err != nil {
		return "", nil, err
	}
	img, err := base64.StdEncoding.DecodeString(resp.CaptchaImage)
	if err != nil {
		return "", nil, fmt.Errorf("decode captcha image: %w", err)
	}
	return resp.SessionID, img, nil
}

func (c *APIClient) Report(ctx context.Context, month, year int) (*models.ReportResponse, error) {
	q := url.Values{}
	if month > 0 {
		q.Set("month", strconv.Itoa(month))
	}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	path := "/monthly-referral-report"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp models.ReportResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit sends the package. The body is streamed so attachments are never
// held in memory all at once.
func (c *APIClient) Submit(ctx context.Context, pkg SubmissionPackage, sessionID, code string) (*SubmitResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(WriteSubmission(mw, pkg, sessionID, code))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/submit-form", pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.Status, body)
	}

	var rejection string
	if json.Unmarshal(body, &rejection) == nil {
		return &SubmitResult{Rejection: rejection}, nil
	}
	var accepted models.SubmitResponse
	if err := json.Unmarshal(body, &accepted); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	return &SubmitResult{Accepted: &accepted}, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.Status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func apiError(status string, body []byte) error {
	var e models.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		if e.RequestID != "" {
			return fmt.Errorf("server returned %s: %s (request %s)", status, e.Error, e.RequestID)
		}
		return fmt.Errorf("server returned %s: %s", status, e.Error)
	}
	return fmt.Errorf("server returned %s: %s", status, bytes.TrimSpace(body))
}
