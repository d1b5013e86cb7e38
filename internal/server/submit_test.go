package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/VinMeld/complaint-portal/internal/captcha"
	"github.com/VinMeld/complaint-portal/internal/db"
	"github.com/VinMeld/complaint-portal/internal/models"
	"github.com/VinMeld/complaint-portal/internal/staging"
	"github.com/VinMeld/complaint-portal/internal/transport"
)

const testCode = "K7PQ2M"

type fakeRepo struct {
	mu        sync.Mutex
	courts    []models.Court
	surveys   map[string]models.Survey
	referrals []string
	report    []models.MonthlyReferralReport
	reportErr error
}

func (f *fakeRepo) Courts(context.Context) ([]models.Court, error) {
	return f.courts, nil
}

func (f *fakeRepo) SubmitSurvey(_ context.Context, s models.Survey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.surveys == nil {
		f.surveys = make(map[string]models.Survey)
	}
	if _, ok := f.surveys[s.UserToken]; ok {
		return db.ErrDuplicateSurvey
	}
	f.surveys[s.UserToken] = s
	return nil
}

func (f *fakeRepo) RecordReferral(_ context.Context, department, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referrals = append(f.referrals, department)
	return nil
}

func (f *fakeRepo) MonthlyReferralReport(context.Context, int, int) ([]models.MonthlyReferralReport, error) {
	return f.report, f.reportErr
}

type recordingArchiver struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, _ *staging.Directory, names []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, names)
	return a.err
}

type testEnv struct {
	h       *Handler
	root    string
	repo    *fakeRepo
	archive *recordingArchiver
	captcha *captcha.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	store := captcha.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })

	svc := captcha.NewService(store, nil, captcha.WithCodeSource(func() (string, error) { return testCode, nil }))
	repo := &fakeRepo{}
	arch := &recordingArchiver{}
	h := NewHandler(svc, staging.NewStore(root), repo)
	h.Archiver = arch
	h.Now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return &testEnv{h: h, root: root, repo: repo, archive: arch, captcha: svc}
}

func (e *testEnv) issue(t *testing.T) string {
	t.Helper()
	ch, err := e.captcha.Issue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return ch.SessionID
}

type upload struct {
	part string
	name string
	data []byte
}

func multipartBody(t *testing.T, fields [][2]string, files []upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			t.Fatal(err)
		}
	}
	for _, u := range files {
		fw, err := mw.CreateFormFile(u.part, u.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(u.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) submit(t *testing.T, fields [][2]string, files []upload) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/submit-form", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func decodeString(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var s string
	if err := json.NewDecoder(rr.Body).Decode(&s); err != nil {
		t.Fatalf("expected JSON string body: %v", err)
	}
	return s
}

func stagingDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func TestSubmitHappyPathAndReplay(t *testing.T) {
	env := newTestEnv(t)
	sid := env.issue(t)
	fields := [][2]string{
		{"firstName", "A"},
		{"courthouse", "בית משפט א"},
		{transport.CaptchaSessionIDField, sid},
		{transport.CaptchaCodeField, testCode},
	}
	files := []upload{{transport.FilesPart, "note.pdf", bytes.Repeat([]byte("x"), 1024)}}

	rr := env.submit(t, fields, files)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp models.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "Form submitted successfully!" {
		t.Errorf("Message = %q", resp.Message)
	}
	if len(resp.UploadedFiles) != 1 || resp.UploadedFiles[0] != "note.pdf" {
		t.Errorf("UploadedFiles = %v", resp.UploadedFiles)
	}
	if resp.FormData["firstName"] != "A" || resp.FormData["courthouse"] != "בית משפט א" {
		t.Errorf("FormData = %v", resp.FormData)
	}
	if _, ok := resp.FormData[transport.CaptchaCodeField]; ok {
		t.Error("captcha code echoed in FormData")
	}

	data, err := os.ReadFile(filepath.Join(env.root, resp.SubmissionID, "note.pdf"))
	if err != nil || len(data) != 1024 {
		t.Fatalf("staged file: %d bytes, %v", len(data), err)
	}
	if len(env.repo.referrals) != 1 || env.repo.referrals[0] != "בית משפט א" {
		t.Errorf("referrals = %v", env.repo.referrals)
	}
	if len(env.archive.calls) != 1 {
		t.Errorf("archive calls = %d", len(env.archive.calls))
	}

	rr = env.submit(t, fields, files)
	if rr.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rr.Code)
	}
	if got := decodeString(t, rr); got != "Invalid captcha." {
		t.Errorf("replay body = %q", got)
	}
	if n := len(stagingDirs(t, env.root)); n != 1 {
		t.Errorf("staging dirs = %d, want 1", n)
	}
}

func TestSubmitIllegalExtension(t *testing.T) {
	env := newTestEnv(t)
	sid := env.issue(t)
	fields := [][2]string{
		{transport.CaptchaSessionIDField, sid},
		{transport.CaptchaCodeField, testCode},
	}
	rr := env.submit(t, fields, []upload{{transport.FilesPart, "malware.exe", []byte("MZ")}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeString(t, rr); got != "File 'malware.exe' has an illegal file extension." {
		t.Errorf("body = %q", got)
	}
	if dirs := stagingDirs(t, env.root); len(dirs) != 0 {
		t.Errorf("staging dirs created: %v", dirs)
	}

	// The captcha was not consumed by the rejected attempt.
	rr = env.submit(t, fields, []upload{{transport.FilesPart, "ok.pdf", []byte("%PDF")}})
	var resp models.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || len(resp.UploadedFiles) != 1 {
		t.Errorf("retry after rejection failed: %v %+v", err, resp)
	}
}

func TestSubmitMissingCaptchaFields(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		fields [][2]string
		want   string
	}{
		{"no session", [][2]string{{transport.CaptchaCodeField, testCode}}, "captchaSessionId is required."},
		{"empty session", [][2]string{{transport.CaptchaSessionIDField, ""}, {transport.CaptchaCodeField, testCode}}, "captchaSessionId is required."},
		{"no code", [][2]string{{transport.CaptchaSessionIDField, "abc"}}, "captchaCode is required."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.submit(t, tc.fields, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			var body models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error != tc.want {
				t.Errorf("error = %q, want %q", body.Error, tc.want)
			}
		})
	}
}

func TestSubmitExtensionCaseAndSizeBoundary(t *testing.T) {
	env := newTestEnv(t)
	sid := env.issue(t)
	fields := [][2]string{
		{transport.CaptchaSessionIDField, sid},
		{transport.CaptchaCodeField, testCode},
	}
	files := []upload{
		{transport.FilesPart, "Report.PDF", make([]byte, 5*1024*1024)},
		{transport.FilesPart, "scan.Jpg", make([]byte, 10*1024*1024)},
	}
	rr := env.submit(t, fields, files)
	var resp models.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.UploadedFiles) != 2 || resp.UploadedFiles[0] != "Report.PDF" || resp.UploadedFiles[1] != "scan.Jpg" {
		t.Errorf("UploadedFiles = %v", resp.UploadedFiles)
	}
}

func TestSubmitAttachmentPolicy(t *testing.T) {
	big := make([]byte, 10*1024*1024+1)
	tests := []struct {
		name     string
		maxFiles int
		files    []upload
		want     string
	}{
		{
			name:  "file too large",
			files: []upload{{transport.FilesPart, "big.pdf", big}},
			want:  "File 'big.pdf' exceeds the maximum file size.",
		},
		{
			name:     "too many files",
			maxFiles: 2,
			files: []upload{
				{transport.FilesPart, "a.pdf", []byte("a")},
				{transport.FilesPart, "b.pdf", []byte("b")},
				{transport.POAFilePart, "poa.pdf", []byte("p")},
			},
			want: "Too many files.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.maxFiles > 0 {
				env.h.MaxFiles = tc.maxFiles
			}
			fields := [][2]string{
				{transport.CaptchaSessionIDField, env.issue(t)},
				{transport.CaptchaCodeField, testCode},
			}
			rr := env.submit(t, fields, tc.files)
			if got := decodeString(t, rr); got != tc.want {
				t.Errorf("body = %q, want %q", got, tc.want)
			}
			if dirs := stagingDirs(t, env.root); len(dirs) != 0 {
				t.Errorf("staging dirs created: %v", dirs)
			}
		})
	}
}

func TestSubmitTotalSizeExceeded(t *testing.T) {
	env := newTestEnv(t)
	fields := [][2]string{
		{transport.CaptchaSessionIDField, env.issue(t)},
		{transport.CaptchaCodeField, testCode},
	}
	chunk := make([]byte, 9*1024*1024)
	var files []upload
	for i := 0; i < 6; i++ {
		files = append(files, upload{transport.FilesPart, "part" + string(rune('a'+i)) + ".pdf", chunk})
	}
	rr := env.submit(t, fields, files)
	if got := decodeString(t, rr); got != "Total attachment size exceeds the maximum allowed." {
		t.Errorf("body = %q", got)
	}
}

func TestSubmitDuplicateNamesAndPOA(t *testing.T) {
	env := newTestEnv(t)
	fields := [][2]string{
		{transport.CaptchaSessionIDField, env.issue(t)},
		{transport.CaptchaCodeField, testCode},
	}
	files := []upload{
		{transport.FilesPart, "note.pdf", []byte("one")},
		{transport.FilesPart, "empty.pdf", nil},
		{transport.FilesPart, "note.pdf", []byte("two")},
		{transport.POAFilePart, "poa.pdf", []byte("poa")},
	}
	rr := env.submit(t, fields, files)
	var resp models.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	want := []string{"note.pdf", "note (1).pdf", "poa.pdf"}
	if strings.Join(resp.UploadedFiles, "|") != strings.Join(want, "|") {
		t.Errorf("UploadedFiles = %v, want %v", resp.UploadedFiles, want)
	}
	data, _ := os.ReadFile(filepath.Join(env.root, resp.SubmissionID, "note (1).pdf"))
	if string(data) != "two" {
		t.Errorf("second note.pdf content = %q", data)
	}
}

func TestSubmitUnusedFileInputs(t *testing.T) {
	env := newTestEnv(t)
	rr := env.submit(t, [][2]string{
		{"firstName", "A"},
		{transport.CaptchaSessionIDField, env.issue(t)},
		{transport.CaptchaCodeField, testCode},
	}, []upload{
		{transport.FilesPart, "", nil},
		{transport.POAFilePart, "", nil},
	})
	var resp models.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SubmissionID == "" {
		t.Fatal("expected acceptance")
	}
	if len(resp.UploadedFiles) != 0 {
		t.Errorf("UploadedFiles = %v", resp.UploadedFiles)
	}
	for _, k := range []string{transport.FilesPart, transport.POAFilePart} {
		if _, ok := resp.FormData[k]; ok {
			t.Errorf("FormData carries %q: %v", k, resp.FormData)
		}
	}
	if resp.FormData["firstName"] != "A" {
		t.Errorf("FormData = %v", resp.FormData)
	}
}

func TestSubmitWrongCode(t *testing.T) {
	env := newTestEnv(t)
	sid := env.issue(t)
	rr := env.submit(t, [][2]string{
		{transport.CaptchaSessionIDField, sid},
		{transport.CaptchaCodeField, "ZZZZZZ"},
	}, []upload{{transport.FilesPart, "note.pdf", []byte("x")}})
	if got := decodeString(t, rr); got != "Invalid captcha." {
		t.Errorf("body = %q", got)
	}
	if dirs := stagingDirs(t, env.root); len(dirs) != 0 {
		t.Errorf("staging dirs created: %v", dirs)
	}
}

func TestSubmitArchiveFailureDoesNotChangeResponse(t *testing.T) {
	env := newTestEnv(t)
	env.archive.err = errors.New("bucket unreachable")
	rr := env.submit(t, [][2]string{
		{transport.CaptchaSessionIDField, env.issue(t)},
		{transport.CaptchaCodeField, testCode},
	}, []upload{{transport.FilesPart, "note.pdf", []byte("x")}})
	var resp models.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.SubmissionID == "" {
		t.Fatalf("expected success envelope: %v %s", err, rr.Body)
	}
}

func TestSubmitStagingUnavailable(t *testing.T) {
	env := newTestEnv(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.h.Staging = staging.NewStore(filepath.Join(blocker, "uploads"))

	rr := env.submit(t, [][2]string{
		{transport.CaptchaSessionIDField, env.issue(t)},
		{transport.CaptchaCodeField, testCode},
	}, []upload{{transport.FilesPart, "note.pdf", []byte("x")}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(body.Error, "An error has occurred processing your request.") || body.RequestID == "" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestConcurrentSubmitsSameCaptcha(t *testing.T) {
	env := newTestEnv(t)
	sid := env.issue(t)
	fields := [][2]string{
		{transport.CaptchaSessionIDField, sid},
		{transport.CaptchaCodeField, testCode},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 8; i++ {
		body, ct := multipartBody(t, fields, []upload{{transport.FilesPart, "note.pdf", []byte("x")}})
		req := httptest.NewRequest(http.MethodPost, "/submit-form", body)
		req.Header.Set("Content-Type", ct)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			env.h.ServeHTTP(rr, req)
			var resp models.SubmitResponse
			if json.Unmarshal(rr.Body.Bytes(), &resp) == nil && resp.SubmissionID != "" {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}
}
