package staging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestStagingStore(t *testing.T) {
	root := t.TempDir()
	s := NewStore(filepath.Join(root, "uploads"))

	dir, err := s.CreateStaging("sub-1")
	if err != nil {
		t.Fatalf("CreateStaging failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "uploads", "sub-1")); err != nil {
		t.Fatalf("staging dir not created: %v", err)
	}

	inputs := []struct{ name, body string }{
		{"note.pdf", "first"},
		{"scan.png", "image"},
		{"note.pdf", "second"},
		{"note.pdf", "third"},
	}
	for _, in := range inputs {
		if _, err := s.Admit(dir, in.name, strings.NewReader(in.body)); err != nil {
			t.Fatalf("Admit(%s) failed: %v", in.name, err)
		}
	}

	want := []string{"note.pdf", "scan.png", "note (1).pdf", "note (2).pdf"}
	got := s.List(dir)
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// No data lost on collision.
	data, err := os.ReadFile(filepath.Join(dir.Path, "note (1).pdf"))
	if err != nil || string(data) != "second" {
		t.Errorf("collision copy = %q, %v", data, err)
	}
	data, _ = os.ReadFile(filepath.Join(dir.Path, "note.pdf"))
	if string(data) != "first" {
		t.Errorf("original overwritten: %q", data)
	}
}

func TestCreateStagingNeverReuses(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.CreateStaging("dup"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateStaging("dup"); err == nil {
		t.Fatal("expected error when reusing a submission id")
	}
	if _, err := s.CreateStaging("../escape"); err == nil {
		t.Fatal("expected error for path-like submission id")
	}
}

func TestCreateStagingUnavailable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(root)
	_, err := s.CreateStaging("sub")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":       "passwd",
		`C:\Users\me\report.pdf`: "report.pdf",
		"..":                     "file",
		"":                       "file",
		"a\x00b.pdf":             "ab.pdf",
		"מסמך.pdf":               "מסמך.pdf",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(params.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*params.Bucket+"/"+*params.Key] = buf.Bytes()
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver(t *testing.T) {
	s := NewStore(t.TempDir())
	dir, _ := s.CreateStaging("sub-9")
	_, _ = s.Admit(dir, "a.pdf", strings.NewReader("aaa"))
	_, _ = s.Admit(dir, "b.pdf", strings.NewReader("bbb"))

	client := &fakeS3{}
	a := &S3Archiver{Client: client, Bucket: "complaints", Parallelism: 2}
	if err := a.Archive(context.Background(), dir, s.List(dir)); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if string(client.objects["complaints/sub-9/a.pdf"]) != "aaa" {
		t.Errorf("a.pdf not archived: %v", client.objects)
	}
	if string(client.objects["complaints/sub-9/b.pdf"]) != "bbb" {
		t.Errorf("b.pdf not archived: %v", client.objects)
	}
}
