package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignSortsAndSkipsUnsigned(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{
		"timestamp": "1700000000",
		"public_id": "mahasiswa-1",
		"api_key":   "key",
		"folder":    "",
	})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=mahasiswa-1&timestamp=1700000000secret")))
	if got != want {
		t.Fatalf("sign = %s, want %s", got, want)
	}
}

func TestUploadPNG(t *testing.T) {
	var form map[string][]string
	var file []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = r.MultipartForm.Value
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, _ = io.ReadAll(f)
		fmt.Fprint(w, `{"public_id":"presensi/tamu-1","secure_url":"https://res.example/tamu-1.png"}`)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "presensi")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := c.UploadPNG(context.Background(), []byte("png-bytes"), "tamu-1")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://res.example/tamu-1.png" {
		t.Fatalf("url = %q", url)
	}
	if string(file) != "png-bytes" {
		t.Fatalf("file = %q", file)
	}
	if form["public_id"][0] != "tamu-1" || form["folder"][0] != "presensi" || form["api_key"][0] != "key" {
		t.Fatalf("form = %v", form)
	}
	want := c.sign(map[string]string{"timestamp": "1700000000", "public_id": "tamu-1", "overwrite": "true", "folder": "presensi"})
	if form["signature"][0] != want {
		t.Fatalf("signature = %s, want %s", form["signature"][0], want)
	}
}

func TestUploadPNGReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "bad", "")
	c.BaseURL = srv.URL
	if _, err := c.UploadPNG(context.Background(), []byte("x"), "tamu-1"); err == nil {
		t.Fatal("want error")
	}
}
