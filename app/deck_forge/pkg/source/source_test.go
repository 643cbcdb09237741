package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const page = `<html><head><title>Báo cáo thị trường</title><style>.x{}</style><script>var a = 1;</script></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Thị trường 2025</h1>
<p>Doanh thu tăng 20% so với năm trước, chủ yếu nhờ mảng dịch vụ số.</p>
<ul><li>Bước 1: thu thập dữ liệu</li><li>Bước 2: phân tích</li></ul>
</article>
<footer>copyright</footer>
</body></html>`

func TestFromHTML(t *testing.T) {
	doc, err := FromHTML(strings.NewReader(page))
	if err != nil {
		t.Fatalf("FromHTML() error = %v", err)
	}
	if doc.Title != "Báo cáo thị trường" {
		t.Errorf("Title = %q", doc.Title)
	}
	for _, want := range []string{"Thị trường 2025", "Doanh thu tăng 20%", "- Bước 1: thu thập dữ liệu"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("text missing %q:\n%s", want, doc.Text)
		}
	}
	for _, bad := range []string{"var a", "copyright", "Home"} {
		if strings.Contains(doc.Text, bad) {
			t.Errorf("text should not contain %q", bad)
		}
	}
}

func TestFromHTMLEmpty(t *testing.T) {
	if _, err := FromHTML(strings.NewReader("<html><body><script>x()</script></body></html>")); !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("  Kế hoạch quý ba\n\nMở rộng thị trường  "), 0o644); err != nil {
		t.Fatal(err)
	}
	htm := filepath.Join(dir, "page.html")
	if err := os.WriteFile(htm, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		ref      string
		wantKind Kind
		contains string
		wantErr  error
	}{
		{"plain text", "Giới thiệu sản phẩm mới", KindText, "sản phẩm", nil},
		{"text file", txt, KindFile, "Mở rộng thị trường", nil},
		{"html file", htm, KindFile, "Doanh thu tăng", nil},
		{"blank", "   ", "", "", ErrEmpty},
	}
	l := NewLoader(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := l.Load(context.Background(), tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if doc.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", doc.Kind, tt.wantKind)
			}
			if !strings.Contains(doc.Text, tt.contains) {
				t.Errorf("text %q missing %q", doc.Text, tt.contains)
			}
		})
	}
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	l := NewLoader(0)
	doc, err := l.Load(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Kind != KindURL || doc.Ref != srv.URL+"/article" {
		t.Errorf("doc = %+v", doc)
	}
	if !strings.Contains(doc.Text, "Doanh thu tăng 20%") {
		t.Errorf("text missing body: %q", doc.Text)
	}

	if _, err := l.FromURL(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.FromURL(ctx, srv.URL+"/article"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
