package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/search"
)

func TestSearchImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/search" || q.Get("categories") != "images" || q.Get("format") != "json" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"query":"solar","results":[
			{"title":"Panel","url":"https://page/1","img_src":"https://img/1.jpg"},
			{"title":"Roof","url":"https://page/2","img_src":"https://img/2.jpg"},
			{"title":"Extra","url":"https://page/3","img_src":"https://img/3.jpg"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, 1).Search(context.Background(), &search.Request{Query: "solar", Images: true, MaxResults: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Images) != 2 || resp.Images[0].URL != "https://img/1.jpg" || resp.Images[0].Source != "https://page/1" {
		t.Errorf("images = %+v", resp.Images)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 1).Search(context.Background(), &search.Request{Query: "x"}); err == nil {
		t.Errorf("expected error")
	}
}
