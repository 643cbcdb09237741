package search

import (
	"context"
	"errors"
	"testing"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

type stubSearcher struct {
	resp *Response
	err  error
	req  *Request
}

func (s *stubSearcher) Search(ctx context.Context, req *Request) (*Response, error) {
	s.req = req
	return s.resp, s.err
}

func TestImageResolver(t *testing.T) {
	tests := []struct {
		name     string
		stub     *stubSearcher
		keywords []string
		wantRef  string
		wantErr  error
	}{
		{"first usable image", &stubSearcher{resp: &Response{Images: []Image{{URL: "data:xyz"}, {URL: "https://img/1.jpg"}}}}, []string{"solar", "panel"}, "https://img/1.jpg", nil},
		{"no images", &stubSearcher{resp: &Response{Results: []Result{{URL: "https://page"}}}}, []string{"solar"}, "", model.ErrNotFound},
		{"empty keywords", &stubSearcher{}, nil, "", model.ErrNotFound},
		{"provider error", &stubSearcher{err: errors.New("status 500")}, []string{"solar"}, "", model.ErrServiceUnavailable},
		{"disabled", nil, []string{"solar"}, "", model.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Searcher = Disabled{}
			if tt.stub != nil {
				s = tt.stub
			}
			ref, err := NewImageResolver(s, "stub", nil, 3).SearchImage(context.Background(), tt.keywords)
			if ref != tt.wantRef {
				t.Errorf("ref = %q, want %q", ref, tt.wantRef)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.stub != nil && tt.stub.req != nil && (!tt.stub.req.Images || tt.stub.req.MaxResults != 3) {
				t.Errorf("request = %+v", tt.stub.req)
			}
		})
	}
}

func TestImageResolverContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewImageResolver(&stubSearcher{err: context.Canceled}, "stub", nil, 1).SearchImage(ctx, []string{"x"})
	if !errors.Is(err, context.Canceled) || errors.Is(err, model.ErrServiceUnavailable) {
		t.Errorf("err = %v, want plain context error", err)
	}
}
