package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
)

// ErrEmpty 输入中没有可用文本
var ErrEmpty = errors.New("source has no text")

// maxBytes 单个输入的读取上限
const maxBytes = 4 << 20

// Kind 输入来源类型
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
	KindHTML Kind = "html"
	KindURL  Kind = "url"
)

// Document 加载后的纯文本
type Document struct {
	Kind  Kind
	Title string
	Text  string
	Ref   string // 文件路径或 URL
}

// Loader 读取各类输入并转换为纯文本
type Loader struct {
	client *http.Client
}

func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{client: &http.Client{Timeout: timeout}}
}

// Load 自动判断输入：http(s) 地址按网页抓取，已存在的路径按文件读取，其余视为正文
func (l *Loader) Load(ctx context.Context, ref string) (*Document, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmpty
	}
	if isURL(ref) {
		return l.FromURL(ctx, ref)
	}
	if !strings.ContainsAny(ref, "\n") {
		if st, err := os.Stat(ref); err == nil && !st.IsDir() {
			return l.FromFile(ref)
		}
	}
	return FromText(ref)
}

func FromText(text string) (*Document, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmpty
	}
	return &Document{Kind: KindText, Text: text}, nil
}

// FromFile 读取文件；.html/.htm 按 HTML 提取正文
func (l *Loader) FromFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		doc, err := FromHTML(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		doc.Kind = KindFile
		doc.Ref = path
		return doc, nil
	}

	b, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := FromText(string(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Kind = KindFile
	doc.Ref = path
	return doc, nil
}

// FromHTML 去掉脚本、样式和导航后按块级元素抽取文本
func FromHTML(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(r, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, p, li, blockquote, pre").Each(func(i int, s *goquery.Selection) {
		// 嵌套的块只取最内层
		if s.Find("p, li").Length() > 0 {
			return
		}
		t := strings.Join(strings.Fields(s.Text()), " ")
		if t == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			t = "- " + t
		}
		parts = append(parts, t)
	})
	if len(parts) == 0 {
		if t := strings.Join(strings.Fields(doc.Find("body").Text()), " "); t != "" {
			parts = append(parts, t)
		}
	}

	text := strings.Join(parts, "\n\n")
	if text == "" {
		return nil, ErrEmpty
	}
	return &Document{
		Kind:  KindHTML,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  text,
	}, nil
}

// FromURL 抓取网页并用 readability 提取正文，失败时退回 HTML 抽取
func (l *Loader) FromURL(ctx context.Context, pageURL string) (*Document, error) {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", pageURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "deck_forge/1.0")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return &Document{Kind: KindURL, Title: article.Title, Text: strings.TrimSpace(article.TextContent), Ref: pageURL}, nil
	}
	logger.Log.Warnf("readability 提取失败 [%s]: %v，改用 HTML 抽取", pageURL, err)

	doc, herr := FromHTML(strings.NewReader(string(body)))
	if herr != nil {
		return nil, fmt.Errorf("extract %s: %w", pageURL, herr)
	}
	doc.Kind = KindURL
	doc.Ref = pageURL
	return doc, nil
}

func isURL(s string) bool {
	if strings.ContainsAny(s, " \n\t") {
		return false
	}
	u, err := nurl.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
