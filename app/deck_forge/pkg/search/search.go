package search

import "context"

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query      string
	MaxResults int
	Images     bool // 需要图片结果
}

// Response 通用搜索响应
type Response struct {
	Results []Result
	Images  []Image
}

// Result 单条网页结果
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Image 单张图片
type Image struct {
	URL         string
	Description string
	Width       int
	Height      int
	Source      string // 图片所在页面
}
