package conf

type Bootstrap struct {
	Server   *Server
	Data     *Data
	Pipeline *Pipeline
}

type Server struct {
	Http *HTTP
}

type HTTP struct {
	Addr    string
	Timeout string
}

type Data struct {
	Database *Database
}

type Database struct {
	Driver string
	Source string
}

// Pipeline deck_forge 引擎配置，启动时转换为 pkg/config.Config
type Pipeline struct {
	Llm         *LLM         `json:"llm"`
	Search      *Search      `json:"search"`
	Stages      *Stages      `json:"stages"`
	Cache       *Cache       `json:"cache"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
}

type LLM struct {
	BaseUrl    string `json:"base_url"`
	ApiKey     string `json:"api_key"`
	Model      string `json:"model"`
	Timeout    string `json:"timeout"`
	MaxRetries int32  `json:"max_retries"`
}

type Search struct {
	Provider         string   `json:"provider"`
	Tavily           *Tavily  `json:"tavily"`
	Searxng          *SearXNG `json:"searxng"`
	Pexels           *Pexels  `json:"pexels"`
	MaxResults       int32    `json:"max_results"`
	FallbackKeywords []string `json:"fallback_keywords"`
}

type Tavily struct {
	ApiKey string `json:"api_key"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type Pexels struct {
	ApiKey string `json:"api_key"`
}

// Stages 请求未指定时使用的默认阶段配置
type Stages struct {
	TargetSlideCount              int32    `json:"target_slide_count"`
	Language                      string   `json:"language"`
	EnabledStages                 []string `json:"enabled_stages"`
	RefinementConfidenceThreshold *float64 `json:"refinement_confidence_threshold"`
	PerStageTimeout               string   `json:"per_stage_timeout"`
}

// Cache backend 为 postgres 时复用 data.database 的连接
type Cache struct {
	Backend    string `json:"backend"`
	MaxEntries int32  `json:"max_entries"`
	MaxBytes   int64  `json:"max_bytes"`
	Ttl        string `json:"ttl"`
	Redis      *Redis `json:"redis"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	Db       int32  `json:"db"`
	Prefix   string `json:"prefix"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps          int32 `json:"qps"`
	Rpm          int32 `json:"rpm"`
	ImageWorkers int32 `json:"image_workers"`
}
