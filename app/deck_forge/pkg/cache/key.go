package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Key 阶段调用指纹：<stage>:<sha256>
type Key string

// NewKey 由 (阶段标识, 归一化输入, 阶段配置) 计算指纹。
// config 以 JSON 编码参与摘要，map 字段由 encoding/json 按键排序，结果稳定
func NewKey(stage model.StageID, input string, config any) Key {
	h := sha256.New()
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(input)))
	h.Write([]byte{0})
	cfg, err := json.Marshal(config)
	if err != nil {
		cfg = []byte(err.Error())
	}
	h.Write(cfg)
	return Key(string(stage) + ":" + hex.EncodeToString(h.Sum(nil)))
}

// Stage 指纹所属阶段
func (k Key) Stage() model.StageID {
	stage, _, _ := strings.Cut(string(k), ":")
	return model.StageID(stage)
}

// Normalize 输入归一化：NFC、统一换行、行内空白折叠、连续空行合并
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
