package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"

	"github.com/mf-advisor-core/server/internal/agent/model"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxReplyLen   = 8 * 1024   // 8KB reply shown to the user
	maxFields     = 32         // maximum number of extracted fields
	maxErrSnippet = 200        // limit error snippet size
)

// ParseCompletion turns raw model output into a Completion.
// The model is asked for {"reply": ..., "fields": {...}}; malformed JSON is repaired
// when possible. Content with no object at all is taken as a prose reply. An object that
// cannot be used yields an empty reply, so JSON never reaches the user.
func ParseCompletion(content string) (out *model.Completion, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "completion_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("completion parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	// content length guard
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "completion_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}

	content = stripFences(strings.TrimSpace(content))
	if content == "" {
		return &model.Completion{Fields: map[string]any{}}, nil
	}

	obj, ok := extractObject(content)
	if !ok {
		// plain prose: keep it as the reply
		return &model.Completion{Reply: clampReply(content), Fields: map[string]any{}}, nil
	}

	doc, ok := decodeObject(obj)
	if !ok {
		return &model.Completion{Fields: map[string]any{}}, nil
	}

	reply, isString := doc["reply"].(string)
	if v := doc["reply"]; v != nil && !isString {
		logx.Warn().Str("snippet", safeSnippet(obj)).Msg("completion reply is not a string; dropped")
	}
	raw, isObject := doc["fields"].(map[string]any)
	if v := doc["fields"]; v != nil && !isObject {
		logx.Warn().Str("snippet", safeSnippet(obj)).Msg("completion fields is not an object; dropped")
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if len(fields) >= maxFields {
			logx.Warn().Int("max_fields", maxFields).Msg("completion fields capped")
			break
		}
		k = strings.TrimSpace(k)
		if k == "" || v == nil {
			continue
		}
		fields[k] = v
	}
	return &model.Completion{Reply: clampReply(strings.TrimSpace(reply)), Fields: fields}, nil
}

// decodeObject parses obj as a JSON object, repairing it once if needed.
func decodeObject(obj string) (map[string]any, bool) {
	var doc map[string]any
	uerr := json.Unmarshal([]byte(obj), &doc)
	if uerr == nil && doc != nil {
		return doc, true
	}
	repaired, rerr := jsonrepair.JSONRepair(obj)
	if rerr != nil {
		logx.Warn().Err(uerr).Str("snippet", safeSnippet(obj)).Msg("unparseable completion; reply dropped")
		return nil, false
	}
	doc = nil
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil || doc == nil {
		logx.Warn().Err(err).Str("snippet", safeSnippet(obj)).Msg("repaired completion still invalid; reply dropped")
		return nil, false
	}
	logx.Debug().Str("component", "completion_parser").Msg("completion json repaired")
	return doc, true
}

// --- helpers ---

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		if tag := strings.TrimSpace(s[:nl]); !strings.HasPrefix(tag, "{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// extractObject returns the outermost {...} span of s.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		// unterminated object; let jsonrepair try to close it
		return s[start:], true
	}
	return s[start : end+1], true
}

func clampReply(s string) string {
	if len(s) <= maxReplyLen {
		return s
	}
	s = s[:maxReplyLen]
	for !utf8.ValidString(s) && len(s) > 0 {
		s = s[:len(s)-1]
	}
	return s
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
