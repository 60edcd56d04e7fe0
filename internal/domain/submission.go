package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

// ParseSubmission 解析并校验提交的 JSON 请求体
//
// 规则与浏览器端的真值语义保持一致：
//   - 非法 JSON、空请求体，或者解析结果本身为假值（null、false、0、""）返回 ErrInvalidJSON
//   - name、email、message 任一缺失或为假值返回 ErrMissingFields
//   - 非字符串的真值字段（数字、true、对象）会被转成字符串
func ParseSubmission(body []byte) (Submission, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return Submission{}, ErrInvalidJSON
	}
	// 只允许一个 JSON 值，之后只能是空白
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Submission{}, ErrInvalidJSON
	}
	if !truthy(raw) {
		return Submission{}, ErrInvalidJSON
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return Submission{}, ErrMissingFields
	}

	name, okName := fieldString(fields["name"])
	email, okEmail := fieldString(fields["email"])
	message, okMessage := fieldString(fields["message"])
	if !okName || !okEmail || !okMessage {
		return Submission{}, ErrMissingFields
	}

	return Submission{Name: name, Email: email, Message: message}, nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

// fieldString 把真值字段转成字符串，假值返回 false
func fieldString(v any) (string, bool) {
	if !truthy(v) {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		return val.String(), true
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}
