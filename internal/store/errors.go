package store

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound 表示记录不存在，或不属于请求的用户。
	// 两种情况对调用方不可区分，避免向非所有者泄露资源是否存在。
	ErrNotFound = errors.New("record not found")

	// ErrInvalidCredentials 表示用户名或密码错误，或账号已停用。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError 按字段聚合校验失败信息，API 层将其映射为 400 响应。
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newFieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
