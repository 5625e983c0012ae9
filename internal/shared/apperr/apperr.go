package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别，贯穿service→handler，handler据此映射HTTP状态码
type Kind string

const (
	KindNotFound          Kind = "not_found"          // 引用的实体不存在
	KindConflict          Kind = "conflict"           // 唯一性/独占槽位冲突
	KindInvalidTransition Kind = "invalid_transition" // 状态机前置条件不满足
	KindValidation        Kind = "validation"         // 输入不合法
	KindConsistency       Kind = "consistency"        // 数据自身不变量被破坏，属于缺陷
)

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New 创建业务错误
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return New(KindInvalidTransition, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func Consistency(format string, args ...interface{}) *Error {
	return New(KindConsistency, format, args...)
}

// KindOf 提取错误类别，非业务错误返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is 判断错误是否属于指定类别
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
