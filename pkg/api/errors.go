package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/haolipeng/nft_payload_classifier/pkg/ruleEngine"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// 错误代码常量
const (
	ErrCodeInternalServerError = http.StatusInternalServerError // 服务器内部错误
	ErrCodeBadRequest          = http.StatusBadRequest          // 请求参数错误
	ErrCodeInvalidRuleFormat   = http.StatusUnprocessableEntity // 规则文件格式无效
)

// ClassifyError 接口返回的错误
type ClassifyError struct {
	Code    int         // HTTP 状态码
	Message string      // 错误消息
	Err     error       // 原始错误
	Data    interface{} // 附加数据（可选）
}

func (e *ClassifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ClassifyError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(message string, err error) *ClassifyError {
	return &ClassifyError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewReloadError 规则解析错误返回422，并附带出错的位置
func NewReloadError(err error) *ClassifyError {
	var parseErr *ruleEngine.ParseError
	if errors.As(err, &parseErr) {
		return &ClassifyError{
			Code:    ErrCodeInvalidRuleFormat,
			Message: "规则格式无效",
			Err:     err,
			Data: map[string]interface{}{
				"source": parseErr.Source,
				"line":   parseErr.Line,
				"clause": parseErr.Clause,
				"error":  parseErr.Err.Error(),
			},
		}
	}
	return NewInternalServerError(err)
}

func NewInternalServerError(err error) *ClassifyError {
	return &ClassifyError{
		Code:    ErrCodeInternalServerError,
		Message: "服务器内部错误",
		Err:     err,
	}
}

// HandleError 统一错误处理函数
func HandleError(c echo.Context, err error) error {
	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	}).Error("API 错误")

	var classifyErr *ClassifyError
	if errors.As(err, &classifyErr) {
		resp := Response{
			Code:    classifyErr.Code,
			Message: classifyErr.Message,
			Data:    classifyErr.Data,
		}
		if classifyErr.Err != nil && resp.Data == nil && IsDebugMode() {
			resp.Data = map[string]string{
				"error_detail": classifyErr.Err.Error(),
			}
		}
		return c.JSON(classifyErr.Code, resp)
	}

	// 处理未知错误
	return c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "服务器内部错误",
	})
}

// IsDebugMode 日志级别为DEBUG时返回详细错误
func IsDebugMode() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}
