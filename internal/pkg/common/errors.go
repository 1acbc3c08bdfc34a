package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 回傳原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// AsCustomError 取出錯誤鏈中的第一個 CustomError
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeNotFound         = "NOT_FOUND"          // 404
	ErrCodeConflict         = "CONFLICT"           // 409
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"  // 413
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED" // 405

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503

	// 流程錯誤
	ErrCodeConnection           = "CONNECTION_ERROR"
	ErrCodeUnparsableResponse   = "UNPARSABLE_RESPONSE"
	ErrCodeEmptyMandatoryList   = "EMPTY_MANDATORY_LIST"
	ErrCodeMissingMandatory     = "MISSING_MANDATORY_INGREDIENT"
	ErrCodeUnknownIngredient    = "UNKNOWN_INGREDIENT"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
	ErrCodeRequestInFlight      = "REQUEST_IN_FLIGHT"
	ErrCodeInvalidDish          = "INVALID_DISH"
	ErrCodeNoDishAnalyzed       = "NO_DISH_ANALYZED"
	ErrCodeCacheMiss            = "CACHE_MISS"
	ErrCodeCacheFull            = "CACHE_FULL"
	ErrCodeInvalidConfig        = "INVALID_CONFIG"
	ErrCodeMissingAPICredential = "MISSING_API_CREDENTIAL"
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest   = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrNotFound         = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)
	ErrConflict         = NewError(ErrCodeConflict, "resource conflict", http.StatusConflict, nil)
	ErrTooManyRequests  = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)
	ErrMethodNotAllowed = NewError(ErrCodeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable, nil)

	// 模型呼叫錯誤：傳輸/驗證/限流失敗 與 模型有回覆但內容無法使用 必須區分
	ErrConnection         = NewError(ErrCodeConnection, "could not reach the recipe model, please try again", http.StatusServiceUnavailable, nil)
	ErrUnparsableResponse = NewError(ErrCodeUnparsableResponse, "the recipe model replied with something we could not read, please try again", http.StatusBadGateway, nil)

	// 業務錯誤
	ErrEmptyMandatoryList         = NewError(ErrCodeEmptyMandatoryList, "no essential ingredients could be identified for this dish", http.StatusUnprocessableEntity, nil)
	ErrMissingMandatoryIngredient = NewError(ErrCodeMissingMandatory, "a mandatory ingredient is missing, the dish cannot be made", http.StatusConflict, nil)
	ErrUnknownIngredient          = NewError(ErrCodeUnknownIngredient, "ingredient is not part of the current dish", http.StatusNotFound, nil)
	ErrSessionNotFound            = NewError(ErrCodeSessionNotFound, "session not found", http.StatusNotFound, nil)
	ErrRequestInFlight            = NewError(ErrCodeRequestInFlight, "another request for this session is still running", http.StatusConflict, nil)
	ErrInvalidDish                = NewError(ErrCodeInvalidDish, "invalid dish request", http.StatusBadRequest, nil)
	ErrNoDishAnalyzed             = NewError(ErrCodeNoDishAnalyzed, "no dish has been analyzed in this session", http.StatusConflict, nil)

	// 快取錯誤
	ErrCacheMiss = NewError(ErrCodeCacheMiss, "cache miss", http.StatusNotFound, nil)
	ErrCacheFull = NewError(ErrCodeCacheFull, "cache is full", http.StatusServiceUnavailable, nil)

	// 設定錯誤
	ErrInvalidConfig        = NewError(ErrCodeInvalidConfig, "invalid configuration", http.StatusInternalServerError, nil)
	ErrMissingAPICredential = NewError(ErrCodeMissingAPICredential, "model API credential is not set", http.StatusInternalServerError, nil)
)

// WrapError 將底層錯誤掛到預定義錯誤下，errors.Is 與 errors.As 皆可辨識兩者
func WrapError(base *CustomError, err error) error {
	if err == nil {
		return base
	}
	return fmt.Errorf("%w: %w", base, err)
}
