package common

import (
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// MaskSecret 遮罩憑證，只顯示前後各 4 個字符
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// BuildErrorResponse 將錯誤轉為 API 錯誤響應與狀態碼，debug 時附上原始錯誤
func BuildErrorResponse(err error, debug bool) (int, ErrorResponse) {
	ce, ok := AsCustomError(err)
	if !ok {
		ce = ErrInternalError
	}
	resp := ErrorResponse{
		Code:    ce.Code,
		Message: ce.Message,
	}
	if debug && err != nil {
		resp.Details = err.Error()
	}
	return ce.Status, resp
}
