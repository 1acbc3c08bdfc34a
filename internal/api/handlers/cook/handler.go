package cook

import (
	"errors"
	"net/http"

	"chefos/internal/core/session"
	"chefos/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyzeRequest 分析菜名
type AnalyzeRequest struct {
	DishName string `json:"dish_name" binding:"required"`
	Servings int    `json:"servings,omitempty"` // 0 代表使用預設份量
}

// ToggleRequest 修改單一食材的勾選狀態
type ToggleRequest struct {
	Name      string `json:"name" binding:"required"`
	Available *bool  `json:"available" binding:"required"`
}

// SessionErrorResponse 錯誤響應，並附上目前的會話內容
type SessionErrorResponse struct {
	common.ErrorResponse
	Session *session.View `json:"session,omitempty"`
}

// Handler 會話相關的 HTTP 處理器
type Handler struct {
	svc   *session.Service
	debug bool
}

// NewHandler 創建處理器；debug 時錯誤響應附上原始錯誤
func NewHandler(svc *session.Service, debug bool) *Handler {
	return &Handler{svc: svc, debug: debug}
}

const (
	analyzeRoute = "/sessions/:id/analyze"
	recipeRoute  = "/sessions/:id/recipe"
)

// ModelRoutes 會呼叫模型的路由（gin FullPath），prefix 為路由組前綴
func ModelRoutes(prefix string) []string {
	return []string{prefix + analyzeRoute, prefix + recipeRoute}
}

// Register 註冊路由
func (h *Handler) Register(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.HandleCreate)
		sessions.GET("/:id", h.HandleGet)
		sessions.DELETE("/:id", h.HandleDelete)
		sessions.POST("/:id/analyze", h.HandleAnalyze)
		sessions.PUT("/:id/ingredients", h.HandleToggle)
		sessions.POST("/:id/recipe", h.HandleGenerate)
		sessions.POST("/:id/reset", h.HandleReset)
		sessions.GET("/:id/export", h.HandleExport)
	}
}

// HandleCreate 建立會話
func (h *Handler) HandleCreate(c *gin.Context) {
	view := h.svc.Create()
	common.LogInfo("會話已建立",
		zap.String("session_id", view.ID),
		zap.String("request_id", requestid.Get(c)),
	)
	c.JSON(http.StatusCreated, view)
}

// HandleGet 取得會話
func (h *Handler) HandleGet(c *gin.Context) {
	view, err := h.svc.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleDelete 刪除會話
func (h *Handler) HandleDelete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleAnalyze 分析菜名並列出食材
func (h *Handler) HandleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.String("request_id", requestid.Get(c)),
			zap.Error(err),
		)
		h.fail(c, common.WrapError(common.ErrInvalidRequest, err), nil)
		return
	}

	common.LogInfo("開始分析菜名",
		zap.String("request_id", requestid.Get(c)),
		zap.String("session_id", c.Param("id")),
		zap.String("dish", req.DishName),
		zap.Int("servings", req.Servings),
	)

	view, err := h.svc.Analyze(c.Request.Context(), c.Param("id"), req.DishName, req.Servings)
	if err != nil {
		// 主要食材為空時仍回傳已安裝的食材清單
		h.fail(c, err, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleToggle 修改食材勾選
func (h *Handler) HandleToggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.WrapError(common.ErrInvalidRequest, err), nil)
		return
	}

	view, err := h.svc.Toggle(c.Param("id"), req.Name, *req.Available)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleGenerate 依勾選結果產生食譜
func (h *Handler) HandleGenerate(c *gin.Context) {
	common.LogInfo("開始產生食譜",
		zap.String("request_id", requestid.Get(c)),
		zap.String("session_id", c.Param("id")),
	)

	view, err := h.svc.GenerateRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleReset 清除菜名、食材與食譜
func (h *Handler) HandleReset(c *gin.Context) {
	view, err := h.svc.Reset(c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleExport 以 Markdown 匯出目前的食譜
func (h *Handler) HandleExport(c *gin.Context) {
	doc, err := h.svc.Export(c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="recipe.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc))
}

func (h *Handler) fail(c *gin.Context, err error, view *session.View) {
	status, resp := common.BuildErrorResponse(err, h.debug)

	fields := []zap.Field{
		zap.String("request_id", requestid.Get(c)),
		zap.String("path", c.Request.URL.Path),
		zap.String("code", resp.Code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗", fields...)
	} else {
		common.LogDebug("請求處理失敗", fields...)
	}

	_ = c.Error(err)
	if view != nil && errors.Is(err, common.ErrEmptyMandatoryList) {
		c.JSON(status, SessionErrorResponse{ErrorResponse: resp, Session: view})
		return
	}
	c.JSON(status, resp)
}
