package server

import (
	"errors"
	"net/http"
	"time"

	"muserver/internal/config"
	"muserver/internal/resolver"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はファイルサーバーの情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Root string `json:"root"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string        `json:"status"`
	Server    ServerInfo    `json:"server"`
	InFlight  int64         `json:"in_flight"` // 受け付け待ちを含む実行中のワーカー数
	Codecs    []string      `json:"codecs"`
	Stats     StatsSnapshot `json:"stats"`
	Uptime    string        `json:"uptime"`
	Timestamp time.Time     `json:"timestamp"`
}

// ResolveResponse はパス解決の確認結果
type ResolveResponse struct {
	Path      string `json:"path"`
	Directory string `json:"directory"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	Listable  bool   `json:"listable"`
	Listing   bool   `json:"listing"`
	Transcode bool   `json:"transcode"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AdminHandler は管理APIの実装
type AdminHandler struct {
	config  *config.Config
	server  *Server
	started time.Time
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *AdminHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
			Root: h.config.Server.Root,
		},
		InFlight:  h.server.InFlight(),
		Codecs:    h.server.codecs.Extensions(),
		Stats:     h.server.stats.Snapshot(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	})
}

// ResolvePath はリクエストパスの解決結果を返す (ファイルは送らない)
func (h *AdminHandler) ResolvePath(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "missing_path",
			Message:   "path パラメータが必要です",
			Timestamp: time.Now(),
		})
		return
	}

	target, err := h.server.resolver.Resolve(path)
	if err != nil {
		code := "file_not_found"
		switch {
		case errors.Is(err, resolver.ErrDirectoryNotFound):
			code = "directory_not_found"
		case errors.Is(err, resolver.ErrNoDefaultFile):
			code = "no_default_file"
		}
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     code,
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	_, transcode := h.server.codecs.Lookup(target.FileName)
	c.JSON(http.StatusOK, ResolveResponse{
		Path:      path,
		Directory: target.Directory,
		FileName:  target.FileName,
		MimeType:  target.MimeType,
		Listable:  target.Listable,
		Listing:   target.IsListing(),
		Transcode: transcode && target.FileName != "",
	})
}

// requestID は各レスポンスに X-Request-Id を付与する
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Request-Id", uuid.NewString())
		c.Next()
	}
}

// newAdminRouter は管理APIのルーティングを設定する
func newAdminRouter(h *AdminHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestID())

	router.GET("/health", h.HealthCheck)
	api := router.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/resolve", h.ResolvePath)
	}

	return router
}
