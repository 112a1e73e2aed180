package server

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/chaos-io/img2reveal/imaging"
	"github.com/chaos-io/img2reveal/rembg"
	"github.com/chaos-io/img2reveal/reveal"
	"github.com/chaos-io/img2reveal/util"
)

type Server struct {
	cfg     Config
	store   *SessionStore
	remover rembg.Remover
	engine  *gin.Engine
	cron    *cron.Cron
}

func New(cfg Config, remover rembg.Remover) *Server {
	s := &Server{
		cfg:     cfg,
		store:   NewSessionStore(cfg.SessionTTL, reveal.Options{}),
		remover: remover,
		engine:  gin.Default(),
		cron:    cron.New(),
	}

	api := s.engine.Group("/api")
	api.POST("/images", s.uploadImage)
	api.POST("/images/:id/remove", s.removeBackground)
	api.GET("/images/:id/state", s.state)
	api.GET("/images/:id/frame", s.frame)
	api.GET("/images/:id/download", s.download)
	api.DELETE("/images/:id", s.deleteSession)

	return s
}

// Run 启动定时清理和 HTTP 服务
func (s *Server) Run() error {
	if _, err := s.cron.AddFunc(s.cfg.CleanupSpec, s.store.Sweep); err != nil {
		return fmt.Errorf("add cleanup job: %w", err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	slog.Info("listening", "addr", s.cfg.Addr)
	return s.engine.Run(s.cfg.Addr)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		_ = f.Close()
	}()

	img, err := util.DecodeImage(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decode image: " + err.Error()})
		return
	}

	original := imaging.ResizeWithinMax(imaging.ToNRGBA(img), imaging.MaxUploadEdge)
	sess := s.store.Create(original)

	slog.Info("image uploaded", "id", sess.ID,
		"width", original.Bounds().Dx(), "height", original.Bounds().Dy())

	c.JSON(http.StatusOK, gin.H{
		"id":     sess.ID,
		"width":  original.Bounds().Dx(),
		"height": original.Bounds().Dy(),
		"state":  sess.Controller.State(),
	})
}

// removeBackground 调用去背景服务并触发 reveal 动画
// 去背景失败时会话保持 idle，不崩溃
func (s *Server) removeBackground(c *gin.Context) {
	sess, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	// 已带有效 alpha 的图片视为已抠图，跳过远程调用
	var result image.Image = sess.Original
	if !imaging.HasUsefulAlpha(sess.Original) {
		var err error
		result, err = s.remover.Remove(c.Request.Context(), sess.Original)
		if err != nil {
			slog.Error("remove background failed", "id", sess.ID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "state": sess.Controller.State()})
			return
		}
	}

	fitted := imaging.FitTo(result, sess.Original.Bounds())
	sess.SetResult(fitted)

	if !sess.Controller.Trigger(sess.Original, fitted) {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot start reveal", "state": sess.Controller.State()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": sess.Controller.State()})
}

func (s *Server) state(c *gin.Context) {
	sess, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sess.Controller.State()})
}

// frame 当前合成画面；idle 时返回原图占位
func (s *Server) frame(c *gin.Context) {
	sess, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	img := sess.Controller.Frame()
	if img == nil {
		img = sess.Original
	}

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, img); err != nil {
		slog.Error("encode frame failed", "id", sess.ID, "error", err)
	}
}

func (s *Server) download(c *gin.Context) {
	sess, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if sess.Controller.State() != reveal.StateCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "reveal not completed", "state": sess.Controller.State()})
		return
	}

	c.Header("Content-Type", "image/png")
	c.Header("Content-Disposition", `attachment; filename="`+sess.ID+`.png"`)
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, sess.GetResult()); err != nil {
		slog.Error("encode download failed", "id", sess.ID, "error", err)
	}
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.store.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
