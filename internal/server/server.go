package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/app"
	"github.com/rezonia/nfse-renderer/internal/delivery"
	"github.com/rezonia/nfse-renderer/internal/layout"
	"github.com/rezonia/nfse-renderer/internal/model"
	"github.com/rezonia/nfse-renderer/internal/processor"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	VerifyURL    string
	Debug        bool
}

// Generator is what the handlers need from the rendering service
type Generator interface {
	Parse(ctx context.Context, xml []byte) ([]model.Record, error)
	GenerateRecords(ctx context.Context, recs []model.Record, req app.Request) (*app.Output, error)
	Status() app.Status
}

// Server represents the HTTP API server
type Server struct {
	config *Config
	router *gin.Engine
	gen    Generator
	log    *zap.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, gen Generator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	s := &Server{
		config: config,
		router: router,
		gen:    gen,
		log:    log,
	}
	router.Use(gin.CustomRecoveryWithWriter(nil, s.recovered))
	if config.Debug {
		router.Use(gin.Logger())
	}
	s.setupRoutes()
	return s
}

// recovered turns handler panics into a 500. http.ErrAbortHandler is
// passed on so net/http drops the connection of a response cut mid-stream.
func (s *Server) recovered(c *gin.Context, rec any) {
	if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		panic(err)
	}
	s.log.Error("panic recovered",
		zap.Any("panic", rec),
		zap.String("path", c.Request.URL.Path),
		zap.Stack("stack"),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/nfse/pdf", s.handleGenerate)
		v1.POST("/nfse/validate", s.handleValidate)
	}

	// path used by existing clients
	s.router.POST("/nfse/gerar-pdf", s.handleGenerate)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Cache:  s.gen.Status(),
	})
}

// readRequest accepts a JSON GenerateRequest or a raw XML body
func (s *Server) readRequest(c *gin.Context) (GenerateRequest, bool) {
	if s.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)
	}
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return GenerateRequest{}, false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return GenerateRequest{}, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return GenerateRequest{}, false
	}

	var req GenerateRequest
	if c.ContentType() == gin.MIMEJSON {
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Details: err.Error()})
			return GenerateRequest{}, false
		}
	} else {
		req.XML = string(body)
	}
	if req.Mode == "" {
		req.Mode = c.Query("mode")
	}
	if req.ZipName == "" {
		req.ZipName = c.Query("zipName")
	}
	if strings.TrimSpace(req.XML) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "xml is required"})
		return GenerateRequest{}, false
	}
	return req, true
}

func (s *Server) handleGenerate(c *gin.Context) {
	req, ok := s.readRequest(c)
	if !ok {
		return
	}
	mode, err := processor.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "mode must be single or multiple", Details: err.Error()})
		return
	}

	ctx := c.Request.Context()
	recs, err := s.gen.Parse(ctx, []byte(req.XML))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := s.gen.GenerateRecords(ctx, recs, app.Request{Mode: mode, ArchiveName: req.ZipName})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrEmptyInput) {
			status = http.StatusUnprocessableEntity
		}
		s.log.Error("generation failed", zap.Error(err))
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	n, err := delivery.Stream(c.Writer, out.Body, delivery.Options{
		ContentType:        out.ContentType,
		ContentDisposition: out.ContentDisposition,
		Logger:             s.log,
	})
	fields := []zap.Field{
		zap.String("mode", string(mode)),
		zap.Int("records", out.Records),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		s.log.Warn("document not delivered", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("document delivered", fields...)
}

func (s *Server) handleValidate(c *gin.Context) {
	req, ok := s.readRequest(c)
	if !ok {
		return
	}

	recs, err := s.gen.Parse(c.Request.Context(), []byte(req.XML))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Errors: []string{err.Error()},
		})
		return
	}

	resp := ValidationResponse{Valid: true, Records: make([]RecordSummary, len(recs))}
	for i, rec := range recs {
		resp.Records[i] = summarize(rec, i, s.config.VerifyURL)
	}
	c.JSON(http.StatusOK, resp)
}

func summarize(rec model.Record, index int, verifyURL string) RecordSummary {
	if verifyURL == "" {
		verifyURL = layout.DefaultVerifyURL
	}
	_, hasQR := layout.QRPayload(rec, verifyURL)
	return RecordSummary{
		Index:            index,
		Schema:           string(rec.Schema),
		Number:           rec.Number,
		RPS:              rec.RPS.Number,
		VerificationCode: rec.VerificationCode,
		IssuedAt:         rec.IssuedAt,
		Provider:         rec.Provider.Name,
		Customer:         rec.Customer.Name,
		MunicipalityCode: rec.MunicipalityCode,
		Cancelled:        rec.Cancelled(),
		HasQR:            hasQR,
		Filename:         processor.DefaultFilename(rec, index),
	}
}
