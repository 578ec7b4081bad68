package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"carbone2pdf/internal/carbone"
	"carbone2pdf/internal/documents"
	"carbone2pdf/internal/storage"
	u "carbone2pdf/internal/utils"
)

// Renderer turns a render request into document bytes.
type Renderer interface {
	Render(ctx context.Context, req carbone.RenderRequest) ([]byte, error)
}

// DocumentService bundles configuration and dependencies of the document API.
type DocumentService struct {
	Config    *u.Config
	Renderer  Renderer
	Store     storage.Store
	Documents documents.Repository
	Redis     *redis.Client
}

// CreateDocumentRequest is the body of POST /v1/documents.
type CreateDocumentRequest struct {
	Template   string         `json:"template" validate:"required,max=255"`
	Data       map[string]any `json:"data"`
	ConvertTo  string         `json:"convert_to" validate:"omitempty,alphanum,max=10"`
	Filename   string         `json:"filename" validate:"omitempty,max=255"`
	ClientName string         `json:"client_name" validate:"omitempty,max=255"`
}

// CreateDocumentResponse is returned once a document is stored.
type CreateDocumentResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Location   string `json:"location"`
	Cached     bool   `json:"cached"`
}

var (
	templateNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	unsafeNameChars     = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)
)

// NewDocumentService creates a service; nil repository falls back to memory.
func NewDocumentService(cfg u.Config, renderer Renderer, store storage.Store, repo documents.Repository, rdb *redis.Client) *DocumentService {
	if repo == nil {
		repo = documents.NewMemoryRepository()
	}
	return &DocumentService{
		Config:    &cfg,
		Renderer:  renderer,
		Store:     store,
		Documents: repo,
		Redis:     rdb,
	}
}

// HandleCreate renders a template from the templates directory, stores the
// result and records it.
func (svc *DocumentService) HandleCreate(c *fiber.Ctx) error {
	req, err := svc.parseCreateRequest(c)
	if err != nil {
		return err
	}

	templatePath := filepath.Join(svc.Config.Render.TemplatesDir, req.Template)
	template, err := carbone.LoadTemplate(templatePath)
	if err != nil {
		u.Warn("Template not available", "template", req.Template, "error", err)
		return fiber.NewError(fiber.StatusNotFound, "Template not found")
	}

	payload := carbone.BuildPayload(template, req.Data, req.ConvertTo)
	doc, cached, err := svc.render(c, req.Template, payload)
	if err != nil {
		return err
	}

	filename := req.Filename
	if filename == "" {
		filename = defaultFilename(req.ClientName, payload.ConvertTo)
	}

	location, err := svc.Store.Put(c.UserContext(), filename, carbone.ContentType(payload.ConvertTo), doc)
	if err != nil {
		u.Error("Storing document failed", "filename", filename, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Storing document failed")
	}

	record := &documents.Document{
		Name:       filename,
		Location:   location,
		ConvertTo:  payload.ConvertTo,
		ClientName: req.ClientName,
		SizeBytes:  int64(len(doc)),
	}
	if err := svc.Documents.Create(c.UserContext(), record); err != nil {
		u.Error("Recording document failed", "filename", filename, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Recording document failed")
	}

	u.Info("Document stored",
		"document_id", record.ID,
		"location", location,
		"cached", cached,
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)

	return c.Status(fiber.StatusCreated).JSON(CreateDocumentResponse{
		Message:    "success",
		DocumentID: record.ID,
		Location:   location,
		Cached:     cached,
	})
}

// HandleGet returns a stored document record.
func (svc *DocumentService) HandleGet(c *fiber.Ctx) error {
	doc, err := svc.Documents.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, documents.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Document not found")
	}
	if err != nil {
		u.Error("Loading document failed", "id", c.Params("id"), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Loading document failed")
	}
	return c.JSON(doc)
}

func (svc *DocumentService) parseCreateRequest(c *fiber.Ctx) (*CreateDocumentRequest, error) {
	var req CreateDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid body: "+err.Error())
	}
	if err := u.ValidateStruct(req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid body: "+err.Error())
	}
	if !templateNamePattern.MatchString(req.Template) || req.Template == "." || req.Template == ".." {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Template name contains invalid characters")
	}
	if req.ConvertTo == "" {
		req.ConvertTo = svc.Config.Render.ConvertTo
	}
	req.ConvertTo = strings.ToLower(req.ConvertTo)
	if req.Filename != "" {
		if !storage.ValidName(req.Filename) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Filename contains invalid characters")
		}
		if !strings.HasSuffix(strings.ToLower(req.Filename), "."+req.ConvertTo) {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Filename must end with .%s", req.ConvertTo))
		}
	}
	return &req, nil
}

// render serves the document from Redis when possible, otherwise asks the
// rendering service and caches the answer.
func (svc *DocumentService) render(c *fiber.Ctx, templateName string, payload carbone.RenderRequest) ([]byte, bool, error) {
	cacheEnabled := svc.Redis != nil && svc.Config.Cache.RenderCacheEnabled

	var cacheKey string
	if cacheEnabled {
		key, err := computeRenderCacheKey(templateName, payload)
		if err != nil {
			u.Warn("Render cache key failed", "error", err)
			cacheEnabled = false
		}
		cacheKey = key
	}

	if cacheEnabled {
		if cached, err := getCachedDocument(c.UserContext(), svc.Redis, cacheKey); err == nil && cached != nil {
			return cached, true, nil
		}
	}

	doc, err := svc.Renderer.Render(c.UserContext(), payload)
	if err != nil {
		return nil, false, renderError(err)
	}

	if cacheEnabled {
		setCachedDocument(c.UserContext(), svc.Redis, cacheKey, doc, svc.Config.Cache.RenderCacheTTL)
	}
	return doc, false, nil
}

func renderError(err error) error {
	var remote *carbone.RemoteRenderingError
	switch {
	case errors.As(err, &remote):
		u.Error("Rendering service rejected request", "status", remote.StatusCode, "body", remote.Body)
		return fiber.NewError(fiber.StatusBadGateway, remote.Error())
	case errors.Is(err, carbone.ErrTransport):
		u.Error("Rendering service unreachable", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return fiber.NewError(fiber.StatusGatewayTimeout, "Rendering service timed out")
		}
		return fiber.NewError(fiber.StatusBadGateway, "Rendering service unreachable")
	case errors.Is(err, u.ErrMissingCredential):
		u.Error("Rendering credential missing", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Rendering service not configured")
	default:
		u.Error("Rendering failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Rendering failed")
	}
}

func defaultFilename(clientName, convertTo string) string {
	base := strings.Trim(unsafeNameChars.ReplaceAllString(strings.TrimSpace(clientName), "_"), "._")
	if base == "" {
		base = xid.New().String()
	}
	return base + "." + convertTo
}

// computeRenderCacheKey hashes everything that influences the rendered bytes.
func computeRenderCacheKey(templateName string, payload carbone.RenderRequest) (string, error) {
	body, err := payload.Encode()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(templateName))
	h.Write([]byte{0})
	h.Write(body)
	return "rendercache:" + hex.EncodeToString(h.Sum(nil)), nil
}

func getCachedDocument(ctx context.Context, rdb *redis.Client, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	cached, err := rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return nil, err
	}

	u.Info("Render cache hit", "key", key)
	return cached, nil
}

func setCachedDocument(ctx context.Context, rdb *redis.Client, key string, data []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if ttl < time.Minute {
		ttl = time.Minute
	}

	if err := rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
