package controller

import (
	"ai-rag-be/internal/dto"
	"ai-rag-be/internal/pkg/serverutils"
	"ai-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRagController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	ListCollections(ctx *fiber.Ctx) error
}

type ragController struct {
	service service.IRagService
}

func NewRagController(service service.IRagService) IRagController {
	return &ragController{service: service}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rag/v1")
	h.Post("/query", c.Query)
	h.Get("/collections", c.ListCollections)
}

func (c *ragController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Query(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer query", res))
}

func (c *ragController) ListCollections(ctx *fiber.Ctx) error {
	res, err := c.service.ListCollections(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list collections", res))
}
