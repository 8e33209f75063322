package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/encode"
	"github.com/encode-hub/encode-hub/internal/server"
	"github.com/encode-hub/encode-hub/internal/transport"
)

// lookupFile 解析 :collection/:file 参数；查找失败时已写出错误响应并返回 nil。
func lookupFile(c fiber.Ctx, cat *encode.Catalogue, logger logrus.FieldLogger) (*encode.File, error) {
	collection, err := cat.Collection(c.Params("collection"))
	if err != nil {
		return nil, renderLookupError(c, logger, err, "collection_not_found")
	}
	file, err := collection.File(c.Context(), c.Params("file"))
	if err != nil {
		return nil, renderLookupError(c, logger, err, "file_not_found")
	}
	return file, nil
}

// renderLookupError 把 encode/transport 错误映射为 JSON 错误响应；notFound 为 ErrNotFound 时的错误码。
func renderLookupError(c fiber.Ctx, logger logrus.FieldLogger, err error, notFound string) error {
	var (
		status  int
		message string
	)
	var invariant *encode.InvariantError
	switch {
	case errors.Is(err, encode.ErrNotFound):
		status, message = fiber.StatusNotFound, notFound
	case errors.Is(err, encode.ErrUnsupportedType):
		status, message = fiber.StatusUnsupportedMediaType, "unsupported_type"
	case errors.As(err, &invariant):
		status, message = fiber.StatusBadGateway, "manifest_invalid"
	case errors.Is(err, transport.ErrNotRetrievable):
		status, message = fiber.StatusBadGateway, "upstream_unavailable"
	default:
		return err
	}

	logger.WithFields(logrus.Fields{
		"action":     "lookup",
		"request_id": server.RequestID(c),
		"collection": c.Params("collection"),
		"file":       c.Params("file"),
	}).WithError(err).Warn(message)
	return c.Status(status).JSON(fiber.Map{"error": message})
}
