package routes

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/encode"
	"github.com/encode-hub/encode-hub/internal/logging"
	"github.com/encode-hub/encode-hub/internal/server"
)

// RegisterFileRoutes 暴露 /files 文件流与 /-/intervals 区间查询接口。
// 文件流优先读取本地缓存，未缓存时直接透传远端内容，不写入缓存。
func RegisterFileRoutes(app *fiber.App, cat *encode.Catalogue, logger logrus.FieldLogger) {
	if app == nil || cat == nil {
		return
	}

	app.Get("/files/:collection/:file", func(c fiber.Ctx) error {
		file, err := lookupFile(c, cat, logger)
		if err != nil || file == nil {
			return err
		}

		text := isTruthy(c.Query("text"))
		open := file.OpenBinary
		if text {
			open = file.OpenText
		}
		stream, err := open(c.Context())
		if err != nil {
			return renderLookupError(c, logger, err, "file_not_found")
		}

		c.Set(server.CacheHitHeader, strconv.FormatBool(stream.Cached()))
		if text {
			c.Type("txt")
		} else {
			c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		}

		fields := logging.RequestFields(server.RequestID(c), file.Collection(), file.Name, stream.Cached())
		fields["action"] = "file_stream"
		fields["text"] = text
		logger.WithFields(fields).Info("file_stream")

		if size, ok := cachedSize(file, stream, text); ok {
			return c.SendStream(stream, size)
		}
		return c.SendStream(stream)
	})

	app.Get("/-/intervals/:collection/:file", func(c fiber.Ctx) error {
		chrom := c.Query("chrom")
		if chrom == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "chrom_required"})
		}
		begin, end, ok := parseRange(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_range"})
		}

		file, err := lookupFile(c, cat, logger)
		if err != nil || file == nil {
			return err
		}
		index, err := file.ReadIntervals(c.Context())
		if err != nil {
			return renderLookupError(c, logger, err, "file_not_found")
		}

		hits := index.Search(chrom, begin, end)
		items := make([]intervalPayload, 0, len(hits))
		for _, hit := range hits {
			items = append(items, intervalPayload{
				Chrom: hit.Chrom,
				Begin: hit.Begin,
				End:   hit.End,
				Data:  hit.Data,
			})
		}
		return c.JSON(fiber.Map{
			"collection": file.Collection(),
			"file":       file.Name,
			"intervals":  items,
		})
	})
}

type intervalPayload struct {
	Chrom string   `json:"chrom"`
	Begin int      `json:"begin"`
	End   int      `json:"end"`
	Data  []string `json:"data,omitempty"`
}

// parseRange 读取 pos 或 begin/end 查询参数，返回半开区间。
func parseRange(c fiber.Ctx) (int, int, bool) {
	if raw := c.Query("pos"); raw != "" {
		pos, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, false
		}
		return pos, pos + 1, true
	}
	begin, err := strconv.Atoi(c.Query("begin"))
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.Atoi(c.Query("end"))
	if err != nil || end <= begin {
		return 0, 0, false
	}
	return begin, end, true
}

func cachedSize(file *encode.File, stream *encode.Stream, text bool) (int, bool) {
	if text || !stream.Cached() {
		return 0, false
	}
	info, err := os.Stat(file.LocalPath)
	if err != nil {
		return 0, false
	}
	return int(info.Size()), true
}

func isTruthy(raw string) bool {
	value, err := strconv.ParseBool(raw)
	return err == nil && value
}
