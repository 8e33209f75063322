package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/encode"
)

// RegisterCatalogueRoutes 暴露 /-/collections 只读浏览接口，返回集合与文件元数据。
func RegisterCatalogueRoutes(app *fiber.App, cat *encode.Catalogue, logger logrus.FieldLogger) {
	if app == nil || cat == nil {
		return
	}

	app.Get("/-/collections", func(c fiber.Ctx) error {
		collections := cat.Collections()
		items := make([]collectionPayload, 0, len(collections))
		for _, collection := range collections {
			items = append(items, encodeCollection(collection))
		}
		return c.JSON(fiber.Map{
			"root_url":    cat.RootURL(),
			"cache_dir":   cat.CacheDir(),
			"collections": items,
		})
	})

	app.Get("/-/collections/:collection", func(c fiber.Ctx) error {
		collection, err := cat.Collection(c.Params("collection"))
		if err != nil {
			return renderLookupError(c, logger, err, "collection_not_found")
		}
		files, err := collection.Files(c.Context())
		if err != nil {
			return renderLookupError(c, logger, err, "collection_not_found")
		}

		payload := encodeCollection(collection)
		payload.Files = make([]filePayload, 0, len(files))
		for _, file := range files {
			payload.Files = append(payload.Files, encodeFile(file))
		}
		return c.JSON(payload)
	})

	app.Get("/-/collections/:collection/:file", func(c fiber.Ctx) error {
		file, err := lookupFile(c, cat, logger)
		if err != nil {
			return err
		}
		if file == nil {
			return nil
		}
		return c.JSON(encodeFile(file))
	})
}

type collectionPayload struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	CachePath string        `json:"cache_path"`
	Populated bool          `json:"populated"`
	Files     []filePayload `json:"files,omitempty"`
}

type filePayload struct {
	Name      string            `json:"name"`
	Filename  string            `json:"filename"`
	Type      string            `json:"type,omitempty"`
	URL       string            `json:"url"`
	CachePath string            `json:"cache_path"`
	LocalURL  string            `json:"local_url"`
	Cached    bool              `json:"cached"`
	Keys      []string          `json:"keys"`
	Attrs     map[string]string `json:"attrs"`
}

func encodeCollection(collection *encode.Collection) collectionPayload {
	return collectionPayload{
		Name:      collection.Name,
		URL:       collection.URL,
		CachePath: collection.CachePath,
		Populated: collection.Populated(),
	}
}

func encodeFile(file *encode.File) filePayload {
	return filePayload{
		Name:      file.Name,
		Filename:  file.Filename(),
		Type:      file.Type(),
		URL:       file.URL,
		CachePath: file.CachePath,
		LocalURL:  file.LocalURL,
		Cached:    file.Cached(),
		Keys:      file.Keys(),
		Attrs:     file.Attrs(),
	}
}
