package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/repo/memory"
)

// demoContentID is the content entity registered by seedDemoData
var demoContentID = uuid.MustParse("6f0b7c1e-2f43-4a4e-9a52-8c1f0d6a9e01")

func demoModuleTypes() []*pagemodules.ModuleType {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*pagemodules.ModuleType{
		{
			ID:          uuid.MustParse("0d3c8c52-8d7e-4c52-b1f3-3c1b8a0e1001"),
			Name:        "section",
			DisplayName: "Section",
			Description: "Container for other modules",
			IconClass:   "icon-section",
			IsActive:    true,
			SortOrder:   0,
			Schema: map[string]interface{}{
				"$defs": map[string]interface{}{
					"attributes": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"layout": map[string]interface{}{"type": "string", "enum": []interface{}{"stack", "grid"}},
						},
					},
				},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:           uuid.MustParse("0d3c8c52-8d7e-4c52-b1f3-3c1b8a0e1002"),
			Name:         "hero",
			DisplayName:  "Hero",
			Description:  "Large banner with headline",
			IconClass:    "icon-hero",
			TemplatePath: "modules/hero.html",
			IsActive:     true,
			SortOrder:    1,
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"headline": map[string]interface{}{"type": "string", "maxLength": 200},
					"image":    map[string]interface{}{"type": "string"},
				},
				"additionalProperties": false,
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:           uuid.MustParse("0d3c8c52-8d7e-4c52-b1f3-3c1b8a0e1003"),
			Name:         "text",
			DisplayName:  "Text",
			IconClass:    "icon-text",
			TemplatePath: "modules/text.html",
			IsActive:     true,
			SortOrder:    2,
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"body": map[string]interface{}{"type": "string"},
				},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:           uuid.MustParse("0d3c8c52-8d7e-4c52-b1f3-3c1b8a0e1004"),
			Name:         "gallery",
			DisplayName:  "Gallery",
			IconClass:    "icon-gallery",
			TemplatePath: "modules/gallery.html",
			IsActive:     true,
			SortOrder:    3,
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"images":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"columns": map[string]interface{}{"type": "integer", "enum": []interface{}{2, 3, 4}},
				},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
	}
}

// seedDemoData registers a demo content entity and the demo type catalog.
// Only the in-memory database is seeded.
func seedDemoData(repo pagemodules.Repository) error {
	mem, ok := repo.(*memory.Repository)
	if !ok {
		return errors.New("demo data is only seeded into the memory database")
	}
	mem.RegisterContent(demoContentID)
	for _, mt := range demoModuleTypes() {
		mem.SaveModuleType(mt)
	}
	slog.Info("Demo data seeded", "content_id", demoContentID, "module_types", len(demoModuleTypes()))
	return nil
}
