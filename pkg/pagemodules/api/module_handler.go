package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/page-modules/pkg/pagemodules"
)

// InsertModuleRequest is the request body for placing a module. A missing
// position appends to the sibling group.
type InsertModuleRequest struct {
	ModuleTypeID     string                 `json:"module_type_id"`
	ParentID         *string                `json:"parent_id,omitempty"`
	Position         *int                   `json:"position,omitempty"`
	CSSClasses       []string               `json:"css_classes,omitempty"`
	CustomAttributes map[string]interface{} `json:"custom_attributes,omitempty"`
	IsActive         *bool                  `json:"is_active,omitempty"`
}

// MoveModuleRequest is the request body for a drag-and-drop move. A missing
// parent_id targets the root group.
type MoveModuleRequest struct {
	ParentID *string `json:"parent_id,omitempty"`
	Position int     `json:"position"`
}

// EditAttributesRequest is the request body for a partial attribute edit.
// Absent or null fields are left unchanged.
type EditAttributesRequest struct {
	CSSClasses       []string               `json:"css_classes"`
	CustomAttributes map[string]interface{} `json:"custom_attributes"`
	IsActive         *bool                  `json:"is_active,omitempty"`
}

// UpsertDataRequest is the request body for writing one data value
type UpsertDataRequest struct {
	Value interface{} `json:"value"`
}

// ModuleResponse is one module with its resolved type and data
type ModuleResponse struct {
	pagemodules.PageModule
	ModuleType *pagemodules.ModuleType `json:"module_type,omitempty"`
	Data       map[string]interface{}  `json:"data"`
}

// InsertModuleResponse is the response body of an insert
type InsertModuleResponse struct {
	Module ModuleResponse            `json:"module"`
	Tree   *pagemodules.TreeSnapshot `json:"tree"`
}

// ModuleHandler exposes the composition engine over HTTP
type ModuleHandler struct {
	service pagemodules.Service
}

// NewModuleHandler creates a new module handler
func NewModuleHandler(service pagemodules.Service) *ModuleHandler {
	return &ModuleHandler{service: service}
}

// Routes returns the routes of the engine
func (h *ModuleHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/types", h.ListModuleTypes)
	r.Get("/types/{typeID}", h.GetModuleType)

	r.Route("/contents/{contentID}", func(r chi.Router) {
		r.Get("/tree", h.GetTree)
		r.Post("/tree/reload", h.ReloadTree)
		r.Post("/tree/publish", h.PublishTree)

		r.Post("/modules", h.InsertModule)
		r.Get("/modules/{moduleID}", h.GetModule)
		r.Patch("/modules/{moduleID}", h.EditAttributes)
		r.Delete("/modules/{moduleID}", h.RemoveModule)
		r.Post("/modules/{moduleID}/move", h.MoveModule)
	})

	r.Get("/modules/{moduleID}/data", h.ListModuleData)
	r.Put("/modules/{moduleID}/data/{key}", h.UpsertModuleData)

	return r
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.Error("Invalid id", "param", param, "value", raw, "error", err)
		badRequest(w, r, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ListModuleTypes lists the catalog. Query: active, skip, limit.
func (h *ModuleHandler) ListModuleTypes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pagemodules.ListModuleTypesRequest{}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, "invalid active flag")
			return
		}
		req.IsActive = &active
	}
	for name, dst := range map[string]*int{"skip": &req.Skip, "limit": &req.Limit} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(w, r, "invalid "+name)
				return
			}
			*dst = n
		}
	}

	types, err := h.service.ListModuleTypes(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if types == nil {
		types = []*pagemodules.ModuleType{}
	}
	render.JSON(w, r, types)
}

// GetModuleType returns one catalog entry
func (h *ModuleHandler) GetModuleType(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "typeID")
	if !ok {
		return
	}
	mt, err := h.service.GetModuleType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, mt)
}

// GetTree returns the nested module tree of a content entity
func (h *ModuleHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	tree, err := h.service.GetTree(r.Context(), contentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, tree.Snapshot())
}

// ReloadTree discards the session tree and reloads it from storage
func (h *ModuleHandler) ReloadTree(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	tree, err := h.service.ReloadTree(r.Context(), contentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, tree.Snapshot())
}

// PublishTree writes the current tree to the snapshot store
func (h *ModuleHandler) PublishTree(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	if err := h.service.PublishTree(r.Context(), contentID); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Tree published", "content_id", contentID)
	w.WriteHeader(http.StatusNoContent)
}

// InsertModule places a new module
func (h *ModuleHandler) InsertModule(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	var body InsertModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	typeID, err := uuid.Parse(body.ModuleTypeID)
	if err != nil {
		badRequest(w, r, "invalid module_type_id")
		return
	}
	parentID, err := parseOptionalID(body.ParentID)
	if err != nil {
		badRequest(w, r, "invalid parent_id")
		return
	}
	position := math.MaxInt
	if body.Position != nil {
		position = *body.Position
	}

	node, tree, err := h.service.ApplyInsert(r.Context(), pagemodules.InsertModuleRequest{
		ContentID:        contentID,
		ParentID:         parentID,
		ModuleTypeID:     typeID,
		Position:         position,
		CSSClasses:       body.CSSClasses,
		CustomAttributes: body.CustomAttributes,
		IsActive:         body.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Module inserted", "content_id", contentID, "module_id", node.Module.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, InsertModuleResponse{Module: moduleResponse(node), Tree: tree.Snapshot()})
}

// GetModule returns one module of a content entity
func (h *ModuleHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	moduleID, ok := parseID(w, r, "moduleID")
	if !ok {
		return
	}
	node, err := h.service.GetModule(r.Context(), contentID, moduleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, moduleResponse(node))
}

// EditAttributes applies a partial attribute edit
func (h *ModuleHandler) EditAttributes(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	moduleID, ok := parseID(w, r, "moduleID")
	if !ok {
		return
	}
	var body EditAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tree, err := h.service.ApplyAttributeEdit(r.Context(), pagemodules.EditAttributesRequest{
		ContentID: contentID,
		ModuleID:  moduleID,
		Edit: pagemodules.AttributeEdit{
			CSSClasses:       body.CSSClasses,
			CustomAttributes: body.CustomAttributes,
			IsActive:         body.IsActive,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, tree.Snapshot())
}

// RemoveModule deletes a module and its subtree
func (h *ModuleHandler) RemoveModule(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	moduleID, ok := parseID(w, r, "moduleID")
	if !ok {
		return
	}
	tree, err := h.service.ApplyRemove(r.Context(), pagemodules.RemoveModuleRequest{ContentID: contentID, ModuleID: moduleID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Module removed", "content_id", contentID, "module_id", moduleID)
	render.JSON(w, r, tree.Snapshot())
}

// MoveModule relocates a module
func (h *ModuleHandler) MoveModule(w http.ResponseWriter, r *http.Request) {
	contentID, ok := parseID(w, r, "contentID")
	if !ok {
		return
	}
	moduleID, ok := parseID(w, r, "moduleID")
	if !ok {
		return
	}
	var body MoveModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	parentID, err := parseOptionalID(body.ParentID)
	if err != nil {
		badRequest(w, r, "invalid parent_id")
		return
	}

	tree, err := h.service.ApplyMove(r.Context(), pagemodules.MoveModuleRequest{
		ContentID:   contentID,
		ModuleID:    moduleID,
		NewParentID: parentID,
		Position:    body.Position,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, tree.Snapshot())
}

// ListModuleData returns the data of one module keyed by data key
func (h *ModuleHandler) ListModuleData(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := parseID(w, r, "moduleID")
	if !ok {
		return
	}
	data, err := h.service.ListModuleData(r.Context(), moduleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, data)
}

// UpsertModuleData writes one data value
func (h *ModuleHandler) UpsertModuleData(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := parseID(w, r, "moduleID")
	if !ok {
		return
	}
	var body UpsertDataRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	stored, err := h.service.UpsertModuleData(r.Context(), pagemodules.UpsertModuleDataRequest{
		ModuleID: moduleID,
		Key:      chi.URLParam(r, "key"),
		Value:    body.Value,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, stored)
}

func moduleResponse(n *pagemodules.Node) ModuleResponse {
	return ModuleResponse{PageModule: n.Module, ModuleType: n.Type, Data: n.Data}
}
