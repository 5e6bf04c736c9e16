package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/repo/memory"
)

// flakyRepo fails every module update once armed
type flakyRepo struct {
	*memory.Repository
	failUpdates bool
}

func (r *flakyRepo) UpdateModule(ctx context.Context, module *pagemodules.PageModule) error {
	if r.failUpdates {
		return errors.New("connection reset")
	}
	return r.Repository.UpdateModule(ctx, module)
}

type handlerFixture struct {
	repo      *flakyRepo
	service   pagemodules.Service
	router    http.Handler
	contentID uuid.UUID
	section   *pagemodules.ModuleType
	banner    *pagemodules.ModuleType
}

// setupModuleHandlerTest creates a ModuleHandler backed by the in-memory repository
func setupModuleHandlerTest(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{repo: &flakyRepo{Repository: memory.New()}, contentID: uuid.New()}
	f.repo.RegisterContent(f.contentID)

	f.section = &pagemodules.ModuleType{ID: uuid.New(), Name: "section", DisplayName: "Section", IsActive: true, SortOrder: 1}
	f.banner = &pagemodules.ModuleType{
		ID: uuid.New(), Name: "banner", DisplayName: "Banner", IsActive: true,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"headline": map[string]interface{}{"type": "string"},
			},
			"additionalProperties": false,
		},
	}
	retired := &pagemodules.ModuleType{ID: uuid.New(), Name: "retired", DisplayName: "Retired", IsActive: false}
	f.repo.SaveModuleType(f.section)
	f.repo.SaveModuleType(f.banner)
	f.repo.SaveModuleType(retired)

	service, err := pagemodules.New(
		pagemodules.WithRepository(f.repo),
		pagemodules.WithEventSink(pagemodules.NewNoopEventSink()),
	)
	require.NoError(t, err)
	f.service = service
	f.router = NewModuleHandler(service).Routes()
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *handlerFixture) insert(t *testing.T, typeID uuid.UUID, parent *uuid.UUID, position *int) uuid.UUID {
	t.Helper()
	body := InsertModuleRequest{ModuleTypeID: typeID.String(), Position: position}
	if parent != nil {
		p := parent.String()
		body.ParentID = &p
	}
	rr := f.do(t, http.MethodPost, "/contents/"+f.contentID.String()+"/modules", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp InsertModuleResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Module.ID
}

func rootIDs(snapshot pagemodules.TreeSnapshot) []uuid.UUID {
	var out []uuid.UUID
	for _, n := range snapshot.Modules {
		out = append(out, n.ID)
	}
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestModuleHandler_ListModuleTypes(t *testing.T) {
	f := setupModuleHandlerTest(t)

	t.Run("active only", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/types?active=true", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var types []pagemodules.ModuleType
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &types))
		require.Len(t, types, 2)
		assert.Equal(t, "banner", types[0].Name)
		assert.Equal(t, "section", types[1].Name)
	})

	t.Run("paged", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/types?skip=1&limit=1", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var types []pagemodules.ModuleType
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &types))
		assert.Len(t, types, 1)
	})

	t.Run("invalid flag", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/types?active=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestModuleHandler_GetModuleType(t *testing.T) {
	f := setupModuleHandlerTest(t)

	rr := f.do(t, http.MethodGet, "/types/"+f.banner.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var mt pagemodules.ModuleType
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mt))
	assert.Equal(t, f.banner.ID, mt.ID)

	rr = f.do(t, http.MethodGet, "/types/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/types/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestModuleHandler_GetTree(t *testing.T) {
	f := setupModuleHandlerTest(t)

	rr := f.do(t, http.MethodGet, "/contents/"+f.contentID.String()+"/tree", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snapshot pagemodules.TreeSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	assert.Equal(t, f.contentID, snapshot.ContentID)
	assert.Empty(t, snapshot.Modules)

	rr = f.do(t, http.MethodGet, "/contents/"+uuid.NewString()+"/tree", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeError(t, rr).Error.Code)
}

func TestModuleHandler_InsertAndMove(t *testing.T) {
	f := setupModuleHandlerTest(t)

	a := f.insert(t, f.section.ID, nil, nil)
	b := f.insert(t, f.section.ID, nil, nil)
	c := f.insert(t, f.section.ID, nil, nil)

	rr := f.do(t, http.MethodPost, "/contents/"+f.contentID.String()+"/modules/"+c.String()+"/move",
		MoveModuleRequest{Position: 0})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var snapshot pagemodules.TreeSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	assert.Equal(t, []uuid.UUID{c, a, b}, rootIDs(snapshot))
	for i, n := range snapshot.Modules {
		assert.Equal(t, i, n.Order)
	}

	t.Run("nested insert", func(t *testing.T) {
		child := f.insert(t, f.banner.ID, &a, nil)

		rr := f.do(t, http.MethodGet, "/contents/"+f.contentID.String()+"/modules/"+child.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var module ModuleResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &module))
		require.NotNil(t, module.ParentID)
		assert.Equal(t, a, *module.ParentID)
		assert.Equal(t, "banner", module.ModuleType.Name)
	})

	t.Run("move into own subtree", func(t *testing.T) {
		child := f.insert(t, f.section.ID, &b, nil)
		p := child.String()
		rr := f.do(t, http.MethodPost, "/contents/"+f.contentID.String()+"/modules/"+b.String()+"/move",
			MoveModuleRequest{ParentID: &p, Position: 0})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "invalid_parent", decodeError(t, rr).Error.Code)
	})
}

func TestModuleHandler_InsertRejections(t *testing.T) {
	f := setupModuleHandlerTest(t)
	path := "/contents/" + f.contentID.String() + "/modules"

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "unknown type",
			body:   InsertModuleRequest{ModuleTypeID: uuid.NewString()},
			status: http.StatusUnprocessableEntity,
			code:   "invalid_type",
		},
		{
			name:   "missing parent",
			body:   InsertModuleRequest{ModuleTypeID: f.section.ID.String(), ParentID: ptr(uuid.NewString())},
			status: http.StatusUnprocessableEntity,
			code:   "invalid_parent",
		},
		{
			name:   "malformed type id",
			body:   InsertModuleRequest{ModuleTypeID: "nope"},
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "malformed body",
			body:   "not an object",
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, path, tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Error.Code)
		})
	}

	rr := f.do(t, http.MethodGet, "/contents/"+f.contentID.String()+"/tree", nil)
	var snapshot pagemodules.TreeSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	assert.Empty(t, snapshot.Modules)
}

func TestModuleHandler_ReorderFailure(t *testing.T) {
	f := setupModuleHandlerTest(t)

	a := f.insert(t, f.section.ID, nil, nil)
	b := f.insert(t, f.section.ID, nil, nil)

	f.repo.failUpdates = true
	rr := f.do(t, http.MethodPost, "/contents/"+f.contentID.String()+"/modules/"+b.String()+"/move",
		MoveModuleRequest{Position: 0})
	require.Equal(t, http.StatusConflict, rr.Code)

	body := decodeError(t, rr)
	assert.Equal(t, "reorder_failed", body.Error.Code)
	require.NotNil(t, body.Error.Tree)
	assert.Equal(t, []uuid.UUID{a, b}, rootIDs(*body.Error.Tree))
}

func TestModuleHandler_EditAttributes(t *testing.T) {
	f := setupModuleHandlerTest(t)
	id := f.insert(t, f.section.ID, nil, nil)
	path := "/contents/" + f.contentID.String() + "/modules/" + id.String()

	inactive := false
	rr := f.do(t, http.MethodPatch, path, EditAttributesRequest{
		CSSClasses: []string{" wide ", "wide", "dark"},
		IsActive:   &inactive,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var snapshot pagemodules.TreeSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	require.Len(t, snapshot.Modules, 1)
	assert.Equal(t, []string{"wide", "dark"}, snapshot.Modules[0].CSSClasses)
	assert.False(t, snapshot.Modules[0].IsActive)

	rr = f.do(t, http.MethodPatch, "/contents/"+f.contentID.String()+"/modules/"+uuid.NewString(), EditAttributesRequest{})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestModuleHandler_RemoveModule(t *testing.T) {
	f := setupModuleHandlerTest(t)
	parent := f.insert(t, f.section.ID, nil, nil)
	f.insert(t, f.section.ID, &parent, nil)
	sibling := f.insert(t, f.section.ID, nil, nil)

	rr := f.do(t, http.MethodDelete, "/contents/"+f.contentID.String()+"/modules/"+parent.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var snapshot pagemodules.TreeSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	require.Len(t, snapshot.Modules, 1)
	assert.Equal(t, sibling, snapshot.Modules[0].ID)
	assert.Equal(t, 0, snapshot.Modules[0].Order)

	mods, err := f.repo.ListModulesByContent(context.Background(), f.contentID)
	require.NoError(t, err)
	assert.Len(t, mods, 1)
}

func TestModuleHandler_ModuleData(t *testing.T) {
	f := setupModuleHandlerTest(t)
	id := f.insert(t, f.banner.ID, nil, nil)
	base := "/modules/" + id.String() + "/data"

	rr := f.do(t, http.MethodPut, base+"/headline", UpsertDataRequest{Value: "Welcome"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var stored pagemodules.ModuleData
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stored))
	assert.Equal(t, "headline", stored.DataKey)
	assert.Equal(t, "Welcome", stored.DataValue)

	rr = f.do(t, http.MethodPut, base+"/headline", UpsertDataRequest{Value: 42})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "invalid_data", decodeError(t, rr).Error.Code)

	rr = f.do(t, http.MethodPut, base+"/subtitle", UpsertDataRequest{Value: "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))
	assert.Equal(t, map[string]interface{}{"headline": "Welcome"}, data)

	rr = f.do(t, http.MethodGet, "/modules/"+uuid.NewString()+"/data", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestModuleHandler_PublishWithoutStore(t *testing.T) {
	f := setupModuleHandlerTest(t)
	rr := f.do(t, http.MethodPost, "/contents/"+f.contentID.String()+"/tree/publish", nil)
	assert.GreaterOrEqual(t, rr.Code, http.StatusInternalServerError)
}

func TestModuleHandler_ReloadTree(t *testing.T) {
	f := setupModuleHandlerTest(t)
	f.insert(t, f.section.ID, nil, nil)

	rr := f.do(t, http.MethodPost, "/contents/"+f.contentID.String()+"/tree/reload", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snapshot pagemodules.TreeSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot.Modules, 1)
}

func ptr[T any](v T) *T {
	return &v
}
