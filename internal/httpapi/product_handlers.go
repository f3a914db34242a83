package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"backoffice.dev/internal/access"
)

type productRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func (a *API) handleProductsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProducts(w, r)
	case http.MethodPost:
		a.createProduct(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProductResource(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := pathID(r.URL.Path, "/v1/products/")
	if !ok || rest != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getProduct(w, r, id)
	case http.MethodPut:
		a.updateProduct(w, r, id)
	case http.MethodDelete:
		a.deleteProduct(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.ModuleProducts, access.ActionView); !ok {
		return
	}
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	products, total, err := a.admin.ListProducts(r.Context(), filter)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if products == nil {
		products = []access.Product{}
	}
	writeJSON(w, http.StatusOK, listResponse[access.Product]{Items: products, Total: total})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := a.requirePermission(w, r, access.ModuleProducts, access.ActionView); !ok {
		return
	}
	product, err := a.admin.GetProduct(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requirePermission(w, r, access.ModuleProducts, access.ActionCreate)
	if !ok {
		return
	}
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	product, err := a.admin.CreateProduct(r.Context(), access.Product{
		Name:       req.Name,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "CREATE_PRODUCT", access.ModuleProducts,
		fmt.Sprintf("product %d: %s", product.ID, product.Name))
	w.Header().Set("Location", "/v1/products/"+strconv.FormatInt(product.ID, 10))
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleProducts, access.ActionEdit)
	if !ok {
		return
	}
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	product, err := a.admin.UpdateProduct(r.Context(), access.Product{
		ID:         id,
		Name:       req.Name,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "UPDATE_PRODUCT", access.ModuleProducts,
		fmt.Sprintf("product %d: %s", product.ID, product.Name))
	writeJSON(w, http.StatusOK, product)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleProducts, access.ActionDelete)
	if !ok {
		return
	}
	if err := a.admin.DeleteProduct(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "DELETE_PRODUCT", access.ModuleProducts,
		fmt.Sprintf("product %d", id))
	w.WriteHeader(http.StatusNoContent)
}
