package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"backoffice.dev/internal/access"
)

type customerRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone1 string `json:"phone1"`
	Phone2 string `json:"phone2"`
	City   string `json:"city"`
	Notes  string `json:"notes"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (a *API) handleCustomersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCustomers(w, r)
	case http.MethodPost:
		a.createCustomer(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCustomerResource(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := pathID(r.URL.Path, "/v1/customers/")
	if !ok || rest != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getCustomer(w, r, id)
	case http.MethodPut:
		a.updateCustomer(w, r, id)
	case http.MethodDelete:
		a.deleteCustomer(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listCustomers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.ModuleCustomers, access.ActionView); !ok {
		return
	}
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customers, total, err := a.admin.ListCustomers(r.Context(), filter)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if customers == nil {
		customers = []access.Customer{}
	}
	writeJSON(w, http.StatusOK, listResponse[access.Customer]{Items: customers, Total: total})
}

func (a *API) getCustomer(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := a.requirePermission(w, r, access.ModuleCustomers, access.ActionView); !ok {
		return
	}
	customer, err := a.admin.GetCustomer(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requirePermission(w, r, access.ModuleCustomers, access.ActionCreate)
	if !ok {
		return
	}
	var req customerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.admin.CreateCustomer(r.Context(), access.Customer{
		Name:   req.Name,
		Email:  req.Email,
		Phone1: req.Phone1,
		Phone2: req.Phone2,
		City:   req.City,
		Notes:  req.Notes,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "CREATE_CUSTOMER", access.ModuleCustomers,
		fmt.Sprintf("customer %d: %s", customer.ID, customer.Name))
	w.Header().Set("Location", "/v1/customers/"+strconv.FormatInt(customer.ID, 10))
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) updateCustomer(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleCustomers, access.ActionEdit)
	if !ok {
		return
	}
	var req customerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.admin.UpdateCustomer(r.Context(), access.Customer{
		ID:     id,
		Name:   req.Name,
		Email:  req.Email,
		Phone1: req.Phone1,
		Phone2: req.Phone2,
		City:   req.City,
		Notes:  req.Notes,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "UPDATE_CUSTOMER", access.ModuleCustomers,
		fmt.Sprintf("customer %d: %s", customer.ID, customer.Name))
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) deleteCustomer(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleCustomers, access.ActionDelete)
	if !ok {
		return
	}
	if err := a.admin.DeleteCustomer(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "DELETE_CUSTOMER", access.ModuleCustomers,
		fmt.Sprintf("customer %d", id))
	w.WriteHeader(http.StatusNoContent)
}
