package routes

import (
	"net/http"

	"github.com/merlox/ethereum-store/native/catalog"
)

type publishProductRequest struct {
	Title           string   `json:"title"`
	SKU             string   `json:"sku"`
	Description     string   `json:"description"`
	Price           string   `json:"price"`
	Image           string   `json:"image"`
	AttributeNames  []string `json:"attributeNames"`
	AttributeValues []string `json:"attributeValues"`
	Quantity        uint64   `json:"quantity"`
	Barcode         uint64   `json:"barcode"`
}

type createInventoryRequest struct {
	Name string   `json:"name"`
	SKUs []string `json:"skus"`
}

func (h *handlers) publishProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req publishProductRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	product, err := h.market.PublishProduct(caller, catalog.ProductInput{
		Title:           req.Title,
		SKU:             req.SKU,
		Description:     req.Description,
		Price:           price,
		Image:           req.Image,
		AttributeNames:  req.AttributeNames,
		AttributeValues: req.AttributeValues,
		Quantity:        req.Quantity,
		Barcode:         req.Barcode,
	})
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProductView(product))
}

func (h *handlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.DeleteProduct(caller, id); err != nil {
		writeMarketError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	product, err := h.market.Product(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductView(product))
}

func (h *handlers) lastProduct(w http.ResponseWriter, r *http.Request) {
	last, err := h.market.LastID()
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"lastId": last})
}

func (h *handlers) createInventory(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req createInventoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	inv, err := h.market.CreateInventory(caller, req.Name, req.SKUs)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newInventoryView(inv))
}

func (h *handlers) deleteInventory(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.DeleteInventory(caller, id); err != nil {
		writeMarketError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getInventory(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inv, err := h.market.Inventory(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryView(inv))
}

func (h *handlers) lastInventory(w http.ResponseWriter, r *http.Request) {
	last, err := h.market.LastInventoryID()
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"lastId": last})
}
