package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"tienda/pkg/catalog"
	"tienda/pkg/fulfillment"
	"tienda/pkg/images"
	"tienda/pkg/order"
	"tienda/pkg/otel"
	"tienda/pkg/receipt"
)

// loginRequest represents login credentials.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// createProductRequest carries the fields for a new product. Name and price
// are pointers so a missing field can be told apart from a zero value.
type createProductRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Category string           `json:"category"`
	Stock    int              `json:"stock"`
}

// submitOrderRequest is the cart submitted by a client.
type submitOrderRequest struct {
	Customer string                    `json:"customer"`
	Account  string                    `json:"account"`
	Lines    []fulfillment.LineRequest `json:"lines"`
}

func errorJSON(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func productID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// loginHandler handles user login and session creation.
// @Summary Login
// @Description Authenticates user and sets session cookie
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200
// @Router /login [post]
func loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errorJSON(w, "invalid credentials", http.StatusBadRequest)
		return
	}
	sid := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := redisClient.Set(ctx, "session:"+sid, req.Username, time.Hour).Err(); err != nil {
		errorJSON(w, "session error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: sid, Path: "/", Expires: time.Now().Add(time.Hour), HttpOnly: true})
	w.WriteHeader(http.StatusOK)
}

// authMiddleware ensures a valid session exists.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session_id")
		if err != nil {
			errorJSON(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		user, err := redisClient.Get(r.Context(), "session:"+c.Value).Result()
		if err != nil || user == "" {
			errorJSON(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), "user", user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// listProductsHandler lists all products.
// @Summary List products
// @Produce json
// @Success 200 {array} catalog.Product
// @Router /api/products [get]
func listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listProductsHandler")
	defer span.End()

	products, err := catalogRepo.List(ctx)
	if err != nil {
		log.Error(ctx, "list products", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

// getProductHandler retrieves a product by ID.
// @Summary Get product
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} catalog.Product
// @Router /api/products/{id} [get]
func getProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getProductHandler")
	defer span.End()

	p, err := catalogRepo.Get(ctx, productID(r))
	if errors.Is(err, catalog.ErrNotFound) {
		errorJSON(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "get product", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// createProductHandler creates a new product.
// @Summary Create product
// @Accept json
// @Produce json
// @Param product body createProductRequest true "Product"
// @Success 201 {object} catalog.Product
// @Security ApiKeyAuth
// @Router /api/admin/products [post]
func createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createProductHandler")
	defer span.End()

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == nil || req.Price == nil {
		errorJSON(w, "name and price are required", http.StatusBadRequest)
		return
	}
	p, err := catalogRepo.Create(ctx, catalog.Product{
		Name:     *req.Name,
		Price:    *req.Price,
		Category: req.Category,
		Stock:    req.Stock,
	})
	if errors.Is(err, catalog.ErrInvalidProduct) {
		errorJSON(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error(ctx, "create product", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

// updateProductHandler applies a partial update to an existing product.
// @Summary Update product
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param patch body catalog.Patch true "Fields to update"
// @Success 200 {object} catalog.Product
// @Security ApiKeyAuth
// @Router /api/admin/products/{id} [put]
func updateProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateProductHandler")
	defer span.End()

	var patch catalog.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		errorJSON(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := catalogRepo.Update(ctx, productID(r), patch)
	if errors.Is(err, catalog.ErrNotFound) {
		errorJSON(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "update product", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// deleteProductHandler removes a product and its stored image.
// @Summary Delete product
// @Param id path int true "Product ID"
// @Success 204
// @Security ApiKeyAuth
// @Router /api/admin/products/{id} [delete]
func deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteProductHandler")
	defer span.End()

	id := productID(r)
	err := catalogRepo.Delete(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		errorJSON(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "delete product", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	if err := imageStore.Remove(id); err != nil && !errors.Is(err, images.ErrNotFound) {
		log.Error(ctx, "remove product image", "id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadImageHandler stores the uploaded image for a product.
// @Summary Upload product image
// @Accept mpfd
// @Param id path int true "Product ID"
// @Param imagen formData file true "Image file"
// @Success 200
// @Security ApiKeyAuth
// @Router /api/admin/upload/{id} [post]
func uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "uploadImageHandler")
	defer span.End()

	id := productID(r)
	if _, err := catalogRepo.Get(ctx, id); errors.Is(err, catalog.ErrNotFound) {
		errorJSON(w, "product not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Error(ctx, "get product", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}

	file, _, err := r.FormFile("imagen")
	if err != nil {
		errorJSON(w, "no file received", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ref, err := imageStore.Save(id, file)
	if err != nil {
		log.Error(ctx, "save image", "id", id, "error", err)
		errorJSON(w, "image error", http.StatusInternalServerError)
		return
	}
	if _, err := catalogRepo.Update(ctx, id, catalog.Patch{ImageRef: &ref}); err != nil {
		log.Error(ctx, "update image ref", "id", id, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// deleteImageHandler removes a product's stored image.
// @Summary Delete product image
// @Param id path int true "Product ID"
// @Success 204
// @Security ApiKeyAuth
// @Router /api/admin/upload/{id} [delete]
func deleteImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteImageHandler")
	defer span.End()

	id := productID(r)
	err := imageStore.Remove(id)
	if errors.Is(err, images.ErrNotFound) {
		errorJSON(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "remove image", "id", id, "error", err)
		errorJSON(w, "image error", http.StatusInternalServerError)
		return
	}
	empty := ""
	if _, err := catalogRepo.Update(ctx, id, catalog.Patch{ImageRef: &empty}); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		log.Error(ctx, "clear image ref", "id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitOrderHandler fulfills a submitted cart.
// @Summary Submit order
// @Accept json
// @Produce json
// @Param order body submitOrderRequest true "Cart"
// @Success 201 {object} order.Order
// @Router /api/orders [post]
func submitOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "submitOrderHandler")
	defer span.End()

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Lines) == 0 {
		errorJSON(w, "order must contain lines", http.StatusBadRequest)
		return
	}
	o, err := engine.SubmitOrder(ctx, fulfillment.Submission{
		Customer: req.Customer,
		Account:  req.Account,
		Lines:    req.Lines,
	})
	if errors.Is(err, fulfillment.ErrEmptyOrder) {
		errorJSON(w, "no fulfillable lines", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error(ctx, "submit order", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(o)
}

// listOrdersHandler lists all orders.
// @Summary List orders
// @Produce json
// @Success 200 {array} order.Order
// @Security ApiKeyAuth
// @Router /api/admin/orders [get]
func listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listOrdersHandler")
	defer span.End()

	orders, err := orderRepo.List(ctx)
	if err != nil {
		log.Error(ctx, "list orders", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// customerOrdersHandler lists orders for one customer.
// @Summary List customer orders
// @Produce json
// @Param customer path string true "Customer"
// @Success 200 {array} order.Order
// @Router /api/customers/{customer}/orders [get]
func customerOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "customerOrdersHandler")
	defer span.End()

	orders, err := orderRepo.ListByCustomer(ctx, mux.Vars(r)["customer"])
	if err != nil {
		log.Error(ctx, "list customer orders", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// getOrderHandler retrieves an order by ID.
// @Summary Get order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} order.Order
// @Router /api/orders/{id} [get]
func getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	o, err := orderRepo.Get(ctx, mux.Vars(r)["id"])
	if errors.Is(err, order.ErrNotFound) {
		errorJSON(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "get order", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

// cancelOrderHandler cancels an order, restoring catalog stock.
// @Summary Cancel order
// @Param id path string true "Order ID"
// @Success 204
// @Router /api/orders/{id} [delete]
func cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "cancelOrderHandler")
	defer span.End()

	err := engine.CancelOrder(ctx, mux.Vars(r)["id"])
	if errors.Is(err, order.ErrNotFound) {
		errorJSON(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "cancel order", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// receiptHandler renders a plain-text receipt for a committed order.
// @Summary Order receipt
// @Produce plain
// @Param id path string true "Order ID"
// @Success 200 {string} string
// @Router /api/orders/{id}/receipt [get]
func receiptHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "receiptHandler")
	defer span.End()

	o, err := orderRepo.Get(ctx, mux.Vars(r)["id"])
	if errors.Is(err, order.ErrNotFound) {
		errorJSON(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error(ctx, "get order", "error", err)
		errorJSON(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := receipt.Render(w, o); err != nil {
		log.Error(ctx, "render receipt", "error", err)
	}
}
