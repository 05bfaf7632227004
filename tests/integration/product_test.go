//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != seededProducts {
		t.Fatalf("expected %d products, got %d", seededProducts, len(products))
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/watermelon")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	product := decodeJSON[productResponse](t, resp)
	if product.Name != "Watermelon" {
		t.Errorf("name: got %q, want %q", product.Name, "Watermelon")
	}
	if product.Price != 5 {
		t.Errorf("price: got %v, want 5", product.Price)
	}
	if product.Category != "fruit" {
		t.Errorf("category: got %q, want %q", product.Category, "fruit")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/durian")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
