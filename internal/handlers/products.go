package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/guilucasv/teodorofit/internal/inventory"
	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
	"github.com/nfnt/resize"
)

type ProductHandler struct {
	Store     *store.Store
	UploadDir string
}

// List handles GET /api/products (public).
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.GetAllProducts()
	if err != nil {
		slog.Error("Failed to list products", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao carregar produtos")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// Create handles POST /api/products (admin). Accepts a multipart form with
// product fields and an optional image, which is downscaled to 800px JPEG.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB
		errorJSON(w, http.StatusBadRequest, "Formulário inválido ou arquivo grande demais (máx 10MB)")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		errorJSON(w, http.StatusBadRequest, "Título é obrigatório")
		return
	}
	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil || price <= 0 {
		errorJSON(w, http.StatusBadRequest, "Preço inválido")
		return
	}
	quantity := 0
	if q := r.FormValue("quantity"); q != "" {
		quantity, err = strconv.Atoi(q)
		if err != nil || quantity < 0 {
			errorJSON(w, http.StatusBadRequest, "Quantidade inválida")
			return
		}
	}
	threshold := inventory.DefaultLowStockThreshold
	if t := r.FormValue("low_stock_threshold"); t != "" {
		threshold, err = strconv.Atoi(t)
		if err != nil || threshold < 0 {
			errorJSON(w, http.StatusBadRequest, "Limite de estoque inválido")
			return
		}
	}

	imagePath := r.FormValue("image")
	if file, header, fileErr := r.FormFile("image_file"); fileErr == nil {
		defer file.Close()
		imagePath, err = h.saveImage(file, header.Filename)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	product := &models.Product{
		ID:                "prod-" + uuid.NewString()[:8],
		Title:             title,
		Price:             price,
		Image:             imagePath,
		Description:       r.FormValue("description"),
		Quantity:          quantity,
		Stock:             quantity,
		LowStockThreshold: threshold,
	}

	if err := h.Store.CreateProduct(product); err != nil {
		slog.Error("Failed to create product", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao salvar produto")
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) saveImage(file io.Reader, filename string) (string, error) {
	var img image.Image
	var err error
	switch filepath.Ext(filename) {
	case ".png":
		img, err = png.Decode(file)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	default:
		return "", fmt.Errorf("formato de imagem não suportado (apenas PNG, JPG, JPEG)")
	}
	if err != nil {
		return "", fmt.Errorf("falha ao decodificar imagem")
	}

	// Resize image (max width 800px, preserve aspect ratio)
	newImage := resize.Resize(800, 0, img, resize.Lanczos3)

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("erro ao preparar diretório de upload")
	}
	name := fmt.Sprintf("%s.jpg", uuid.New().String())
	out, err := os.Create(filepath.Join(h.UploadDir, name))
	if err != nil {
		return "", fmt.Errorf("erro ao salvar arquivo de imagem")
	}
	defer out.Close()

	if err := jpeg.Encode(out, newImage, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("erro ao codificar imagem")
	}
	return "/static/uploads/" + name, nil
}

// Delete handles DELETE /api/products/{id} (admin).
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		errorJSON(w, http.StatusBadRequest, "ID inválido")
		return
	}
	if err := h.Store.DeleteProduct(id); err != nil {
		slog.Error("Failed to delete product", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao excluir produto")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetStock handles POST /api/admin/stock: the direct stock override. The
// legacy stock field is mirrored by the store.
func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Quantity *int   `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if req.ID == "" || req.Quantity == nil {
		errorJSON(w, http.StatusBadRequest, "id e quantity são obrigatórios")
		return
	}

	if err := h.Store.SetStock(req.ID, *req.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "Produto não encontrado")
			return
		}
		slog.Error("Failed to set stock", "id", req.ID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao atualizar estoque")
		return
	}

	product, err := h.Store.GetProductByID(req.ID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Erro ao carregar produto")
		return
	}
	writeJSON(w, http.StatusOK, product)
}
