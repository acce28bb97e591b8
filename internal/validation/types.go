package validation

import "github.com/imrishuroy/go-kiwify-fulfillment/internal/products"

// CreateProductRequest is the payload for POST /products
type CreateProductRequest struct {
	Title              string  `json:"title" validate:"required"`
	Author             string  `json:"author" validate:"required"`
	Price              float64 `json:"price" validate:"gte=0"`
	Description        string  `json:"description"`
	Category           string  `json:"category"`
	CoverURL           string  `json:"cover_url" validate:"omitempty,url"`
	FileURL            string  `json:"file_url" validate:"omitempty,url"`
	Pages              int     `json:"pages" validate:"gte=0"`
	Language           string  `json:"language"`
	Publisher          string  `json:"publisher"`
	KiwifyCheckoutLink string  `json:"kiwify_checkout_link" validate:"omitempty,url"`
}

// Product converts the request into a catalog product.
func (r CreateProductRequest) Product() products.Product {
	return products.Product{
		Title:              r.Title,
		Author:             r.Author,
		Price:              r.Price,
		Description:        r.Description,
		Category:           r.Category,
		CoverURL:           r.CoverURL,
		FileURL:            r.FileURL,
		Pages:              r.Pages,
		Language:           r.Language,
		Publisher:          r.Publisher,
		KiwifyCheckoutLink: r.KiwifyCheckoutLink,
	}
}

// UpdateProductRequest is the payload for PUT /products/:id; absent fields are kept.
type UpdateProductRequest struct {
	Title              *string  `json:"title,omitempty" validate:"omitempty,min=1"`
	Author             *string  `json:"author,omitempty"`
	Price              *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Description        *string  `json:"description,omitempty"`
	Category           *string  `json:"category,omitempty"`
	CoverURL           *string  `json:"cover_url,omitempty" validate:"omitempty,url"`
	FileURL            *string  `json:"file_url,omitempty" validate:"omitempty,url"`
	Pages              *int     `json:"pages,omitempty" validate:"omitempty,gte=0"`
	Language           *string  `json:"language,omitempty"`
	Publisher          *string  `json:"publisher,omitempty"`
	KiwifyCheckoutLink *string  `json:"kiwify_checkout_link,omitempty" validate:"omitempty,url"`
}

// Update converts the request into a partial catalog update.
func (r UpdateProductRequest) Update() products.Update {
	return products.Update{
		Title:              r.Title,
		Author:             r.Author,
		Price:              r.Price,
		Description:        r.Description,
		Category:           r.Category,
		CoverURL:           r.CoverURL,
		FileURL:            r.FileURL,
		Pages:              r.Pages,
		Language:           r.Language,
		Publisher:          r.Publisher,
		KiwifyCheckoutLink: r.KiwifyCheckoutLink,
	}
}

func (r UpdateProductRequest) empty() bool {
	return r.Title == nil && r.Author == nil && r.Price == nil && r.Description == nil &&
		r.Category == nil && r.CoverURL == nil && r.FileURL == nil && r.Pages == nil &&
		r.Language == nil && r.Publisher == nil && r.KiwifyCheckoutLink == nil
}
