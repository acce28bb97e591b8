package products

// Product is an ebook in the catalog table.
type Product struct {
	ID                 string  `dynamodbav:"id" json:"id"` // PK
	Title              string  `dynamodbav:"title" json:"title"`
	Author             string  `dynamodbav:"author,omitempty" json:"author,omitempty"`
	Price              float64 `dynamodbav:"price" json:"price"`
	Description        string  `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Category           string  `dynamodbav:"category,omitempty" json:"category,omitempty"`
	CoverURL           string  `dynamodbav:"cover_url,omitempty" json:"cover_url,omitempty"`
	FileURL            string  `dynamodbav:"file_url,omitempty" json:"file_url,omitempty"`
	Pages              int     `dynamodbav:"pages,omitempty" json:"pages,omitempty"`
	Language           string  `dynamodbav:"language,omitempty" json:"language,omitempty"`
	Publisher          string  `dynamodbav:"publisher,omitempty" json:"publisher,omitempty"`
	KiwifyCheckoutLink string  `dynamodbav:"kiwify_checkout_link,omitempty" json:"kiwify_checkout_link,omitempty"`
	CreatedAt          string  `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt          string  `dynamodbav:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Update carries a partial product update; nil fields are left untouched.
type Update struct {
	Title              *string
	Author             *string
	Price              *float64
	Description        *string
	Category           *string
	CoverURL           *string
	FileURL            *string
	Pages              *int
	Language           *string
	Publisher          *string
	KiwifyCheckoutLink *string
}
