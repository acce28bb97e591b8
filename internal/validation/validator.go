package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns the validator used for catalog requests.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their JSON name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// a product update must change something
	v.RegisterStructValidation(updateProductStructValidation, UpdateProductRequest{})
	// checkout links are matched against Kiwify product ids, so they must point at Kiwify
	v.RegisterStructValidation(createProductStructValidation, CreateProductRequest{})

	return v
}

func updateProductStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateProductRequest)
	if req.empty() {
		sl.ReportError(req, "UpdateProductRequest", "UpdateProductRequest", "at_least_one_field", "")
	}
	if req.KiwifyCheckoutLink != nil && *req.KiwifyCheckoutLink != "" && !isKiwifyLink(*req.KiwifyCheckoutLink) {
		sl.ReportError(req.KiwifyCheckoutLink, "kiwify_checkout_link", "KiwifyCheckoutLink", "kiwify_link", "")
	}
}

func createProductStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateProductRequest)
	if req.KiwifyCheckoutLink != "" && !isKiwifyLink(req.KiwifyCheckoutLink) {
		sl.ReportError(req.KiwifyCheckoutLink, "kiwify_checkout_link", "KiwifyCheckoutLink", "kiwify_link", "")
	}
}

func isKiwifyLink(link string) bool {
	return strings.Contains(strings.ToLower(link), "kiwify.")
}
