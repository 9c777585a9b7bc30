package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// filterable maps query keys to store fields and their value parser.
var filterable = map[string]struct {
	field repositories.Field
	parse func(string) (any, error)
}{
	"name":     {repositories.FieldName, parseString},
	"sku":      {repositories.FieldSKU, parseString},
	"userId":   {repositories.FieldUserID, parseString},
	"quantity": {repositories.FieldQuantity, parseInt},
	"price":    {repositories.FieldPrice, parseFloat},
}

var sortable = map[string]repositories.Field{
	"name":      repositories.FieldName,
	"price":     repositories.FieldPrice,
	"quantity":  repositories.FieldQuantity,
	"createdAt": repositories.FieldCreatedAt,
}

func parseString(s string) (any, error) { return s, nil }
func parseInt(s string) (any, error)    { return strconv.Atoi(s) }
func parseFloat(s string) (any, error)  { return strconv.ParseFloat(s, 64) }

// ListQuery is a raw list request. Filters holds equality filters keyed by
// their public name; Sort is "field" or "-field".
type ListQuery struct {
	Filters map[string]string
	Search  string
	Sort    string
	Limit   int
	Page    int
}

// ProductPage is one page of enriched products.
type ProductPage struct {
	Items []models.ProductView `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Pages int                  `json:"pages"`
}

// List returns one page of products, each enriched for viewerID. An empty
// page is not an error.
func (s *ProductService) List(ctx context.Context, viewerID string, q ListQuery) (ProductPage, error) {
	query, err := buildQuery(q)
	if err != nil {
		return ProductPage{}, err
	}

	items, total, err := s.products.List(ctx, query)
	if err != nil {
		return ProductPage{}, apperr.Internal("Failed to list products", err)
	}

	page := ProductPage{
		Items: make([]models.ProductView, 0, len(items)),
		Total: total,
		Page:  query.Offset/query.Limit + 1,
		Limit: query.Limit,
		Pages: int((total + int64(query.Limit) - 1) / int64(query.Limit)),
	}

	owners := make(map[string]*models.PublicUser)
	for _, p := range items {
		v, err := s.view(ctx, viewerID, p, owners)
		if err != nil {
			return ProductPage{}, err
		}
		page.Items = append(page.Items, v)
	}
	return page, nil
}

func buildQuery(q ListQuery) (repositories.ProductQuery, error) {
	out := repositories.ProductQuery{
		Filters: make(map[repositories.Field]any, len(q.Filters)),
		Search:  strings.TrimSpace(q.Search),
		Sort:    repositories.FieldCreatedAt,
		Desc:    true,
	}

	bad := map[string]string{}
	for key, raw := range q.Filters {
		f, ok := filterable[key]
		if !ok {
			bad[key] = "unknown filter"
			continue
		}
		v, err := f.parse(raw)
		if err != nil {
			bad[key] = fmt.Sprintf("invalid value %q", raw)
			continue
		}
		out.Filters[f.field] = v
	}

	if q.Sort != "" {
		name, desc := strings.TrimPrefix(q.Sort, "-"), strings.HasPrefix(q.Sort, "-")
		field, ok := sortable[name]
		if !ok {
			bad["sort"] = "must be one of name, price, quantity, createdAt"
		}
		out.Sort, out.Desc = field, desc
	}

	if len(bad) > 0 {
		return repositories.ProductQuery{}, apperr.Validation("Invalid list query", bad)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	out.Limit = limit
	out.Offset = (page - 1) * limit
	return out, nil
}
