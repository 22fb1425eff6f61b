// Package schema builds the read-only GraphQL view of the catalog.
package schema

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/repositories"
	"github.com/shashiranjanraj/ferremas/app/services"
	gql "github.com/shashiranjanraj/ferremas/pkg/graphql"
)

var namedType = func(name string) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.Int, Resolve: idOf},
			"name": &graphql.Field{Type: graphql.String},
		},
	})
}

var (
	categoryType = namedType("Category")
	brandType    = namedType("Brand")
)

var conversionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Conversion",
	Fields: graphql.Fields{
		"amount":   &graphql.Field{Type: graphql.String, Resolve: decimalField(func(c services.Conversion) string { return c.Amount.StringFixed(2) })},
		"currency": &graphql.Field{Type: graphql.String, Resolve: decimalField(func(c services.Conversion) string { return c.Currency })},
		"rate":     &graphql.Field{Type: graphql.String, Resolve: decimalField(func(c services.Conversion) string { return c.Rate.String() })},
	},
})

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.Int, Resolve: idOf},
		"code":        &graphql.Field{Type: graphql.String, Resolve: product(func(p *models.Product) any { return p.Code })},
		"name":        &graphql.Field{Type: graphql.String, Resolve: product(func(p *models.Product) any { return p.Name })},
		"description": &graphql.Field{Type: graphql.String, Resolve: product(func(p *models.Product) any { return p.Description })},
		"price":       &graphql.Field{Type: graphql.String, Resolve: product(func(p *models.Product) any { return p.Price.StringFixed(2) })},
		"stockTotal":  &graphql.Field{Type: graphql.Int, Resolve: product(func(p *models.Product) any { return int(p.StockTotal) })},
		"imageUrl":    &graphql.Field{Type: graphql.String, Resolve: product(func(p *models.Product) any { return p.ImageURL })},
		"brand":       &graphql.Field{Type: brandType, Resolve: product(func(p *models.Product) any {
			if p.Brand == nil {
				return nil
			}
			return p.Brand
		})},
		"category":    &graphql.Field{Type: categoryType, Resolve: product(func(p *models.Product) any {
			if p.Category == nil {
				return nil
			}
			return p.Category
		})},
		"convertedPrice": &graphql.Field{Type: conversionType, Resolve: func(rp graphql.ResolveParams) (interface{}, error) {
			if v, ok := rp.Source.(*services.ProductView); ok && v.ConvertedPrice != nil {
				return *v.ConvertedPrice, nil
			}
			return nil, nil
		}},
	},
})

func asProduct(src any) *models.Product {
	switch p := src.(type) {
	case models.Product:
		return &p
	case *models.Product:
		return p
	case *services.ProductView:
		return &p.Product
	}
	return nil
}

func product(get func(*models.Product) any) graphql.FieldResolveFn {
	return func(rp graphql.ResolveParams) (interface{}, error) {
		p := asProduct(rp.Source)
		if p == nil {
			return nil, nil
		}
		return get(p), nil
	}
}

func decimalField(get func(services.Conversion) string) graphql.FieldResolveFn {
	return func(rp graphql.ResolveParams) (interface{}, error) {
		c, ok := rp.Source.(services.Conversion)
		if !ok {
			return nil, nil
		}
		return get(c), nil
	}
}

func idOf(rp graphql.ResolveParams) (interface{}, error) {
	switch v := rp.Source.(type) {
	case models.Category:
		return int(v.ID), nil
	case *models.Category:
		return int(v.ID), nil
	case models.Brand:
		return int(v.ID), nil
	case *models.Brand:
		return int(v.ID), nil
	}
	if p := asProduct(rp.Source); p != nil {
		return int(p.ID), nil
	}
	return nil, nil
}

func uintArg(args map[string]interface{}, key string) uint {
	if v, ok := args[key].(int); ok && v > 0 {
		return uint(v)
	}
	return 0
}

// Catalog returns the schema answering products, product, categories and
// brands queries.
func Catalog(catalog *services.CatalogService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: graphql.NewList(productType),
				Args: graphql.FieldConfigArgument{
					"search":     &graphql.ArgumentConfig{Type: graphql.String},
					"categoryId": &graphql.ArgumentConfig{Type: graphql.Int},
					"brandId":    &graphql.ArgumentConfig{Type: graphql.Int},
					"page":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(rp graphql.ResolveParams) (interface{}, error) {
					search, _ := rp.Args["search"].(string)
					page, _ := rp.Args["page"].(int)
					limit, _ := rp.Args["limit"].(int)
					rows, _, err := catalog.Products(rp.Context, repositories.ProductFilter{
						Search:     search,
						CategoryID: uintArg(rp.Args, "categoryId"),
						BrandID:    uintArg(rp.Args, "brandId"),
					}, page, limit)
					return rows, err
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"currency": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(rp graphql.ResolveParams) (interface{}, error) {
					currency, _ := rp.Args["currency"].(string)
					v, err := catalog.Product(rp.Context, uintArg(rp.Args, "id"), currency)
					if errors.Is(err, services.ErrNotFound) {
						return nil, nil
					}
					return v, err
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(categoryType),
				Resolve: func(rp graphql.ResolveParams) (interface{}, error) {
					return catalog.Categories(rp.Context)
				},
			},
			"brands": &graphql.Field{
				Type: graphql.NewList(brandType),
				Resolve: func(rp graphql.ResolveParams) (interface{}, error) {
					return catalog.Brands(rp.Context)
				},
			},
		},
	})
	return gql.NewSchema(query)
}
