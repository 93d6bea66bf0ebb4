package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

var errNoDataset = errors.New("dataset store not available")

// buildSchema creates the GraphQL schema wired to our services.
// Money columns are exposed as Float because graphql.Int is 32-bit.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	listingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Listing",
		Fields: graphql.Fields{
			"period":               &graphql.Field{Type: graphql.String},
			"research":             &graphql.Field{Type: graphql.String},
			"property":             &graphql.Field{Type: graphql.String},
			"condition":            &graphql.Field{Type: graphql.String},
			"neighborhood":         &graphql.Field{Type: graphql.String},
			"stratum":              &graphql.Field{Type: graphql.String},
			"private_area_m2":      &graphql.Field{Type: graphql.Float},
			"lot_area_m2":          &graphql.Field{Type: graphql.Float},
			"commercial_price_cop": &graphql.Field{Type: graphql.Float},
			"price_per_m2_cop":     &graphql.Field{Type: graphql.Float},
			"location":             &graphql.Field{Type: geoPointType},
			"distance":             &graphql.Field{Type: graphql.Float},
		},
	})

	listingPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ListingPage",
		Fields: graphql.Fields{
			"listings": &graphql.Field{Type: graphql.NewList(listingType)},
			"total":    &graphql.Field{Type: graphql.Int},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PeriodStats",
		Fields: graphql.Fields{
			"period":               &graphql.Field{Type: graphql.String},
			"listings":             &graphql.Field{Type: graphql.Int},
			"avg_price_cop":        &graphql.Field{Type: graphql.Float},
			"avg_price_per_m2_cop": &graphql.Field{Type: graphql.Float},
			"avg_private_area_m2":  &graphql.Field{Type: graphql.Float},
		},
	})

	vintageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vintage",
		Fields: graphql.Fields{
			"collection": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.VintageInfo).Key.Collection, nil
				},
			},
			"year": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.VintageInfo).Key.Year, nil
				},
			},
			"url":      &graphql.Field{Type: graphql.String},
			"fields":   &graphql.Field{Type: graphql.NewList(graphql.String)},
			"patterns": &graphql.Field{Type: graphql.Int},
			"coordinate_order": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					order := p.Source.(domain.VintageInfo).CoordinateOrder
					return order[:], nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"listings": &graphql.Field{
				Type:        listingPageType,
				Description: "Page through the loaded housing dataset",
				Args: graphql.FieldConfigArgument{
					"period":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"property": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Listings == nil {
						return nil, errNoDataset
					}
					return deps.Listings.List(p.Context, domain.ListingFilter{
						Period:   p.Args["period"].(string),
						Property: p.Args["property"].(string),
						Limit:    p.Args["limit"].(int),
						Offset:   p.Args["offset"].(int),
					})
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(listingType),
				Description: "Listings near a location, closest first",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Listings == nil {
						return nil, errNoDataset
					}
					center := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					return deps.Listings.Nearby(p.Context, center, p.Args["radius"].(float64), p.Args["limit"].(int))
				},
			},
			"stats": &graphql.Field{
				Type:        graphql.NewList(statsType),
				Description: "Per-period aggregates",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Listings == nil {
						return nil, errNoDataset
					}
					return deps.Listings.Stats(p.Context)
				},
			},
			"vintages": &graphql.Field{
				Type:        graphql.NewList(vintageType),
				Description: "Registered source vintages",
				Args: graphql.FieldConfigArgument{
					"collection": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Vintages.List(p.Args["collection"].(string)), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
