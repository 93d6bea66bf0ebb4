package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/core/usecases"
)

// ListVintagesHandler returns the registered vintages.
func ListVintagesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		collection := c.Query("collection")
		vintages := deps.Vintages.List(collection)
		if vintages == nil {
			vintages = []domain.VintageInfo{}
		}
		return c.JSON(vintages)
	}
}

// GetVintageHandler returns one vintage by collection and year.
func GetVintageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		year, err := strconv.Atoi(c.Params("year"))
		if err != nil {
			return errBadRequest(c, "year must be a number")
		}
		info, err := deps.Vintages.Get(domain.VintageKey{Collection: c.Params("collection"), Year: year})
		if errors.Is(err, ports.ErrNotFound) {
			return errNotFound(c, "vintage not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(info)
	}
}

// ListListingsHandler returns one page of the loaded dataset.
func ListListingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Listings == nil {
			return errUnavailable(c, "dataset store not available")
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		period := c.Query("period")
		if period != "" && !validPeriod(period) {
			return errBadRequest(c, "period must look like YYYY.MM")
		}

		page, err := deps.Listings.List(c.UserContext(), domain.ListingFilter{
			Period:   period,
			Property: strings.ToUpper(strings.TrimSpace(c.Query("property"))),
			Offset:   offset,
			Limit:    limit,
		})
		if err != nil {
			return errInternal(c, err.Error())
		}

		listings := page.Listings
		if listings == nil {
			listings = []domain.Listing{}
		}
		pg := Pagination{Offset: offset, Limit: limit, Total: page.Total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: listings, Pagination: pg})
	}
}

// NearbyListingsHandler returns listings within a radius of a point.
func NearbyListingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Listings == nil {
			return errUnavailable(c, "dataset store not available")
		}

		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 1000)
		limit := c.QueryInt("limit", 50)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "lat or lon out of range")
		}
		if radius <= 0 || radius > 20000 {
			return errBadRequest(c, "radius must be between 1 and 20000 meters")
		}

		listings, err := deps.Listings.Nearby(c.UserContext(), domain.GeoPoint{Lat: lat, Lon: lon}, radius, limit)
		if errors.Is(err, usecases.ErrInvalidRadius) {
			return errBadRequest(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		if listings == nil {
			listings = []domain.Listing{}
		}
		return c.JSON(listings)
	}
}

// ListingStatsHandler returns per-period aggregates.
func ListingStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Listings == nil {
			return errUnavailable(c, "dataset store not available")
		}
		stats, err := deps.Listings.Stats(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if stats == nil {
			stats = []domain.PeriodStats{}
		}
		return c.JSON(stats)
	}
}

// validPeriod accepts YYYY.MM.
func validPeriod(s string) bool {
	if len(s) != 7 || s[4] != '.' {
		return false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1900 {
		return false
	}
	month, err := strconv.Atoi(s[5:])
	return err == nil && month >= 1 && month <= 12
}
