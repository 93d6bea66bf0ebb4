// Package kml turns KML documents into geo records.
package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// ErrMalformed wraps XML syntax errors.
var ErrMalformed = errors.New("malformed kml")

// UnnamedPlacemark is the name given to placemarks without a name element.
const UnnamedPlacemark = "N/A"

// Parse reads every Placemark of a KML document, at any depth. The first
// Point/coordinates found inside a placemark gives its position; placemarks
// without one, or with coordinates that do not parse, have a nil Point.
func Parse(r io.Reader) ([]domain.GeoRecord, error) {
	dec := xml.NewDecoder(r)

	var records []domain.GeoRecord
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Placemark" {
			rec, err := readPlacemark(dec)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
}

// readPlacemark consumes tokens up to the matching </Placemark>.
func readPlacemark(dec *xml.Decoder) (domain.GeoRecord, error) {
	rec := domain.GeoRecord{Name: UnnamedPlacemark}
	var (
		path       []string
		text       strings.Builder
		haveName   bool
		haveCoords bool
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return rec, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)
			// Direct children collect the text of their whole subtree, so
			// inline markup inside a description keeps every fragment.
			if len(path) == 1 || t.Name.Local == "coordinates" {
				text.Reset()
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(path) == 0 {
				return rec, nil
			}
			depth := len(path)
			name := path[depth-1]
			switch {
			case depth == 1 && name == "name" && !haveName:
				rec.Name = strings.TrimSpace(text.String())
				haveName = true
			case depth == 1 && name == "description" && !rec.Description.Valid:
				rec.Description = domain.Present(text.String())
			case name == "coordinates" && depth >= 2 && path[depth-2] == "Point" && !haveCoords:
				haveCoords = true
				if p, ok := ParseCoordinates(text.String()); ok {
					rec.Point = &p
				}
			}
			path = path[:depth-1]
		}
	}
}

// ParseCoordinates reads "lon,lat[,alt]".
func ParseCoordinates(s string) (domain.GeoPoint, bool) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	if len(fields) < 2 {
		return domain.GeoPoint{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, true
}
