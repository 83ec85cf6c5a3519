package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Location is a place reference. A partial reference (only lat/lng, or only
// pk) is completed through LocationComplete before it is attached to a post.
type Location struct {
	Pk               int64   `json:"pk"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Lng              float64 `json:"lng"`
	Lat              float64 `json:"lat"`
	ExternalID       int64   `json:"external_id"`
	ExternalIDSource string  `json:"external_id_source"`
}

type locationItem struct {
	Pk               json.Number `json:"pk"`
	Name             string      `json:"name"`
	Address          string      `json:"address"`
	Lng              float64     `json:"lng"`
	Lat              float64     `json:"lat"`
	ExternalID       json.Number `json:"external_id"`
	ExternalIDSource string      `json:"external_id_source"`
	FacebookPlacesID json.Number `json:"facebook_places_id"`
}

func locationFromItem(item locationItem) Location {
	loc := Location{
		Name:             item.Name,
		Address:          item.Address,
		Lng:              item.Lng,
		Lat:              item.Lat,
		ExternalIDSource: item.ExternalIDSource,
	}
	loc.Pk, _ = item.Pk.Int64()
	loc.ExternalID, _ = item.ExternalID.Int64()
	if loc.ExternalID == 0 {
		loc.ExternalID, _ = item.FacebookPlacesID.Int64()
	}
	return loc
}

// LocationSearch finds places near the given coordinates, closest first.
func (c *Client) LocationSearch(ctx context.Context, lat, lng float64) ([]Location, error) {
	params := map[string]string{
		"latitude":   strconv.FormatFloat(lat, 'f', -1, 64),
		"longitude":  strconv.FormatFloat(lng, 'f', -1, 64),
		"rank_token": fmt.Sprintf("%d_%s", c.UserID(), c.UUID),
	}

	resp, err := c.privateRequestGET(ctx, "location_search/", params)
	if err != nil {
		return nil, fmt.Errorf("location search failed: %w", err)
	}

	var result struct {
		Venues []locationItem `json:"venues"`
	}
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse location search: %w", err)
	}

	locations := make([]Location, 0, len(result.Venues))
	for _, venue := range result.Venues {
		locations = append(locations, locationFromItem(venue))
	}

	return locations, nil
}

// LocationInfo fetches the full record for a location pk.
func (c *Client) LocationInfo(ctx context.Context, pk int64) (*Location, error) {
	resp, err := c.privateRequestGET(ctx, fmt.Sprintf("locations/%d/location_info/", pk), nil)
	if err != nil {
		return nil, fmt.Errorf("location info lookup failed: %w", err)
	}

	var item locationItem
	if err := json.Unmarshal(resp.RawBody, &item); err != nil {
		return nil, fmt.Errorf("failed to parse location info: %w", err)
	}

	loc := locationFromItem(item)
	if loc.Pk == 0 {
		loc.Pk = pk
	}
	return &loc, nil
}

// LocationComplete fills in whatever half of a partial location reference is
// missing: a pk is resolved from coordinates, coordinates from a pk.
func (c *Client) LocationComplete(ctx context.Context, loc Location) (Location, error) {
	if loc.Pk == 0 && loc.Lat != 0 && loc.Lng != 0 {
		found, err := c.LocationSearch(ctx, loc.Lat, loc.Lng)
		if err != nil {
			return loc, err
		}
		if len(found) == 0 {
			return loc, fmt.Errorf("no location found near %f,%f", loc.Lat, loc.Lng)
		}
		loc.Pk = found[0].Pk
		if loc.Name == "" {
			loc.Name = found[0].Name
		}
	}

	if loc.Pk != 0 && (loc.Lat == 0 || loc.Lng == 0 || loc.Name == "") {
		info, err := c.LocationInfo(ctx, loc.Pk)
		if err != nil {
			return loc, err
		}
		if loc.Lat == 0 {
			loc.Lat = info.Lat
		}
		if loc.Lng == 0 {
			loc.Lng = info.Lng
		}
		if loc.Name == "" {
			loc.Name = info.Name
		}
		if loc.ExternalID == 0 {
			loc.ExternalID = info.ExternalID
			loc.ExternalIDSource = info.ExternalIDSource
		}
	}

	return loc, nil
}

// locationBuild renders the location descriptor string embedded in configure
// payloads, or "{}" when no location is attached.
func (c *Client) locationBuild(ctx context.Context, loc *Location) (string, error) {
	if loc == nil {
		return "{}", nil
	}

	resolved := *loc
	if resolved.ExternalID == 0 && resolved.Lat != 0 && resolved.Lng != 0 {
		completed, err := c.LocationComplete(ctx, resolved)
		if err != nil {
			return "", err
		}
		resolved = completed
	}

	data, err := json.Marshal(map[string]any{
		"name":               resolved.Name,
		"address":            resolved.Address,
		"lat":                resolved.Lat,
		"lng":                resolved.Lng,
		"external_source":    resolved.ExternalIDSource,
		"facebook_places_id": resolved.ExternalID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal location: %w", err)
	}

	return string(data), nil
}
