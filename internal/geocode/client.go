package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"unihaven-backend/internal/pkg/apperrors"
)

// Address is the normalized result of a free-text address lookup.
type Address struct {
	GeoAddress   string  `json:"geo_address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	BuildingName string  `json:"building_name"`
	EstateName   string  `json:"estate_name"`
	StreetName   string  `json:"street_name"`
	BuildingNo   string  `json:"building_no"`
	District     string  `json:"district"`
	Region       string  `json:"region"`
}

// Client resolves a free-text address to a normalized Address.
type Client interface {
	Lookup(ctx context.Context, address string) (*Address, error)
}

// ALSClient calls the Hong Kong government Address Lookup Service.
type ALSClient struct {
	BaseURL string
	Client  *http.Client
}

// alsResponse mirrors the subset of the ALS payload we read.
type alsResponse struct {
	SuggestedAddress []struct {
		Address struct {
			PremisesAddress struct {
				GeoAddress         string `json:"GeoAddress"`
				EngPremisesAddress struct {
					BuildingName string `json:"BuildingName"`
					EngEstate    struct {
						EstateName string `json:"EstateName"`
					} `json:"EngEstate"`
					EngStreet struct {
						StreetName     string `json:"StreetName"`
						BuildingNoFrom string `json:"BuildingNoFrom"`
					} `json:"EngStreet"`
					EngDistrict struct {
						DcDistrict string `json:"DcDistrict"`
					} `json:"EngDistrict"`
					Region string `json:"Region"`
				} `json:"EngPremisesAddress"`
				GeospatialInformation struct {
					Latitude  float64 `json:"Latitude"`
					Longitude float64 `json:"Longitude"`
				} `json:"GeospatialInformation"`
			} `json:"PremisesAddress"`
		} `json:"Address"`
	} `json:"SuggestedAddress"`
}

func (c *ALSClient) httpClient() *http.Client {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return c.Client
}

// Lookup fetches the first suggested address for the query. Any transport or
// decode failure is an upstream error; an empty suggestion list is not_found.
func (c *ALSClient) Lookup(ctx context.Context, address string) (*Address, error) {
	if address == "" {
		return nil, apperrors.Validation("Address parameter is required")
	}
	reqURL := fmt.Sprintf("%s?q=%s&n=1", c.BaseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.Upstream("Error fetching geolocation", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, apperrors.Upstream("Error fetching geolocation", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Upstream(fmt.Sprintf("Address lookup failed: status %d", resp.StatusCode), nil)
	}

	var data alsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, apperrors.Upstream("Invalid JSON response from address lookup", err)
	}
	if len(data.SuggestedAddress) == 0 {
		return nil, apperrors.NotFound("No results found for address")
	}

	pa := data.SuggestedAddress[0].Address.PremisesAddress
	eng := pa.EngPremisesAddress
	return &Address{
		GeoAddress:   pa.GeoAddress,
		Latitude:     pa.GeospatialInformation.Latitude,
		Longitude:    pa.GeospatialInformation.Longitude,
		BuildingName: eng.BuildingName,
		EstateName:   eng.EngEstate.EstateName,
		StreetName:   eng.EngStreet.StreetName,
		BuildingNo:   eng.EngStreet.BuildingNoFrom,
		District:     eng.EngDistrict.DcDistrict,
		Region:       eng.Region,
	}, nil
}
