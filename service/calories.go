package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	deliciousfood "github.com/AUrban/DeliciousFood"
)

// CaloriesProvider looks up the number of calories in a food described in
// natural language, e.g. "1 green apple".
type CaloriesProvider interface {
	Calories(ctx context.Context, title string) (float64, error)
}

// NutritionixProvider is a CaloriesProvider backed by the Nutritionix
// natural-language nutrients API.
type NutritionixProvider struct {
	BaseURL string
	AppID   string
	AppKey  string
	Client  *http.Client
}

// NewNutritionixProvider creates a NutritionixProvider with a default HTTP
// client.
func NewNutritionixProvider(baseURL, appID, appKey string) *NutritionixProvider {
	return &NutritionixProvider{
		BaseURL: baseURL,
		AppID:   appID,
		AppKey:  appKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type nutrientsRequest struct {
	Query string `json:"query"`
}

type nutrientsResponse struct {
	Foods []struct {
		Calories float64 `json:"nf_calories"`
	} `json:"foods"`
}

// Calories queries the natural/nutrients endpoint with the food title and
// sums the calories of everything the service recognized in it. Any failure
// to obtain a result is reported as a validation error on the title.
func (p *NutritionixProvider) Calories(ctx context.Context, title string) (float64, error) {
	badRequest := func() error {
		return deliciousfood.NewValidationError("title", "Bad request with food "+title)
	}

	body, err := json.Marshal(nutrientsRequest{Query: title})
	if err != nil {
		return 0, badRequest()
	}

	url := fmt.Sprintf("%s/natural/nutrients", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, badRequest()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-app-id", p.AppID)
	req.Header.Set("x-app-key", p.AppKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, badRequest()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, badRequest()
	}

	var parsed nutrientsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, badRequest()
	}
	if len(parsed.Foods) == 0 {
		return 0, badRequest()
	}

	var total float64
	for _, f := range parsed.Foods {
		total += f.Calories
	}
	return total, nil
}
