package googlemaps

// geocodeResponse represents the Geocoding API JSON response.
type geocodeResponse struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Results      []result `json:"results"`
}

type result struct {
	FormattedAddress string   `json:"formatted_address"`
	PlaceID          string   `json:"place_id"`
	Types            []string `json:"types,omitempty"`
	PartialMatch     bool     `json:"partial_match,omitempty"`
}

// Geocoding API status codes.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusOverDailyLimit = "OVER_DAILY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
)
