package googlemaps

// directionsResponse represents the Directions API JSON response.
type directionsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Routes       []route `json:"routes"`
}

// route represents a single route in the response. The first route is the primary one.
type route struct {
	Summary          string   `json:"summary"`
	Legs             []leg    `json:"legs"`
	OverviewPolyline polyline `json:"overview_polyline"`
	Warnings         []string `json:"warnings,omitempty"`
}

// leg is the part of a route between two waypoints.
type leg struct {
	Distance     textValue `json:"distance"` // Value in meters
	Duration     textValue `json:"duration"` // Value in seconds
	StartAddress string    `json:"start_address"`
	EndAddress   string    `json:"end_address"`
}

type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type polyline struct {
	Points string `json:"points"`
}

// Directions API status codes.
const (
	statusOK                  = "OK"
	statusZeroResults         = "ZERO_RESULTS"
	statusNotFound            = "NOT_FOUND"
	statusMaxRouteLength      = "MAX_ROUTE_LENGTH_EXCEEDED"
	statusOverQueryLimit      = "OVER_QUERY_LIMIT"
	statusOverDailyLimit      = "OVER_DAILY_LIMIT"
	statusRequestDenied       = "REQUEST_DENIED"
	statusInvalidRequest      = "INVALID_REQUEST"
	statusUnknownError        = "UNKNOWN_ERROR"
	statusMaxWaypointsReached = "MAX_WAYPOINTS_EXCEEDED"
)
