package apierror

// Error type URIs following the urn:lifesignal:error:* pattern.
// These are used as the "type" field in RFC 9457 Problem Details.
const (
	// TypeComputationInProgress indicates a computation run is already active (409)
	TypeComputationInProgress = "urn:lifesignal:error:computation_in_progress"

	// TypeInvalidDateRange indicates the analysis window could not be resolved (400)
	TypeInvalidDateRange = "urn:lifesignal:error:invalid_date_range"

	// TypeNoData indicates insufficient data for the requested analysis (422)
	TypeNoData = "urn:lifesignal:error:no_data"

	// TypeBadRequest indicates a malformed or invalid request (400)
	TypeBadRequest = "urn:lifesignal:error:bad_request"

	// TypeNotFound indicates the requested resource was not found (404)
	TypeNotFound = "urn:lifesignal:error:not_found"

	// TypeInternal indicates an unexpected server error (500)
	TypeInternal = "urn:lifesignal:error:internal"
)

// Titles for each error type - human-readable summaries
const (
	TitleComputationInProgress = "Computation In Progress"
	TitleInvalidDateRange      = "Invalid Date Range"
	TitleNoData                = "Not Enough Data"
	TitleBadRequest            = "Bad Request"
	TitleNotFound              = "Resource Not Found"
	TitleInternal              = "Internal Server Error"
)
