package logger

// LogStages names the "stage" attribute attached to gateway log records so
// one request can be followed through resolution, dispatch and adaptation.
var LogStages = struct {
	Initialization   string
	Configuration    string
	RequestReceived  string
	RequestValidated string
	RequestCompleted string
	RequestFailed    string
	Resolution       string
	AssetUpload      string
	SessionCreation  string
	UpstreamRequest  string
	UpstreamResponse string
	StreamStart      string
	StreamCompleted  string
	StreamFailed     string
	CircuitBreaker   string
	Retry            string
	Fallback         string
	CatalogReload    string
	DatabaseWrite    string
	HealthCheck      string
}{
	Initialization:   "Initialization",
	Configuration:    "Configuration",
	RequestReceived:  "RequestReceived",
	RequestValidated: "RequestValidated",
	RequestCompleted: "RequestCompleted",
	RequestFailed:    "RequestFailed",
	Resolution:       "Resolution",
	AssetUpload:      "AssetUpload",
	SessionCreation:  "SessionCreation",
	UpstreamRequest:  "UpstreamRequest",
	UpstreamResponse: "UpstreamResponse",
	StreamStart:      "StreamStart",
	StreamCompleted:  "StreamCompleted",
	StreamFailed:     "StreamFailed",
	CircuitBreaker:   "CircuitBreaker",
	Retry:            "Retry",
	Fallback:         "Fallback",
	CatalogReload:    "CatalogReload",
	DatabaseWrite:    "DatabaseWrite",
	HealthCheck:      "HealthCheck",
}
