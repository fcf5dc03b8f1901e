package utils

// HTTP header names used across the gateway.
const (
	HeaderContentType   = "Content-Type"
	HeaderUserAgent     = "User-Agent"
	HeaderCacheControl  = "Cache-Control"
	HeaderConnection    = "Connection"
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRetryAfter    = "Retry-After"

	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXRealIP        = "X-Real-IP"
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderCloudFlareRay  = "CF-Ray"

	HeaderXAccelBuffering = "X-Accel-Buffering"

	HeaderAccessControlAllowOrigin   = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowMethods  = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders  = "Access-Control-Allow-Headers"
	HeaderAccessControlExposeHeaders = "Access-Control-Expose-Headers"
	HeaderAccessControlMaxAge        = "Access-Control-Max-Age"

	// 1min accepts either of these depending on the endpoint.
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "API-KEY"
)

const (
	ContentTypeJSON            = "application/json"
	ContentTypeJSONUTF8        = "application/json; charset=utf-8"
	ContentTypeEventStreamUTF8 = "text/event-stream; charset=utf-8"
	ContentTypeTextPlain       = "text/plain; charset=utf-8"
)

const (
	CacheControlNoCache = "no-cache"
	ConnectionKeepAlive = "keep-alive"
)

const (
	ServiceName = "1min-Gateway"
	UserAgent   = "1min-Gateway/1.0"

	BearerPrefix = "Bearer "
)
