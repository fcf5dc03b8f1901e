// Package docs provides the Swagger documentation for the API.
package docs

// @title           1min Gateway
// @version         1.0
// @description     OpenAI-compatible gateway in front of the 1min.ai API.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    https://github.com/aashari/go-onemin-gateway

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and your 1min.ai API key.

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name API-KEY
// @description Your 1min.ai API key.
