package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>agendasync - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the auth and calendar endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "agendasync", "version": "v0.1.0" },
  "paths": {
    "/auth/register": {
      "post": {
        "summary": "Register a local email/password account",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["email","password"],"properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "201": { "description": "account created" }, "409": { "description": "email already registered" }, "400": { "description": "invalid payload or password too short" } }
      }
    },
    "/auth/login": {
      "post": {
        "summary": "Log in with email and password",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["email","password"],"properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "session cookie set" }, "401": { "description": "invalid credentials" } }
      }
    },
    "/auth/logout": {
      "post": { "summary": "Destroy the current session", "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/me": {
      "get": { "summary": "Current identity behind the session cookie", "responses": { "200": { "description": "identity" }, "401": { "description": "not authenticated" } } }
    },
    "/auth/google": {
      "get": { "summary": "Start the Google OAuth flow", "responses": { "302": { "description": "redirect to consent screen" } } }
    },
    "/auth/google/callback": {
      "get": { "summary": "OAuth callback: code exchange and account reconciliation", "responses": { "200": { "description": "session cookie set" }, "409": { "description": "email linked to a different google account" }, "401": { "description": "authentication failed" } } }
    },
    "/calendar/events": {
      "get": { "summary": "Upcoming events from the linked Google calendar", "responses": { "200": { "description": "events" }, "400": { "description": "no google account linked" }, "401": { "description": "not authenticated" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
