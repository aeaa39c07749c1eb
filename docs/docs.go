// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with go generate ./cmd/tradesetup.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/readyz": {"get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/api/v1/step1/{date}": {"get": {"tags": ["step1"], "summary": "Get market context", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/step1/{date}/preview": {"post": {"tags": ["step1"], "summary": "Preview market context", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}}}},
        "/api/v1/step1/{date}/freeze": {"post": {"tags": ["step1"], "summary": "Freeze market context", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step2/{date}": {"get": {"tags": ["step2"], "summary": "Get open behavior", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/step2/{date}/preview": {"post": {"tags": ["step2"], "summary": "Preview open behavior", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step2/{date}/freeze": {"post": {"tags": ["step2"], "summary": "Freeze open behavior", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step3/{date}": {"get": {"tags": ["step3"], "summary": "Get execution control and frozen candidates", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/step3/{date}/execution": {"post": {"tags": ["step3"], "summary": "Derive execution control", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step3/{date}/universe": {"get": {"tags": ["step3"], "summary": "List tradable universe", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}}}},
        "/api/v1/step3/{date}/compute": {"post": {"tags": ["step3"], "summary": "Compute candidates", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step3/{date}/freeze": {"post": {"tags": ["step3"], "summary": "Freeze candidates", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step4/{date}": {"get": {"tags": ["step4"], "summary": "Get constructions and trades", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/step4/{date}/{symbol}": {"get": {"tags": ["step4"], "summary": "Get construction and trade for one symbol", "parameters": [{"$ref": "#/parameters/date"}, {"$ref": "#/parameters/symbol"}], "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/step4/{date}/{symbol}/preview": {"post": {"tags": ["step4"], "summary": "Preview trade construction", "parameters": [{"$ref": "#/parameters/date"}, {"$ref": "#/parameters/symbol"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/step4/{date}/{symbol}/freeze": {"post": {"tags": ["step4"], "summary": "Freeze trade", "parameters": [{"$ref": "#/parameters/date"}, {"$ref": "#/parameters/symbol"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/trade-days": {"get": {"tags": ["trade-days"], "summary": "List frozen trade days", "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/trade-days/{date}": {"get": {"tags": ["trade-days"], "summary": "Pipeline status for one trade date", "parameters": [{"$ref": "#/parameters/date"}], "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/system-settings": {"get": {"tags": ["system-settings"], "summary": "List system settings", "responses": {"200": {"$ref": "#/responses/ok"}}}},
        "/api/v1/system-settings/switches/{name}": {
            "get": {"tags": ["system-settings"], "summary": "Get a feature switch", "parameters": [{"$ref": "#/parameters/name"}], "responses": {"200": {"$ref": "#/responses/ok"}}},
            "put": {"tags": ["system-settings"], "summary": "Toggle a feature switch", "parameters": [{"$ref": "#/parameters/name"}], "responses": {"200": {"$ref": "#/responses/ok"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/api/v1/journal/plans": {
            "get": {"tags": ["journal"], "summary": "List journal plans", "responses": {"200": {"$ref": "#/responses/ok"}}},
            "post": {"tags": ["journal"], "summary": "Create a journal plan", "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}}}
        },
        "/api/v1/journal/plans/{id}": {"get": {"tags": ["journal"], "summary": "Get a journal plan", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"$ref": "#/responses/ok"}, "404": {"$ref": "#/responses/error"}}}},
        "/api/v1/journal/plans/{id}/not-taken": {"post": {"tags": ["journal"], "summary": "Mark a plan not taken", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/journal/plans/{id}/execute": {"post": {"tags": ["journal"], "summary": "Execute a plan", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/journal/trades/{id}": {"get": {"tags": ["journal"], "summary": "Get a journal trade", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"$ref": "#/responses/ok"}, "404": {"$ref": "#/responses/error"}}}},
        "/api/v1/journal/trades/{id}/exit": {"post": {"tags": ["journal"], "summary": "Exit a journal trade", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"$ref": "#/responses/ok"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/journal/trades/{id}/review": {"post": {"tags": ["journal"], "summary": "Review a closed journal trade", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}, "409": {"$ref": "#/responses/error"}}}},
        "/api/v1/journal/calendar": {"get": {"tags": ["journal"], "summary": "Journal calendar", "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}}}},
        "/api/v1/events/ws": {"get": {"tags": ["events"], "summary": "Pipeline event stream", "responses": {"101": {"description": "Switching Protocols"}, "503": {"$ref": "#/responses/error"}}}}
    },
    "parameters": {
        "date": {"name": "date", "in": "path", "required": true, "type": "string", "description": "trade date (YYYY-MM-DD)"},
        "symbol": {"name": "symbol", "in": "path", "required": true, "type": "string", "description": "candidate symbol"},
        "name": {"name": "name", "in": "path", "required": true, "type": "string", "description": "switch name without the feature. prefix"},
        "id": {"name": "id", "in": "path", "required": true, "type": "integer", "description": "journal plan or trade id"}
    },
    "responses": {
        "ok": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
        "error": {"description": "Error", "schema": {"$ref": "#/definitions/handler.apiResponse"}}
    },
    "definitions": {
        "handler.apiResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {},
                "meta": {"type": "object", "additionalProperties": true}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "TradeSetup API",
	Description:      "Intraday setup pipeline: market context, open behavior, execution control, candidates, trade construction and the trade journal.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
