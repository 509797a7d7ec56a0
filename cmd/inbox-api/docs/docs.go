// Package docs is generated by swaggo/swag from the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/webhooks/{platform}": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["webhooks"],
                "summary": "Webhook subscription handshake",
                "parameters": [
                    {"type": "string", "description": "facebook, instagram or whatsapp", "name": "platform", "in": "path", "required": true},
                    {"type": "string", "name": "hub.mode", "in": "query", "required": true},
                    {"type": "string", "name": "hub.verify_token", "in": "query", "required": true},
                    {"type": "string", "name": "hub.challenge", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "Challenge echoed"},
                    "401": {"description": "Verify token mismatch", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Unknown platform", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive platform events",
                "parameters": [
                    {"type": "string", "description": "facebook, instagram or whatsapp", "name": "platform", "in": "path", "required": true},
                    {"type": "string", "description": "sha256=<hex hmac>", "name": "X-Hub-Signature-256", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "Ingest report"},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Signature mismatch", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/platforms": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["platforms"],
                "summary": "List connected platforms",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/platforms/connect": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["platforms"],
                "summary": "Connect a business account",
                "parameters": [
                    {"description": "Account and token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ConnectPlatformRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Bound to another tenant", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Token rejected", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/platforms/{id}/diagnostics": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["platforms"],
                "summary": "Check a platform connection",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "Diagnostic report"}}
            }
        },
        "/platforms/{id}/qr": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["image/png"],
                "tags": ["platforms"],
                "summary": "QR code linking to the business chat",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "size", "in": "query"}
                ],
                "responses": {"200": {"description": "PNG image"}}
            }
        },
        "/platforms/{id}/messages": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Send to a customer by platform identity",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"description": "Recipient and content", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SendToCustomerRequest"}}
                ],
                "responses": {"201": {"description": "Sent"}}
            }
        },
        "/conversations": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["conversations"],
                "summary": "List conversations",
                "parameters": [
                    {"type": "string", "name": "platform_id", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/conversations/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["conversations"],
                "summary": "Conversation history",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Reply in a conversation",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"description": "Content or template", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SendMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Sent"},
                    "202": {"description": "Outcome unknown, reconciliation required"},
                    "409": {"description": "Reconnect required"},
                    "422": {"description": "Template required or rejected"},
                    "429": {"description": "Rate limited"}
                }
            }
        },
        "/conversations/{id}/status": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["conversations"],
                "summary": "Change conversation status",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"description": "open, pending or closed", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/conversations/{id}/suggest-reply": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["conversations"],
                "summary": "Draft a reply with the configured LLM",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuggestReplyResponse"}},
                    "503": {"description": "Suggestions disabled"}
                }
            }
        },
        "/conversations/{id}/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/pdf"],
                "tags": ["conversations"],
                "summary": "Export a conversation transcript",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "xlsx (default) or pdf", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Transcript file"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Unknown conversation", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/analytics/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Message volume per channel with a daily series",
                "parameters": [
                    {"type": "string", "description": "today, yesterday, last_7_days, last_30_days, this_month, last_month", "name": "period", "in": "query"},
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/audit-logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Audit trail",
                "parameters": [
                    {"type": "string", "name": "action", "in": "query"},
                    {"type": "string", "name": "entity", "in": "query"},
                    {"type": "string", "name": "entity_id", "in": "query"},
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "handlers.ConnectPlatformRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "external_id": {"type": "string"},
                "access_token": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "handlers.TemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "language": {"type": "string"},
                "params": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.SendMessageRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "media_url": {"type": "string"},
                "media_type": {"type": "string"},
                "reply_to": {"type": "string"},
                "template": {"$ref": "#/definitions/handlers.TemplateRequest"}
            }
        },
        "handlers.SendToCustomerRequest": {
            "type": "object",
            "properties": {
                "external_id": {"type": "string"},
                "text": {"type": "string"},
                "media_url": {"type": "string"},
                "media_type": {"type": "string"},
                "reply_to": {"type": "string"},
                "template": {"$ref": "#/definitions/handlers.TemplateRequest"}
            }
        },
        "handlers.UpdateStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        },
        "handlers.SuggestReplyResponse": {
            "type": "object",
            "properties": {
                "suggestion": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Omnichannel Inbox API",
	Description:      "Facebook Messenger, Instagram and WhatsApp Cloud API conversations in one inbox",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
