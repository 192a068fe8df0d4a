// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
        "/conversations": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Returns one entry per Messenger sender, most recently active first.",
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "List conversations (paginated)",
                "operationId": "listConversations",
                "parameters": [
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListConversationsResponse"}},
                    "401": {"description": "Missing or invalid API key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{sender_id}/messages": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Returns the sender's messages in chronological order. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Get a sender's transcript",
                "operationId": "listConversationMessages",
                "parameters": [
                    {"type": "string", "example": "6912345678901234", "description": "Messenger page-scoped sender id", "name": "sender_id", "in": "path", "required": true},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or invalid API key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/leads": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Returns leads newest first. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Leads"],
                "summary": "List captured leads (paginated)",
                "operationId": "listLeads",
                "parameters": [
                    {"type": "string", "description": "Only leads from this Messenger sender (PSID)", "name": "sender_id", "in": "query"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListLeadsResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "401": {"description": "Missing or invalid API key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/replies": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Returns the greeting, fallback and keyword entries in match order.",
                "produces": ["application/json"],
                "tags": ["Replies"],
                "summary": "Show the active reply table",
                "operationId": "getReplies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RepliesResponse"}},
                    "401": {"description": "Missing or invalid API key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/replies/resolve": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Detects the language and resolves a reply (keyword, LLM, fallback). Nothing is sent and no lead is recorded.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Replies"],
                "summary": "Dry-run the reply pipeline",
                "operationId": "resolveReply",
                "parameters": [
                    {"description": "Text to resolve", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ResolveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ResolveResponse"}},
                    "400": {"description": "Invalid body or text", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or invalid API key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Conversation": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "sender_id": {"type": "string"},
                "language": {"type": "string"},
                "last_message_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "domain.Lead": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "sender_id": {"type": "string"},
                "message_text": {"type": "string"},
                "language": {"type": "string"},
                "source": {"type": "string"},
                "reply_tier": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "conversation_id": {"type": "string"},
                "role": {"type": "string"},
                "content": {"type": "string"},
                "source": {"type": "string"},
                "language": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "conversation not found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.ListConversationsResponse": {
            "type": "object",
            "properties": {
                "conversations": {"type": "array", "items": {"$ref": "#/definitions/domain.Conversation"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.ListLeadsResponse": {
            "type": "object",
            "properties": {
                "leads": {"type": "array", "items": {"$ref": "#/definitions/domain.Lead"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "sender_id": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.RepliesResponse": {
            "type": "object",
            "properties": {
                "greeting": {"$ref": "#/definitions/replies.Localized"},
                "fallback": {"$ref": "#/definitions/replies.Localized"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/replies.Entry"}}
            }
        },
        "handlers.ResolveRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string", "example": "I need AC repair"}
            }
        },
        "handlers.ResolveResponse": {
            "type": "object",
            "properties": {
                "language": {"type": "string", "example": "en"},
                "reply": {"type": "string"},
                "tier": {"type": "string", "example": "keyword"}
            }
        },
        "replies.Entry": {
            "type": "object",
            "properties": {
                "keywords": {"type": "array", "items": {"type": "string"}},
                "answer_bn": {"type": "string"},
                "answer_en": {"type": "string"}
            }
        },
        "replies.Localized": {
            "type": "object",
            "properties": {
                "bn": {"type": "string"},
                "en": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "HomeFixerKhulna Messenger Bot API",
	Description:      "Messenger webhook and admin API for the HomeFixerKhulna page bot.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
