// Package docs is generated by swag from the handler annotations. Regenerate
// with: swag init -g cmd/server/main.go -o docs
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
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "List the caller's conversations",
                "operationId": "listConversations",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListConversationsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Get or create the conversation for a listing",
                "operationId": "createConversation",
                "parameters": [
                    {"description": "Listing", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateConversationRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing conversation", "schema": {"$ref": "#/definitions/handlers.ConversationResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.ConversationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Property not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Owner cannot message their own listing", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Get a conversation",
                "operationId": "getConversation",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Conversation ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConversationResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages after a sequence number",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 0, "description": "Last sequence number already seen", "name": "after", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Page size (max 500)", "name": "limit", "in": "query"},
                    {"type": "string", "description": "ETag from a previous response", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Send a message",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "description": "Retry token", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "format": "uuid", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"description": "Message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replay of an earlier send", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}},
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Not a participant", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Retry with the same key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{id}/read": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Mark a conversation read up to a sequence number",
                "operationId": "markRead",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"description": "Read marker", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.MarkReadRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/ws": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Realtime"],
                "summary": "Realtime message stream (websocket)",
                "description": "Upgrades to a websocket. Send {\"type\":\"subscribe\",\"conversationId\":\"...\"} to receive that conversation's new messages in order. After a reconnect, list messages with after=\u003clast sequence seen\u003e to recover any gap. Message frames already queued for the socket may still arrive after the unsubscribed reply; clients ignore frames for conversations they no longer follow.",
                "operationId": "realtime",
                "parameters": [
                    {"type": "string", "description": "Bearer token for clients that cannot set headers", "name": "access_token", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Message": {
            "type": "object",
            "properties": {
                "messageId": {"type": "string"},
                "conversationId": {"type": "string"},
                "sequenceNumber": {"type": "integer"},
                "senderId": {"type": "string"},
                "body": {"type": "string"},
                "sentAt": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"}
            }
        },
        "handlers.CreateConversationRequest": {
            "type": "object",
            "required": ["propertyId"],
            "properties": {
                "propertyId": {"type": "string", "example": "P123"},
                "requesterId": {"type": "string"}
            }
        },
        "handlers.ConversationResponse": {
            "type": "object",
            "properties": {
                "conversationId": {"type": "string"},
                "propertyId": {"type": "string"},
                "ownerId": {"type": "string"},
                "clientId": {"type": "string"},
                "lastSequence": {"type": "integer"},
                "lastMessageAt": {"type": "string", "format": "date-time"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.ConversationSummaryResponse": {
            "type": "object",
            "properties": {
                "conversationId": {"type": "string"},
                "propertyId": {"type": "string"},
                "propertyTitle": {"type": "string"},
                "ownerId": {"type": "string"},
                "clientId": {"type": "string"},
                "counterpartId": {"type": "string"},
                "lastSequence": {"type": "integer"},
                "lastReadSequence": {"type": "integer"},
                "unreadCount": {"type": "integer"},
                "lastMessageAt": {"type": "string", "format": "date-time"},
                "lastMessage": {"$ref": "#/definitions/domain.Message"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.ListConversationsResponse": {
            "type": "object",
            "properties": {
                "conversations": {"type": "array", "items": {"$ref": "#/definitions/handlers.ConversationSummaryResponse"}}
            }
        },
        "handlers.PostMessageRequest": {
            "type": "object",
            "required": ["body"],
            "properties": {
                "senderId": {"type": "string"},
                "body": {"type": "string", "example": "Hello, I'm interested"},
                "idempotencyKey": {"type": "string"}
            }
        },
        "handlers.PostMessageResponse": {
            "type": "object",
            "properties": {
                "messageId": {"type": "string"},
                "sequenceNumber": {"type": "integer", "example": 1},
                "sentAt": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.MessageItem": {
            "type": "object",
            "properties": {
                "messageId": {"type": "string"},
                "senderId": {"type": "string"},
                "body": {"type": "string"},
                "sequenceNumber": {"type": "integer"},
                "sentAt": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/handlers.MessageItem"}},
                "nextAfter": {"type": "integer"},
                "hasMore": {"type": "boolean"}
            }
        },
        "handlers.MarkReadRequest": {
            "type": "object",
            "required": ["sequenceNumber"],
            "properties": {
                "sequenceNumber": {"type": "integer"}
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
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "HomeFinder Messaging API",
	Description:      "Owner/client conversations around property listings with ordered, idempotent messages and realtime delivery.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
