// Package docs holds the OpenAPI description served by gin-swagger.
// Regenerate with: swag init -g cmd/engagement/main.go -o docs
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
        "/designs": {
            "get": {
                "description": "Returns one page of public designs. Sort modes: newest (default), popular, recommended.",
                "produces": ["application/json"],
                "tags": ["Feed"],
                "summary": "Design feed",
                "operationId": "listDesigns",
                "parameters": [
                    {"type": "string", "default": "newest", "description": "newest|popular|recommended", "name": "sort", "in": "query"},
                    {"type": "string", "description": "Only designs of this owner", "name": "owner", "in": "query"},
                    {"type": "string", "description": "Group tag", "name": "group", "in": "query"},
                    {"type": "string", "description": "Concept tag", "name": "concept", "in": "query"},
                    {"type": "string", "description": "Only designs this actor likes", "name": "liked_by", "in": "query"},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "description": "Affinity tags (recommended sort)", "name": "affinity", "in": "query"},
                    {"type": "string", "description": "Id of the last item already served", "name": "cursor", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 12, "description": "Items per page", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.FeedPage"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad request or unknown cursor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/designs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Feed"],
                "summary": "Design detail",
                "operationId": "getDesign",
                "parameters": [{"type": "string", "description": "Design id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.FeedItem"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Design not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/designs/{id}/like": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Engagement"],
                "summary": "Like state",
                "operationId": "getLikeState",
                "parameters": [
                    {"type": "string", "description": "Acting user id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Design id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.LikeState"}},
                    "401": {"description": "Missing actor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Design not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Flips the actor's like on a design. Supports idempotency via the Idempotency-Key header.",
                "produces": ["application/json"],
                "tags": ["Engagement"],
                "summary": "Toggle a like",
                "operationId": "toggleLike",
                "parameters": [
                    {"type": "string", "description": "Acting user id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Design id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.LikeResult"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing actor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Design not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Storage busy", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Engagement"],
                "summary": "Set like state",
                "operationId": "setLike",
                "parameters": [
                    {"type": "string", "description": "Acting user id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Design id", "name": "id", "in": "path", "required": true},
                    {"description": "Desired state", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SetLikeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.LikeResult"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing actor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Design not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Storage busy", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/designs/{id}/boost": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Engagement"],
                "summary": "Boost state",
                "operationId": "getBoostState",
                "parameters": [
                    {"type": "string", "description": "Acting user id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Design id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.BoostState"}},
                    "401": {"description": "Missing actor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Design not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Spends the actor's global boost on the design. Supports idempotency via the Idempotency-Key header.",
                "produces": ["application/json"],
                "tags": ["Engagement"],
                "summary": "Boost a design",
                "operationId": "boostDesign",
                "parameters": [
                    {"type": "string", "description": "Acting user id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Design id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.BoostResult"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing actor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Design not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Cooldown active", "schema": {"$ref": "#/definitions/handlers.CooldownResponse"}, "headers": {"Retry-After": {"type": "integer", "description": "Seconds until the actor may boost again"}}},
                    "503": {"description": "Storage busy", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/ranking": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Feed"],
                "summary": "Leaderboard",
                "operationId": "ranking",
                "parameters": [{"maximum": 50, "minimum": 1, "type": "integer", "default": 50, "description": "Number of entries", "name": "limit", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RankingResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"}
            }
        },
        "handlers.CooldownResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "boost_cooldown"},
                "message": {"type": "string"},
                "next_available_at": {"type": "string", "example": "2025-03-08T12:00:00Z"}
            }
        },
        "handlers.SetLikeRequest": {
            "type": "object",
            "required": ["liked"],
            "properties": {"liked": {"type": "boolean", "example": true}}
        },
        "handlers.RankingResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/services.RankedItem"}}}
        },
        "services.FeedItem": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "owner_id": {"type": "string"},
                "group_tag": {"type": "string"},
                "concept_tag": {"type": "string"},
                "like_count": {"type": "integer"},
                "boost_count": {"type": "integer"},
                "score": {"type": "integer"},
                "created_at": {"type": "string"}
            }
        },
        "services.RankedItem": {
            "type": "object",
            "properties": {
                "rank": {"type": "integer"},
                "id": {"type": "string"},
                "owner_id": {"type": "string"},
                "group_tag": {"type": "string"},
                "concept_tag": {"type": "string"},
                "like_count": {"type": "integer"},
                "boost_count": {"type": "integer"},
                "score": {"type": "integer"},
                "created_at": {"type": "string"}
            }
        },
        "services.FeedPage": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/services.FeedItem"}},
                "next_cursor": {"type": "string"},
                "has_more": {"type": "boolean"}
            }
        },
        "services.LikeResult": {
            "type": "object",
            "properties": {"liked": {"type": "boolean"}, "like_count": {"type": "integer"}}
        },
        "services.LikeState": {
            "type": "object",
            "properties": {"liked": {"type": "boolean"}}
        },
        "services.BoostResult": {
            "type": "object",
            "properties": {
                "boosted": {"type": "boolean"},
                "boost_count": {"type": "integer"},
                "user_boost_count": {"type": "integer"},
                "next_available_at": {"type": "string"}
            }
        },
        "services.BoostState": {
            "type": "object",
            "properties": {
                "boosted": {"type": "boolean"},
                "user_boost_count": {"type": "integer"},
                "can_boost": {"type": "boolean"},
                "next_available_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Design Engagement API",
	Description:      "Likes, boosts, feeds and ranking for a public design gallery.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
