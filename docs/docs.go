// Package docs registers the OpenAPI description of the development backend with swag
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
        "/api/v1/{collection}/{scopeId}/media": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "List media",
                "parameters": [
                    {"type": "string", "description": "courses or units", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Course or unit id", "name": "scopeId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.MediaAsset"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/{collection}/{scopeId}/media/uploads": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Create upload intents",
                "parameters": [
                    {"type": "string", "description": "courses or units", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Course or unit id", "name": "scopeId", "in": "path", "required": true},
                    {"description": "Files to upload", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UploadIntentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.UploadIntentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/{collection}/{scopeId}/media/{mediaId}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Delete media",
                "parameters": [
                    {"type": "string", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "name": "scopeId", "in": "path", "required": true},
                    {"type": "string", "name": "mediaId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/{collection}/{scopeId}/media/{mediaId}/finalize": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Finalize unit upload",
                "parameters": [
                    {"type": "string", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "name": "scopeId", "in": "path", "required": true},
                    {"type": "string", "name": "mediaId", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.FinalizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}}
                }
            }
        },
        "/api/v1/{collection}/{scopeId}/media/{mediaId}/status": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Report upload status",
                "parameters": [
                    {"type": "string", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "name": "scopeId", "in": "path", "required": true},
                    {"type": "string", "name": "mediaId", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UploadStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/media/{mediaId}/content": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["media"],
                "summary": "Get media content",
                "parameters": [
                    {"type": "string", "name": "mediaId", "in": "path", "required": true},
                    {"type": "string", "description": "1 to download as attachment", "name": "download", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/storage/{mediaId}": {
            "put": {
                "consumes": ["application/octet-stream"],
                "produces": ["application/json"],
                "tags": ["storage"],
                "summary": "Upload media bytes",
                "parameters": [
                    {"type": "string", "name": "mediaId", "in": "path", "required": true},
                    {"type": "string", "description": "Signed upload token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "413": {"description": "Request Entity Too Large", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "models.OwnerScope": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "type": {"type": "string", "enum": ["course", "unit"]}}
        },
        "models.MediaAsset": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "scope": {"$ref": "#/definitions/models.OwnerScope"},
                "kind": {"type": "string", "enum": ["video", "slide"]},
                "displayName": {"type": "string"},
                "fileName": {"type": "string"},
                "fileType": {"type": "string"},
                "fileSize": {"type": "integer"},
                "status": {"type": "string", "enum": ["pending", "uploaded", "ready", "failed"]},
                "publicUrl": {"type": "string"},
                "downloadUrl": {"type": "string"},
                "storageUrl": {"type": "string"}
            }
        },
        "models.UploadIntentFile": {
            "type": "object",
            "properties": {
                "fileName": {"type": "string"},
                "fileType": {"type": "string"},
                "fileSize": {"type": "integer"},
                "displayName": {"type": "string"}
            }
        },
        "models.UploadIntentRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["video", "slide"]},
                "files": {"type": "array", "items": {"$ref": "#/definitions/models.UploadIntentFile"}}
            }
        },
        "models.UploadIntentEntry": {
            "type": "object",
            "properties": {
                "uploadUrl": {"type": "string"},
                "id": {"type": "string"},
                "videoId": {"type": "string"},
                "slideId": {"type": "string"}
            }
        },
        "models.UploadIntentResponse": {
            "type": "object",
            "properties": {"files": {"type": "array", "items": {"$ref": "#/definitions/models.UploadIntentEntry"}}}
        },
        "models.FinalizeRequest": {
            "type": "object",
            "properties": {"fileSize": {"type": "integer"}}
        },
        "models.UploadStatusRequest": {
            "type": "object",
            "properties": {"status": {"type": "string", "enum": ["upload_completed", "upload_failed"]}}
        },
        "models.StatusResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "error": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Media Uploader Development API",
	Description:      "Course and unit media endpoints used by the upload orchestrator",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
