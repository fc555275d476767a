// Package docs holds the OpenAPI description served under /swagger/.
// Regenerate with `swag init -g internal/server/server.go` after changing
// the handler annotations.
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
        "/convert": {
            "post": {
                "description": "Extracts the text of the uploaded PDF, synthesizes it segment by segment and\nreturns the MP3 as an attachment. Only one conversion runs at a time.",
                "consumes": ["multipart/form-data"],
                "produces": ["audio/mpeg"],
                "tags": ["conversion"],
                "summary": "Convert a PDF to MP3",
                "parameters": [
                    {"type": "file", "description": "PDF document", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Voice ID or name (default Kore)", "name": "voice", "in": "formData"}
                ],
                "responses": {
                    "200": {
                        "description": "MP3 file",
                        "schema": {"type": "file"},
                        "headers": {
                            "X-Job-Id": {"type": "string", "description": "Job identifier"},
                            "X-Warning": {"type": "string", "description": "Set when some parts were skipped"}
                        }
                    },
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "409": {"description": "A conversion is already running", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "422": {"description": "Unreadable PDF", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "502": {"description": "Speech service failure", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/download": {
            "get": {
                "description": "Returns the MP3 of the most recent completed conversion until a new one supersedes it.",
                "produces": ["audio/mpeg"],
                "tags": ["conversion"],
                "summary": "Download the last result",
                "responses": {
                    "200": {"description": "MP3 file", "schema": {"type": "file"}},
                    "404": {"description": "Nothing to download", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.HealthResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["conversion"],
                "summary": "Current job status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/pipeline.Snapshot"}}
                }
            }
        },
        "/voices": {
            "get": {
                "produces": ["application/json"],
                "tags": ["voices"],
                "summary": "List voices",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/server.VoiceResponse"}}}
                }
            }
        }
    },
    "definitions": {
        "pipeline.Snapshot": {
            "type": "object",
            "properties": {
                "bytes": {"type": "integer"},
                "error": {"type": "string"},
                "file_name": {"type": "string"},
                "finished_at": {"type": "string"},
                "id": {"type": "string"},
                "message": {"type": "string"},
                "output_name": {"type": "string"},
                "partial_success": {"type": "boolean"},
                "progress": {"type": "integer"},
                "segments": {"type": "integer"},
                "skipped": {"type": "integer"},
                "started_at": {"type": "string"},
                "state": {"$ref": "#/definitions/pipeline.State"},
                "voice": {"type": "string"},
                "warning": {"type": "string"}
            }
        },
        "pipeline.State": {
            "type": "string",
            "enum": ["idle", "extracting", "synthesizing", "encoding", "complete", "failed"],
            "x-enum-varnames": ["StateIdle", "StateExtracting", "StateSynthesizing", "StateEncoding", "StateComplete", "StateFailed"]
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "state": {"$ref": "#/definitions/pipeline.State"}
            }
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {
                "busy": {"type": "boolean"},
                "state": {"type": "string"},
                "status": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "server.VoiceResponse": {
            "type": "object",
            "properties": {
                "default": {"type": "boolean"},
                "description": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.3.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pdf2mp3 API",
	Description:      "Converts PDF documents into MP3 audio with a remote speech service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
