// Package docs registers the OpenAPI description of the progress API with
// swag so the server can serve it at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/progress": {
            "get": {
                "produces": ["application/json"],
                "summary": "Snapshot of the current run",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Snapshot"}}
                }
            }
        },
        "/records": {
            "get": {
                "produces": ["application/json"],
                "summary": "Records written so far in the current run",
                "parameters": [
                    {
                        "type": "string",
                        "enum": ["Malicious", "Suspicious", "Good", "Unknown"],
                        "name": "verdict",
                        "in": "query",
                        "description": "Only records with this verdict"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/ScanRecord"}}}
                }
            }
        },
        "/ws/progress": {
            "get": {
                "summary": "WebSocket stream: a snapshot, then one event per stage change",
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        }
    },
    "definitions": {
        "Snapshot": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "total": {"type": "integer"},
                "completed": {"type": "integer"},
                "scanned": {"type": "integer"},
                "not_scanned": {"type": "integer"},
                "verdicts": {"type": "object", "additionalProperties": {"type": "integer"}},
                "current_url": {"type": "string"},
                "stage": {"type": "string"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "AnalysisReport": {
            "type": "object",
            "properties": {
                "malicious": {"type": "integer"},
                "suspicious": {"type": "integer"},
                "harmless": {"type": "integer"},
                "undetected": {"type": "integer"}
            }
        },
        "ScanRecord": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "status": {"type": "string", "enum": ["Scanned", "Not Scanned"]},
                "scan_date": {"type": "string", "format": "date-time"},
                "verdict": {"type": "string"},
                "run_id": {"type": "string"},
                "report": {"$ref": "#/definitions/AnalysisReport"},
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "repscan progress API",
	Description:      "Live progress and records of a repscan run.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
