// Package apidocs registers the OpenAPI 2.0 document of the solarwatch HTTP
// API with swag so the Swagger UI can serve it at /swagger/doc.json.
package apidocs

import (
	"github.com/swaggo/swag"

	"github.com/HerbHall/solarwatch/internal/version"
)

// SwaggerInfo holds the exported document metadata.
var SwaggerInfo = &swag.Spec{
	Version:          version.Short(),
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "solarwatch API",
	Description:      "Anomaly detection for daily solar energy production.",
	InfoInstanceName: swag.Name,
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

const docTemplate = `{
    "swagger": "2.0",
    "schemes": {{ marshal .Schemes }},
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "produces": ["application/json"],
    "paths": {
        "/detection/detect": {
            "post": {
                "tags": ["detection"],
                "summary": "Score a window of daily records",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/DetectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Report"}},
                    "400": {"description": "Invalid records, method or options", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/detection/stats": {
            "post": {
                "tags": ["detection"],
                "summary": "Summarize annotated records",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {"records": {"type": "array", "items": {"$ref": "#/definitions/AnnotatedRecord"}}}
                    }}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Stats"}},
                    "400": {"description": "Malformed body", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/detection/batch": {
            "post": {
                "tags": ["detection"],
                "summary": "Score several labelled windows",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {
                            "method": {"type": "string"},
                            "options": {"$ref": "#/definitions/Options"},
                            "windows": {"type": "array", "items": {"$ref": "#/definitions/Window"}}
                        }
                    }}
                ],
                "responses": {
                    "200": {"description": "Reports in request order", "schema": {
                        "type": "object",
                        "properties": {"reports": {"type": "array", "items": {"$ref": "#/definitions/Report"}}}
                    }},
                    "400": {"description": "Any window is invalid", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/detection/units/{unit_id}/anomalies": {
            "get": {
                "tags": ["detection"],
                "summary": "Score the recent window of a solar unit",
                "parameters": [
                    {"$ref": "#/parameters/unitID"},
                    {"$ref": "#/parameters/method"},
                    {"$ref": "#/parameters/limit"},
                    {"$ref": "#/parameters/windowThreshold"},
                    {"$ref": "#/parameters/absoluteThreshold"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Report"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/Problem"}},
                    "502": {"description": "Records source failed", "schema": {"$ref": "#/definitions/Problem"}},
                    "503": {"description": "No records source", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/detection/units/{unit_id}/chart": {
            "get": {
                "tags": ["detection"],
                "summary": "Chart the scored recent window of a solar unit",
                "produces": ["image/png"],
                "parameters": [
                    {"$ref": "#/parameters/unitID"},
                    {"$ref": "#/parameters/method"},
                    {"$ref": "#/parameters/limit"},
                    {"$ref": "#/parameters/windowThreshold"},
                    {"$ref": "#/parameters/absoluteThreshold"}
                ],
                "responses": {
                    "200": {"description": "PNG image", "schema": {"type": "file"}},
                    "404": {"description": "No records for the unit"},
                    "502": {"description": "Records source failed"}
                }
            }
        },
        "/detection/scenarios": {
            "get": {
                "tags": ["detection"],
                "summary": "List bundled scenarios with per-method anomaly counts",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/detection/scenarios/{slug}": {
            "get": {
                "tags": ["detection"],
                "summary": "Score one bundled scenario",
                "parameters": [
                    {"in": "path", "name": "slug", "required": true, "type": "string"},
                    {"$ref": "#/parameters/method"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Report"}},
                    "404": {"description": "Unknown scenario", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/records/units": {
            "get": {
                "tags": ["records"],
                "summary": "List stored solar units",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/UnitSummary"}}},
                    "409": {"description": "Source is not the local store", "schema": {"$ref": "#/definitions/Problem"}},
                    "503": {"description": "No records source", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/records/units/{unit_id}": {
            "get": {
                "tags": ["records"],
                "summary": "Recent records of a solar unit, oldest first",
                "parameters": [
                    {"$ref": "#/parameters/unitID"},
                    {"in": "query", "name": "limit", "type": "integer", "minimum": 1, "maximum": 1000, "default": 30}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Record"}}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/Problem"}},
                    "502": {"description": "Records source failed", "schema": {"$ref": "#/definitions/Problem"}}
                }
            },
            "post": {
                "tags": ["records"],
                "summary": "Import records for a solar unit",
                "consumes": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/unitID"},
                    {"in": "body", "name": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {"records": {"type": "array", "items": {"$ref": "#/definitions/Record"}}}
                    }}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {
                        "type": "object",
                        "properties": {"unitId": {"type": "string"}, "imported": {"type": "integer"}}
                    }},
                    "400": {"description": "Invalid records", "schema": {"$ref": "#/definitions/Problem"}},
                    "409": {"description": "Source is not the local store", "schema": {"$ref": "#/definitions/Problem"}},
                    "503": {"description": "No records source", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        }
    },
    "parameters": {
        "unitID": {"in": "path", "name": "unit_id", "required": true, "type": "string"},
        "method": {"in": "query", "name": "method", "type": "string", "enum": ["windowAverage", "absolute"]},
        "limit": {"in": "query", "name": "limit", "type": "integer", "minimum": 1},
        "windowThreshold": {"in": "query", "name": "window_threshold_percent", "type": "number"},
        "absoluteThreshold": {"in": "query", "name": "absolute_threshold", "type": "number"}
    },
    "definitions": {
        "Record": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "2024-01-01"},
                "totalEnergy": {"type": "number", "example": 35.2}
            }
        },
        "AnnotatedRecord": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "totalEnergy": {"type": "number"},
                "hasAnomaly": {"type": "boolean"},
                "anomalyType": {"type": "string", "enum": ["BELOW_AVERAGE", "CRITICAL_LOW"]},
                "anomalyReason": {"type": "string"},
                "windowAverage": {"type": "number"},
                "deviationPercent": {"type": "number"},
                "deviationAmount": {"type": "number"}
            }
        },
        "Options": {
            "type": "object",
            "properties": {
                "windowThresholdPercent": {"type": "number", "default": 40},
                "absoluteThreshold": {"type": "number", "default": 5}
            }
        },
        "DetectRequest": {
            "type": "object",
            "properties": {
                "records": {"type": "array", "items": {"$ref": "#/definitions/Record"}},
                "method": {"type": "string"},
                "options": {"$ref": "#/definitions/Options"}
            }
        },
        "Window": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/Record"}}
            }
        },
        "Stats": {
            "type": "object",
            "properties": {
                "totalRecords": {"type": "integer"},
                "anomalyCount": {"type": "integer"},
                "normalCount": {"type": "integer"},
                "anomalyRate": {"type": "string", "example": "42.9%"},
                "anomalyRatePercent": {"type": "number"},
                "anomalyTypes": {"type": "array", "items": {"type": "string"}},
                "windowAverage": {"type": "number"},
                "minEnergy": {"type": "number"},
                "maxEnergy": {"type": "number"},
                "energyRange": {"type": "number"},
                "anomalyDates": {"type": "array", "items": {"type": "string"}},
                "normalDates": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Report": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "unitId": {"type": "string"},
                "method": {"type": "string"},
                "options": {"$ref": "#/definitions/Options"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/AnnotatedRecord"}},
                "stats": {"$ref": "#/definitions/Stats"},
                "generatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "UnitSummary": {
            "type": "object",
            "properties": {
                "unitId": {"type": "string"},
                "records": {"type": "integer"},
                "firstDate": {"type": "string"},
                "lastDate": {"type": "string"}
            }
        },
        "Problem": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "title": {"type": "string"},
                "status": {"type": "integer"},
                "detail": {"type": "string"},
                "instance": {"type": "string"}
            }
        }
    }
}`
