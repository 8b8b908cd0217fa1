package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Meal Gate API",
        "description": "Admits students to meals inside configured daily windows.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "CheckIn", "description": "Scanning station admissions"},
        {"name": "MealWindows", "description": "Per-meal admission windows"},
        {"name": "Attendance", "description": "Admission ledger views"},
        {"name": "Roster", "description": "Student roster reconciliation"}
    ],
    "paths": {
        "/checkin": {
            "post": {
                "tags": ["CheckIn"],
                "summary": "Admit a student to the current meal",
                "description": "Always answers 200 with a status of invalid, blocked, already_used, allowed or error.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CheckInRequest"}}
                ],
                "responses": {
                    "200": {"description": "Outcome", "schema": {"$ref": "#/definitions/CheckInResult"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/meal-windows": {
            "get": {
                "tags": ["MealWindows"],
                "summary": "Get meal windows",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MealWindowsDocument"}}
                }
            },
            "put": {
                "tags": ["MealWindows"],
                "summary": "Replace meal windows",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MealWindowsDocument"}}
                ],
                "responses": {
                    "200": {"description": "Stored configuration", "schema": {"$ref": "#/definitions/MealWindowsDocument"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/meal-windows/{mealType}/reset": {
            "post": {
                "tags": ["MealWindows"],
                "summary": "Clear recorded admissions for a meal",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "mealType", "required": true, "type": "string", "enum": ["breakfast", "lunch", "dinner", "lateNight"]}
                ],
                "responses": {
                    "200": {"description": "Rows deleted", "schema": {"$ref": "#/definitions/ResetResult"}},
                    "500": {"description": "Reset failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/count": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Count today's admissions for a meal",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "mealType", "required": true, "type": "string", "enum": ["breakfast", "lunch", "dinner", "lateNight"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AttendanceCount"}},
                    "400": {"description": "Unknown meal type", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster/sync": {
            "post": {
                "tags": ["Roster"],
                "summary": "Queue a roster synchronisation",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/RosterSyncAccepted"}},
                    "409": {"description": "A run is already pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CheckInRequest": {
            "type": "object",
            "required": ["studentId"],
            "properties": {
                "studentId": {"type": "string"}
            }
        },
        "StudentSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "department": {"type": "string"},
                "photoUrl": {"type": "string"}
            }
        },
        "CheckInResult": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["invalid", "blocked", "already_used", "allowed", "error"]},
                "message": {"type": "string"},
                "mealType": {"type": "string"},
                "windowStart": {"type": "string", "example": "12:00"},
                "windowEnd": {"type": "string", "example": "14:00"},
                "student": {"$ref": "#/definitions/StudentSummary"}
            }
        },
        "MealWindow": {
            "type": "object",
            "required": ["startTime", "endTime", "enabled"],
            "properties": {
                "startTime": {"type": "string", "example": "12:00"},
                "endTime": {"type": "string", "example": "14:00"},
                "enabled": {"type": "boolean"}
            }
        },
        "MealWindowsDocument": {
            "type": "object",
            "properties": {
                "mealWindows": {
                    "type": "object",
                    "required": ["breakfast", "lunch", "dinner", "lateNight"],
                    "properties": {
                        "breakfast": {"$ref": "#/definitions/MealWindow"},
                        "lunch": {"$ref": "#/definitions/MealWindow"},
                        "dinner": {"$ref": "#/definitions/MealWindow"},
                        "lateNight": {"$ref": "#/definitions/MealWindow"}
                    }
                }
            }
        },
        "ResetResult": {
            "type": "object",
            "properties": {
                "mealType": {"type": "string"},
                "deleted": {"type": "integer"}
            }
        },
        "AttendanceCount": {
            "type": "object",
            "properties": {
                "mealType": {"type": "string"},
                "day": {"type": "string", "example": "2024-03-01"},
                "count": {"type": "integer"}
            }
        },
        "RosterSyncAccepted": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
