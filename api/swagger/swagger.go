package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Enrollment API",
        "description": "Semester course enrollment with capacity and credit guards",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Enrollments", "description": "Student enroll and drop actions"},
        {"name": "Semesters", "description": "Enrollment window and running semester"},
        {"name": "Admin", "description": "Department scoped enrollment views"}
    ],
    "paths": {
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll in a course offering",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Enrolled with a new ledger row", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Re-enrolled on a dropped row", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "AlreadyEnrolled or CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rule rejection with a reason code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/drop": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Drop an enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Dropped", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NotFound", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "NotEnrolled or WindowClosed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/me": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Current and past enrollments of the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/offerings/open": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Offerings open for enrollment in the caller's department",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "WindowClosed or StudentInactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/semesters/enrollment-window": {
            "get": {
                "tags": ["Semesters"],
                "summary": "Semester currently open for enrollment actions, null when none",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/semesters/running": {
            "get": {
                "tags": ["Semesters"],
                "summary": "Semester whose dates contain today, null when none",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/enrollments": {
            "get": {
                "tags": ["Admin"],
                "summary": "Students in scope with their enrolled course count",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "semesterId", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students/{id}/enrollments": {
            "get": {
                "tags": ["Admin"],
                "summary": "Enrollment history of one student in scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NotFound", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/offerings/{id}/roster": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export the enrolled students of an offering",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster file"},
                    "404": {"description": "NotFound", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/offerings/{id}/reconcile": {
            "post": {
                "tags": ["Admin"],
                "summary": "Recount an offering's enrollment counter from the ledger",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "required": ["offering_id"],
            "properties": {
                "offering_id": {"type": "string", "format": "uuid"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
