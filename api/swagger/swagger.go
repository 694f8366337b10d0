package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SIS Directory API",
        "description": "Identifier and credential allocation for the school directory",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "People", "description": "Single-record registration with code allocation"},
        {"name": "Imports", "description": "Bulk registration and credential slips"},
        {"name": "Backfill", "description": "Teacher code reconciliation"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/students": {
            "post": {
                "tags": ["People"],
                "summary": "Register a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/staff": {
            "post": {
                "tags": ["People"],
                "summary": "Register a staff member",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStaffRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers": {
            "post": {
                "tags": ["People"],
                "summary": "Register a teacher",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTeacherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/credentials": {
            "post": {
                "tags": ["People"],
                "summary": "Regenerate teacher credentials",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/imports/people": {
            "post": {
                "tags": ["Imports"],
                "summary": "Bulk-register people",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkCreateRequest"}},
                    {"name": "slips", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/backfill/teacher-codes": {
            "post": {
                "tags": ["Backfill"],
                "summary": "Queue a teacher code backfill run",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/backfill/teacher-codes/last": {
            "get": {
                "tags": ["Backfill"],
                "summary": "Fetch the most recent backfill report",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "school_id": {"type": "string"},
                "campus_id": {"type": "string"},
                "full_name": {"type": "string"},
                "year": {"type": "integer"}
            },
            "required": ["school_id", "full_name", "year"]
        },
        "CreateStaffRequest": {
            "type": "object",
            "properties": {
                "school_id": {"type": "string"},
                "campus_id": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["school_id", "full_name"]
        },
        "CreateTeacherRequest": {
            "type": "object",
            "properties": {
                "school_id": {"type": "string"},
                "campus_id": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["school_id", "full_name"]
        },
        "ImportRow": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["STUDENT", "TEACHER", "STAFF"]},
                "school_id": {"type": "string"},
                "campus_id": {"type": "string"},
                "full_name": {"type": "string"},
                "year": {"type": "integer"}
            },
            "required": ["role", "school_id", "full_name"]
        },
        "BulkCreateRequest": {
            "type": "object",
            "properties": {
                "rows": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ImportRow"}
                }
            },
            "required": ["rows"]
        },
        "IssuedCredentials": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RegistrationResult": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "role": {"type": "string"},
                "code": {"type": "string"},
                "credentials": {"$ref": "#/definitions/IssuedCredentials"}
            }
        },
        "BackfillReport": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "teachers_seen": {"type": "integer"},
                "groups": {"type": "integer"},
                "skipped": {"type": "integer"},
                "updated": {"type": "integer"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
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
