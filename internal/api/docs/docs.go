// Package docs holds the OpenAPI description served at /swagger/*.
// Regenerate with: swag init -g internal/api/router.go -o internal/api/docs
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
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register with an invite token",
                "parameters": [
                    {
                        "description": "Registration details",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.registerRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {
                        "description": "Login credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.loginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/auth/logout": {
            "get": {
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "OK"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/auth/delete": {
            "get": {
                "tags": ["auth"],
                "summary": "Delete own account",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/token": {
            "get": {
                "produces": ["application/json"],
                "tags": ["token"],
                "summary": "List invite tokens",
                "parameters": [
                    {"type": "string", "description": "Filter by issuing admin", "name": "issued_by", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.InviteToken"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            },
            "post": {
                "produces": ["application/json"],
                "tags": ["token"],
                "summary": "Issue an invite token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.InviteToken"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/token/{value}": {
            "delete": {
                "tags": ["token"],
                "summary": "Revoke an invite token",
                "parameters": [
                    {"type": "string", "description": "Token value", "name": "value", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/info": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Server information",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Info"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.readinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.readinessResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.InviteToken": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "issued_by": {"type": "string"},
                "issued_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "consumed": {"type": "boolean"},
                "consumed_by": {"type": "string"}
            }
        },
        "handler.Info": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "version": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "handler.dependencyStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handler.errorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "InvalidCredentials"},
                "msg": {"type": "string", "example": "invalid credentials"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["password", "user"],
            "properties": {
                "user": {"type": "string"},
                "password": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "handler.readinessResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "dependencies": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/handler.dependencyStatus"}
                }
            }
        },
        "handler.registerRequest": {
            "type": "object",
            "required": ["password", "token", "user"],
            "properties": {
                "user": {"type": "string"},
                "password": {"type": "string"},
                "token": {"type": "string"},
                "code": {"type": "string"},
                "second_factor_as_qr": {"type": "boolean"}
            }
        },
        "handler.registerResponse": {
            "type": "object",
            "properties": {
                "second_factor_url": {"type": "string"},
                "second_factor_qr": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tinygate API",
	Description:      "Invite-gated registration, login and session management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
