package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Eleicao API",
        "description": "Case lifecycle, deadline engine and ballot gate for electoral challenge processes",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Challenges", "description": "Impugnação lifecycle and rulings"},
        {"name": "Deadlines", "description": "Prazo windows, extensions and sweeps"},
        {"name": "Ballots", "description": "Vote casting and receipts"}
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
        "/challenges": {
            "get": {
                "tags": ["Challenges"],
                "summary": "List challenges",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Challenges"],
                "summary": "File a new electoral challenge",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Get challenge detail",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/challenges/protocol/{protocol}": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Get challenge detail by protocol number",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/defense": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Submit the defense for a challenge",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Window closed or invalid state", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/challenges/{id}/ruling": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Render a ruling on a challenge",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/ruling/export": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Download the decision record as PDF",
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF document"}
                }
            }
        },
        "/challenges/{id}/appeal": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Appeal a ruling to the second instance",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/archive": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Archive a judged challenge",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/deadlines": {
            "get": {
                "tags": ["Challenges"],
                "summary": "List the prazo history of a challenge",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/documents": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Attach a document reference to a challenge",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/documents/{docId}": {
            "delete": {
                "tags": ["Challenges"],
                "summary": "Tombstone a document reference",
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/deadlines/{id}/extend": {
            "post": {
                "tags": ["Deadlines"],
                "summary": "Extend an active deadline",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not extendable", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/deadlines/sweep": {
            "post": {
                "tags": ["Deadlines"],
                "summary": "Run a deadline expiry sweep immediately",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ballots": {
            "post": {
                "tags": ["Ballots"],
                "summary": "Cast a ballot in an open election",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already voted or election closed", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/ballots/{electionId}/receipt": {
            "get": {
                "tags": ["Ballots"],
                "summary": "Fetch the caller's ballot receipt",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "total": {"type": "integer"}
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
