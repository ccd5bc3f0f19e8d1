package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Coverage Assignment API",
        "description": "Substitute coverage openings, rotation, and earnings ledger.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Coverage",
            "description": "Openings and their lifecycle"
        },
        {
            "name": "Earnings",
            "description": "Ledger and earnings summaries"
        },
        {
            "name": "Admin",
            "description": "Roster and absence administration"
        },
        {
            "name": "TimeOff",
            "description": "Teacher time-off requests"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is down"
                    }
                }
            }
        },
        "/coverage/openings": {
            "get": {
                "tags": [
                    "Coverage"
                ],
                "summary": "List coverage openings",
                "parameters": [
                    {
                        "name": "school",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School code (defaults to caller scope)"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "open, requested, claimed, completed or canceled"
                    },
                    {
                        "name": "date",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Date (YYYY-MM-DD)"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false,
                        "description": "Page"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "type": "integer",
                        "required": false,
                        "description": "Page size"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Open a coverage slot",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateOpeningRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/openings/{id}": {
            "get": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Get an opening with its transition history",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/openings/{id}/candidates": {
            "get": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Rank eligible candidates for an opening",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/openings/{id}/confirm": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Confirm a requested assignment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/openings/{id}/complete": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Complete a claimed opening and record the ledger entry",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/openings/{id}/cancel": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Cancel an open opening",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/substitutes/accept-job": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Accept an open job",
                "description": "Conflicts return ALREADY_CLAIMED with retryable=true.",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AcceptJobRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/teachers/accept-job": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Accept an open job as a teacher",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AcceptJobRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/substitutes/withdraw-job": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Withdraw from an assignment with advance notice",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/WithdrawJobRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/substitutes/call-out": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Call out of an assignment",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CallOutRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/teachers/call-out": {
            "post": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Call out of an assignment as a teacher",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CallOutRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/substitutes/offers": {
            "get": {
                "tags": [
                    "Coverage"
                ],
                "summary": "Open offers for a substitute",
                "parameters": [
                    {
                        "name": "substitute_id",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Candidate ID (defaults to caller)"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/substitutes/my-earnings": {
            "get": {
                "tags": [
                    "Earnings"
                ],
                "summary": "Earnings summary for a substitute",
                "parameters": [
                    {
                        "name": "substitute_id",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Assignee ID (defaults to caller)"
                    },
                    {
                        "name": "as_of",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Reference date (YYYY-MM-DD)"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/history": {
            "get": {
                "tags": [
                    "Earnings"
                ],
                "summary": "Coverage ledger history",
                "parameters": [
                    {
                        "name": "school",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School code (defaults to caller scope)"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "pending, verified or paid"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "From date"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "To date"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/history/export": {
            "get": {
                "tags": [
                    "Earnings"
                ],
                "summary": "Export the coverage ledger",
                "parameters": [
                    {
                        "name": "school",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School code (defaults to caller scope)"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "csv or pdf"
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/history/{id}/verify": {
            "post": {
                "tags": [
                    "Earnings"
                ],
                "summary": "Verify a pending ledger entry",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/history/{id}/pay": {
            "post": {
                "tags": [
                    "Earnings"
                ],
                "summary": "Mark a verified ledger entry paid",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/MarkPaidRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coverage/history/{id}/amount": {
            "patch": {
                "tags": [
                    "Earnings"
                ],
                "summary": "Override the amount of a pending ledger entry",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/OverrideAmountRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/emergency-assign": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Open an urgent slot and offer it immediately",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EmergencyAssignRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/mark-absent": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Mark a teacher absent and open their periods for today",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TeacherRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/mark-returned": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Clear a teacher's absence",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TeacherRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/roster": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "List the roster in rotation order",
                "parameters": [
                    {
                        "name": "school",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "School code (defaults to caller scope)"
                    },
                    {
                        "name": "department",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Department"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Add a staff member to the back of the rotation",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/HireStaffRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/roster/{id}": {
            "delete": {
                "tags": [
                    "Admin"
                ],
                "summary": "Remove a staff member from the rotation",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/roster/age": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Advance days since last coverage for a department",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AgeRosterRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/teachers/time-off": {
            "get": {
                "tags": [
                    "TimeOff"
                ],
                "summary": "List own time-off requests",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "TimeOff"
                ],
                "summary": "Request time off",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateTimeOffRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/teachers/time-off/{id}/cancel": {
            "post": {
                "tags": [
                    "TimeOff"
                ],
                "summary": "Cancel a pending time-off request",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/time-off": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "List the school's time-off requests",
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "required": false,
                        "description": "Request status"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/time-off/{id}/approve": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Approve a pending time-off request",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/time-off/{id}/deny": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Deny a pending time-off request",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true,
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Missing token or scope",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "CreateOpeningRequest": {
            "type": "object",
            "properties": {
                "class_id": {
                    "type": "string"
                },
                "class_name": {
                    "type": "string"
                },
                "teacher_id": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "period": {
                    "type": "integer"
                },
                "start_time": {
                    "type": "string"
                },
                "end_time": {
                    "type": "string"
                },
                "kind": {
                    "type": "string",
                    "enum": [
                        "standard",
                        "emergency",
                        "longTerm"
                    ]
                },
                "urgent": {
                    "type": "boolean"
                },
                "pay_amount": {
                    "type": "string",
                    "example": "25.00"
                },
                "mode": {
                    "type": "string",
                    "enum": [
                        "sequential",
                        "broadcast"
                    ]
                }
            },
            "required": [
                "class_id",
                "teacher_id",
                "date",
                "kind"
            ]
        },
        "AcceptJobRequest": {
            "type": "object",
            "properties": {
                "job_id": {
                    "type": "string"
                },
                "substitute_id": {
                    "type": "string"
                },
                "substitute_name": {
                    "type": "string"
                }
            },
            "required": [
                "job_id",
                "substitute_id"
            ]
        },
        "WithdrawJobRequest": {
            "type": "object",
            "properties": {
                "job_id": {
                    "type": "string"
                },
                "substitute_id": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            },
            "required": [
                "job_id",
                "substitute_id"
            ]
        },
        "CallOutRequest": {
            "type": "object",
            "properties": {
                "job_id": {
                    "type": "string"
                },
                "substitute_id": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "job_id",
                "substitute_id",
                "reason"
            ]
        },
        "EmergencyAssignRequest": {
            "type": "object",
            "properties": {
                "class_id": {
                    "type": "string"
                },
                "period": {
                    "type": "integer"
                },
                "date": {
                    "type": "string"
                },
                "broadcast": {
                    "type": "boolean"
                },
                "pay_amount": {
                    "type": "string",
                    "example": "25.00"
                }
            },
            "required": [
                "class_id"
            ]
        },
        "TeacherRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {
                    "type": "string"
                }
            },
            "required": [
                "teacher_id"
            ]
        },
        "HireStaffRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "telegram_chat_id": {
                    "type": "integer"
                },
                "department": {
                    "type": "string"
                },
                "role": {
                    "type": "string",
                    "enum": [
                        "teacher",
                        "substitute"
                    ]
                },
                "employment_status": {
                    "type": "string",
                    "enum": [
                        "full_time",
                        "part_time",
                        "per_diem"
                    ]
                },
                "district_code": {
                    "type": "string"
                },
                "school_code": {
                    "type": "string"
                },
                "approved_districts": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "approved_schools": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "hourly_rate": {
                    "type": "string",
                    "example": "25.00"
                }
            },
            "required": [
                "name",
                "email",
                "department",
                "role",
                "district_code",
                "school_code"
            ]
        },
        "AgeRosterRequest": {
            "type": "object",
            "properties": {
                "school_code": {
                    "type": "string"
                },
                "department": {
                    "type": "string"
                }
            },
            "required": [
                "school_code",
                "department"
            ]
        },
        "MarkPaidRequest": {
            "type": "object",
            "properties": {
                "payment_ref": {
                    "type": "string"
                }
            },
            "required": [
                "payment_ref"
            ]
        },
        "OverrideAmountRequest": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "string",
                    "example": "25.00"
                }
            },
            "required": [
                "amount"
            ]
        },
        "CreateTimeOffRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string"
                },
                "end_date": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            },
            "required": [
                "start_date",
                "end_date"
            ]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "error_kind": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "retryable": {
                    "type": "boolean"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
