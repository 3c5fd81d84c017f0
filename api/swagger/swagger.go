package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Report Card API",
        "description": "Students, subjects, report cards and marks with yearly averages",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header", "description": "Bearer <token>"}
    },
    "tags": [
        {"name": "Authentication"},
        {"name": "Students"},
        {"name": "Subjects"},
        {"name": "ReportCards"},
        {"name": "Marks"},
        {"name": "Overview", "description": "Yearly aggregates and exports"}
    ],
    "paths": {
        "/health": {"get": {"summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/APIError"}},
                    "403": {"description": "Account inactive", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UserInfo"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {
                        "name": "search",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Match name or email"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page size"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/Student"}}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/StudentRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Student"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Student"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Replace student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/StudentRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Student"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "patch": {
                "tags": ["Students"],
                "summary": "Partially update student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/PatchStudentRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Student"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "parameters": [
                    {
                        "name": "search",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Match name or code"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page size"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/Subject"}}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create subject",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/SubjectRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Subject"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Subject ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Subject"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "put": {
                "tags": ["Subjects"],
                "summary": "Replace subject",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Subject ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/SubjectRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Subject"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "patch": {
                "tags": ["Subjects"],
                "summary": "Partially update subject",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Subject ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/PatchSubjectRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Subject"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Delete subject",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Subject ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/report-cards": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "List report cards",
                "parameters": [
                    {
                        "name": "student",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Filter by student ID"
                    },
                    {
                        "name": "year",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Filter by year"
                    },
                    {
                        "name": "search",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Match term"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page size"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/ReportCardDetail"}}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "post": {
                "tags": ["ReportCards"],
                "summary": "Create report card",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ReportCardRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ReportCard"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/report-cards/{id}": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Get report card",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Report card ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReportCardDetail"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "put": {
                "tags": ["ReportCards"],
                "summary": "Replace report card",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Report card ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ReportCardRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReportCard"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "patch": {
                "tags": ["ReportCards"],
                "summary": "Partially update report card",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Report card ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/PatchReportCardRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReportCard"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "tags": ["ReportCards"],
                "summary": "Delete report card",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Report card ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/marks": {
            "get": {
                "tags": ["Marks"],
                "summary": "List marks",
                "parameters": [
                    {
                        "name": "report_card",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Filter by report card ID"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page size"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/MarkDetail"}}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "post": {
                "tags": ["Marks"],
                "summary": "Create mark",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/MarkRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Mark"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "409": {"description": "Duplicate mark", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/marks/{id}": {
            "get": {
                "tags": ["Marks"],
                "summary": "Get mark",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "description": "Mark ID"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MarkDetail"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "put": {
                "tags": ["Marks"],
                "summary": "Replace mark",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "description": "Mark ID"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/MarkRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Mark"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "patch": {
                "tags": ["Marks"],
                "summary": "Partially update mark",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "description": "Mark ID"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/PatchMarkRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Mark"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "tags": ["Marks"],
                "summary": "Delete mark",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "description": "Mark ID"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/report-card/{id}": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Report card with marks and student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Report card ID"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReportCardDetail"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/students/{id}/avg-overview": {
            "get": {
                "tags": ["Overview"],
                "summary": "Yearly averages for a student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "year",
                        "in": "query",
                        "required": true,
                        "type": "integer",
                        "description": "Year"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/YearOverview"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/students/{id}/avg-overview/export": {
            "get": {
                "tags": ["Overview"],
                "summary": "Download yearly overview",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "year",
                        "in": "query",
                        "required": true,
                        "type": "integer",
                        "description": "Year"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": ["csv", "pdf"],
                        "default": "csv"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                },
                "produces": ["text/csv", "application/pdf"]
            }
        },
        "/student/{id}/year-report-cards": {
            "get": {
                "tags": ["Overview"],
                "summary": "Yearly report cards for a student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "year",
                        "in": "query",
                        "required": true,
                        "type": "integer",
                        "description": "Year"
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/YearOverview"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}, "status": {"type": "integer"}}
        },
        "LoginRequest": {"type": "object", "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "UserInfo": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "email": {"type": "string"}, "full_name": {"type": "string"}}
        },
        "LoginResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_in": {"type": "integer"},
                "issued_at": {"type": "string", "format": "date-time"},
                "user": {"$ref": "#/definitions/UserInfo"}
            }
        },
        "Student": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "date_of_birth": {"type": "string", "format": "date"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "StudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "date_of_birth": {"type": "string", "format": "date"}
            }
        },
        "PatchStudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "date_of_birth": {"type": "string", "format": "date"}
            }
        },
        "Subject": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "code": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "SubjectRequest": {"type": "object", "properties": {"name": {"type": "string"}, "code": {"type": "string"}}},
        "PatchSubjectRequest": {"type": "object", "properties": {"name": {"type": "string"}, "code": {"type": "string"}}},
        "ReportCard": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student": {"type": "string"},
                "term": {"type": "string"},
                "year": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "ReportCardRequest": {
            "type": "object",
            "properties": {"student": {"type": "string"}, "term": {"type": "string"}, "year": {"type": "integer"}}
        },
        "PatchReportCardRequest": {
            "type": "object",
            "properties": {"student": {"type": "string"}, "term": {"type": "string"}, "year": {"type": "integer"}}
        },
        "ReportCardDetail": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student": {"type": "string"},
                "term": {"type": "string"},
                "year": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "marks": {"type": "array", "items": {"$ref": "#/definitions/MarkDetail"}},
                "student_detail": {"$ref": "#/definitions/Student"}
            }
        },
        "Mark": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "report_card": {"type": "string"},
                "subject": {"type": "string"},
                "score": {"type": "number", "format": "decimal"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "MarkDetail": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "score": {"type": "number", "format": "decimal"},
                "subject": {"$ref": "#/definitions/Subject"}
            }
        },
        "MarkRequest": {
            "type": "object",
            "properties": {
                "report_card": {"type": "string"},
                "subject": {"type": "string"},
                "score": {"type": "number", "format": "decimal"}
            }
        },
        "PatchMarkRequest": {
            "type": "object",
            "properties": {
                "report_card": {"type": "string"},
                "subject": {"type": "string"},
                "score": {"type": "number", "format": "decimal"}
            }
        },
        "SubjectAverage": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "subject_name": {"type": "string"},
                "average_score": {"type": "number", "format": "decimal"}
            }
        },
        "YearOverview": {
            "type": "object",
            "properties": {
                "report_cards": {"type": "array", "items": {"$ref": "#/definitions/ReportCardDetail"}},
                "subject_averages": {"type": "array", "items": {"$ref": "#/definitions/SubjectAverage"}},
                "overall_average": {"type": "number", "format": "decimal", "x-nullable": true}
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
