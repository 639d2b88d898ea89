// Package docs is generated by swag init from the handler annotations in
// internal/transport/http. Regenerate instead of editing.
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
        "/api/optimization": {
            "post": {
                "description": "Registers the job (pending) and runs the optimizer in the background. Poll GET /api/optimization/{id} for progress.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Start an optimization job",
                "parameters": [
                    {
                        "description": "optimizer parameters (similarity_threshold defaults to 0.7)",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.optimizationDTO"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/httptransport.createJobResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/api/optimization/analyze": {
            "post": {
                "description": "Runs the optimizer synchronously in dry-run mode and reports what it would change.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Preview optimization issues",
                "parameters": [
                    {
                        "description": "optimizer parameters (dry_run and verbose are forced)",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.optimizationDTO"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.Analysis"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/api/optimization/cleanup": {
            "post": {
                "description": "Deletes every job created more than max_age_days ago, whatever its status.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Remove old optimization jobs",
                "parameters": [
                    {
                        "description": "max_age_days defaults to 7",
                        "name": "request",
                        "in": "body",
                        "schema": {"$ref": "#/definitions/httptransport.cleanupDTO"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.cleanupResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/api/optimization/events": {
            "get": {
                "description": "Empty unless an event store (Redis) is configured.",
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Recent job lifecycle events",
                "parameters": [
                    {"type": "integer", "description": "number of events (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.eventsResp"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/api/optimization/history": {
            "get": {
                "description": "Newest first. Dates accept RFC3339 or YYYY-MM-DD and bound the job start time inclusively.",
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "List optimization jobs",
                "parameters": [
                    {"type": "string", "description": "pending|running|completed|failed|cancelled", "name": "status", "in": "query"},
                    {"type": "string", "description": "lower bound of start time", "name": "start_date", "in": "query"},
                    {"type": "string", "description": "upper bound of start time", "name": "end_date", "in": "query"},
                    {"type": "integer", "description": "page size (default 20, max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.historyResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/api/optimization/statistics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Aggregate optimization statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.statisticsResp"}}
                }
            }
        },
        "/api/optimization/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Get optimization job status",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.jobResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/api/optimization/{id}/cancel": {
            "post": {
                "description": "Marks the job cancelled. An optimizer process that already started is not interrupted; its outcome is discarded.",
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Cancel an optimization job",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.cancelResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        }
    },
    "definitions": {
        "entity.Analysis": {
            "type": "object",
            "properties": {
                "issues": {"type": "array", "items": {"$ref": "#/definitions/entity.Issue"}},
                "recommendations": {"type": "array", "items": {"$ref": "#/definitions/entity.Recommendation"}},
                "summary": {"$ref": "#/definitions/entity.AnalysisSummary"}
            }
        },
        "entity.AnalysisSummary": {
            "type": "object",
            "properties": {
                "estimated_duration_minutes": {"type": "integer"},
                "estimated_savings_mb": {"type": "number"},
                "total_affected_memories": {"type": "integer"},
                "total_issues": {"type": "integer"}
            }
        },
        "entity.Issue": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "description": {"type": "string"},
                "severity": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "entity.OptimizationRequest": {
            "type": "object",
            "properties": {
                "actor_id": {"type": "string"},
                "agent_id": {"type": "string"},
                "dry_run": {"type": "boolean"},
                "memory_type": {"type": "string"},
                "run_id": {"type": "string"},
                "similarity_threshold": {"type": "number"},
                "user_id": {"type": "string"},
                "verbose": {"type": "boolean"}
            }
        },
        "entity.OptimizationResult": {
            "type": "object",
            "properties": {
                "deduplicated": {"type": "number"},
                "duration_seconds": {"type": "number"},
                "enhanced": {"type": "number"},
                "errors": {"type": "number"},
                "memories_affected": {"type": "number"},
                "merged": {"type": "number"},
                "space_saved_mb": {"type": "number"}
            }
        },
        "entity.Recommendation": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "priority": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "httptransport.apiError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "httptransport.cancelResp": {
            "type": "object",
            "properties": {
                "cancelled_at": {"type": "string"},
                "job_id": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "httptransport.cleanupDTO": {
            "type": "object",
            "properties": {
                "max_age_days": {"type": "number"}
            }
        },
        "httptransport.cleanupResp": {
            "type": "object",
            "properties": {
                "deleted": {"type": "integer"},
                "message": {"type": "string"},
                "remaining": {"type": "integer"}
            }
        },
        "httptransport.createJobResp": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "message": {"type": "string"},
                "start_time": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "httptransport.eventsResp": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/service.JobEvent"}}
            }
        },
        "httptransport.historyItem": {
            "type": "object",
            "properties": {
                "duration": {"type": "integer"},
                "end_time": {"type": "string"},
                "has_result": {"type": "boolean"},
                "job_id": {"type": "string"},
                "logs_count": {"type": "integer"},
                "start_time": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "httptransport.historyResp": {
            "type": "object",
            "properties": {
                "history": {"type": "array", "items": {"$ref": "#/definitions/httptransport.historyItem"}},
                "pagination": {"$ref": "#/definitions/httptransport.pagination"},
                "total": {"type": "integer"}
            }
        },
        "httptransport.jobResp": {
            "type": "object",
            "properties": {
                "current_stage": {"type": "string"},
                "duration": {"type": "integer"},
                "end_time": {"type": "string"},
                "job_id": {"type": "string"},
                "logs": {"type": "array", "items": {"$ref": "#/definitions/httptransport.logResp"}},
                "progress": {"type": "integer"},
                "request": {"$ref": "#/definitions/entity.OptimizationRequest"},
                "result": {"$ref": "#/definitions/entity.OptimizationResult"},
                "start_time": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "httptransport.logResp": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "time": {"type": "string"}
            }
        },
        "httptransport.optimizationDTO": {
            "type": "object",
            "properties": {
                "actor_id": {"type": "string"},
                "agent_id": {"type": "string"},
                "dry_run": {"type": "boolean"},
                "memory_type": {"type": "string"},
                "run_id": {"type": "string"},
                "similarity_threshold": {"type": "number"},
                "user_id": {"type": "string"},
                "verbose": {"type": "boolean"}
            }
        },
        "httptransport.pagination": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "httptransport.statisticsResp": {
            "type": "object",
            "properties": {
                "avg_duration": {"type": "number"},
                "by_status": {"type": "object", "additionalProperties": {"type": "integer"}},
                "cancelled_jobs": {"type": "integer"},
                "failed_jobs": {"type": "integer"},
                "last_run": {"type": "string"},
                "successful_jobs": {"type": "integer"},
                "total_errors": {"type": "number"},
                "total_jobs": {"type": "integer"},
                "total_memories_deduplicated": {"type": "number"},
                "total_memories_enhanced": {"type": "number"},
                "total_memories_merged": {"type": "number"},
                "total_memories_processed": {"type": "number"},
                "total_optimizer_seconds": {"type": "number"},
                "total_space_saved_mb": {"type": "number"}
            }
        },
        "service.JobEvent": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "progress": {"type": "integer"},
                "stage": {"type": "string"},
                "status": {"type": "string"},
                "time": {"type": "string"},
                "type": {"type": "string"}
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
	Title:            "Memory Optimization Service API",
	Description:      "Runs memory optimization passes as background jobs and reports their progress, history and statistics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
