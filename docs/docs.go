// Package docs registers the OpenAPI description served under /swagger.
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
    "securityDefinitions": {
        "CallerID": {
            "type": "apiKey",
            "name": "X-Caller-ID",
            "in": "header"
        }
    },
    "paths": {
        "/commitments": {"post": {"tags": ["commitments"], "summary": "Create a commitment", "responses": {"201": {"description": "Created"}}}},
        "/commitments/{id}": {"get": {"tags": ["commitments"], "summary": "Get a commitment", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/value": {"put": {"tags": ["commitments"], "summary": "Record a new current value", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/violations": {"get": {"tags": ["commitments"], "summary": "Check whether a commitment violates its rules", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/violations/details": {"get": {"tags": ["commitments"], "summary": "Get the violation breakdown of a commitment", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/settle": {"post": {"tags": ["commitments"], "summary": "Settle an expired commitment", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/early-exit": {"post": {"tags": ["commitments"], "summary": "Exit a commitment before expiry", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/events": {"get": {"tags": ["commitments"], "summary": "Replay the recorded events of a commitment", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/attestations": {"get": {"tags": ["compliance"], "summary": "List the attestations of a commitment", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/health": {"get": {"tags": ["compliance"], "summary": "Get health metrics of a commitment", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/compliance": {"get": {"tags": ["compliance"], "summary": "Evaluate whether a commitment is compliant", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/score": {"get": {"tags": ["compliance"], "summary": "Recompute the compliance score", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/fees": {"post": {"tags": ["compliance"], "summary": "Record generated fees", "responses": {"200": {"description": "OK"}}}},
        "/commitments/{id}/drawdown": {"post": {"tags": ["compliance"], "summary": "Record an observed value", "responses": {"200": {"description": "OK"}}}},
        "/owners/{owner}/commitments": {"get": {"tags": ["commitments"], "summary": "List an owner's commitments", "responses": {"200": {"description": "OK"}}}},
        "/stats": {"get": {"tags": ["commitments"], "summary": "Protocol-wide counters", "responses": {"200": {"description": "OK"}}}},
        "/admin/emergency": {"put": {"tags": ["admin"], "summary": "Toggle emergency mode", "responses": {"200": {"description": "OK"}}}},
        "/attestations": {"post": {"tags": ["compliance"], "summary": "Submit an attestation", "responses": {"201": {"description": "Created"}}}},
        "/attestations/batch": {"post": {"tags": ["compliance"], "summary": "Submit several attestations", "responses": {"200": {"description": "OK"}}}},
        "/recorders": {"post": {"tags": ["admin"], "summary": "Authorise a recorder", "responses": {"200": {"description": "OK"}}}},
        "/recorders/{recorder}": {
            "get": {"tags": ["compliance"], "summary": "Get a recorder's status", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["admin"], "summary": "Revoke a recorder", "responses": {"200": {"description": "OK"}}}
        },
        "/pools": {
            "get": {"tags": ["pools"], "summary": "List registered pools", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["pools"], "summary": "Register a yield pool", "responses": {"201": {"description": "Created"}}}
        },
        "/pools/{id}": {"get": {"tags": ["pools"], "summary": "Get a pool", "responses": {"200": {"description": "OK"}}}},
        "/pools/{id}/status": {"put": {"tags": ["pools"], "summary": "Activate or deactivate a pool", "responses": {"200": {"description": "OK"}}}},
        "/pools/{id}/capacity": {"put": {"tags": ["pools"], "summary": "Change the capacity of a pool", "responses": {"200": {"description": "OK"}}}},
        "/allocations": {"post": {"tags": ["allocations"], "summary": "Allocate commitment capital across pools", "responses": {"201": {"description": "Created"}}}},
        "/allocations/{id}": {"get": {"tags": ["allocations"], "summary": "Get the allocation of a commitment", "responses": {"200": {"description": "OK"}}}},
        "/allocations/{id}/rebalance": {"post": {"tags": ["allocations"], "summary": "Re-plan an allocation", "responses": {"200": {"description": "OK"}}}},
        "/allocations/{id}/yield": {"get": {"tags": ["allocations"], "summary": "Estimate the annual yield", "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "CommitVault API",
	Description:      "Commitment escrow, compliance attestation and yield allocation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
