// Package docs registra la especificación OpenAPI servida en /swagger/*.
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
        "/reports": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Listar avisos",
                "parameters": [
                    {"type": "integer", "name": "offset", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Publicar mascota perdida",
                "parameters": [
                    {"type": "string", "name": "X-Debug-Caller", "in": "header"},
                    {"type": "string", "name": "Authorization", "in": "header"}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "202": {"description": "Accepted: transferencia de token enviada, sin confirmar"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"},
                    "422": {"description": "Unprocessable Entity"}
                }
            }
        },
        "/reports/{reportID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Detalle de un aviso",
                "parameters": [{"type": "integer", "name": "reportID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/reports/{reportID}/found": {
            "post": {
                "tags": ["reports"],
                "summary": "Marcar como encontrada",
                "parameters": [{"type": "integer", "name": "reportID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}
            }
        },
        "/reports/{reportID}/confirm": {
            "post": {
                "tags": ["reports"],
                "summary": "Confirmar hallazgo (dueño)",
                "parameters": [{"type": "integer", "name": "reportID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}
            }
        },
        "/reports/{reportID}/claim": {
            "post": {
                "tags": ["reports"],
                "summary": "Cobrar recompensa",
                "parameters": [{"type": "integer", "name": "reportID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted: pago enviado, sin confirmar"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/reports/{reportID}/cancel": {
            "post": {
                "tags": ["reports"],
                "summary": "Cancelar aviso",
                "parameters": [{"type": "integer", "name": "reportID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted: devolución enviada, sin confirmar"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/reports/{reportID}/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Listar eventos de un aviso",
                "parameters": [
                    {"type": "integer", "name": "reportID", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "types", "in": "query"},
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Listar eventos del registro",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wallets/{address}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["wallets"],
                "summary": "Saldos de una dirección",
                "parameters": [{"type": "string", "name": "address", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/wallets/approve": {
            "post": {
                "tags": ["wallets"],
                "summary": "Aprobar custodia",
                "responses": {"204": {"description": "No Content"}, "501": {"description": "Not Implemented"}}
            }
        },
        "/wallets/mint": {
            "post": {
                "tags": ["wallets"],
                "summary": "Faucet de desarrollo",
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}
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
	Title:            "PetTrace API",
	Description:      "Registro de mascotas perdidas con recompensa en escrow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
