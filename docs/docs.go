// Package docs は /swagger で配信する OpenAPI 定義
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "schemes": {{ marshal .Schemes }},
  "securityDefinitions": {
    "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
  },
  "paths": {
    "/login": {
      "post": {
        "tags": ["accounts"], "summary": "ログインしてトークンを得る",
        "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
        "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Error"}}}
      }
    },
    "/register": {
      "post": {
        "tags": ["accounts"], "summary": "利用者登録",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
        "responses": {"201": {"description": "Created"}, "422": {"description": "Validation", "schema": {"$ref": "#/definitions/Error"}}}
      }
    },
    "/books": {
      "get": {
        "tags": ["books"], "summary": "本の検索",
        "parameters": [
          {"in": "query", "name": "q", "type": "string"},
          {"in": "query", "name": "sort", "type": "string", "enum": ["newest", "title_asc", "published_desc"]},
          {"in": "query", "name": "page", "type": "integer"}
        ],
        "responses": {"200": {"description": "OK"}}
      },
      "post": {
        "tags": ["books"], "summary": "本の登録（手入力）", "security": [{"Bearer": []}],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookRequest"}}],
        "responses": {"201": {"description": "Created"}, "422": {"description": "Validation", "schema": {"$ref": "#/definitions/Error"}}}
      }
    },
    "/books/{id}": {
      "get": {
        "tags": ["books"], "summary": "本の詳細",
        "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}}
      },
      "patch": {
        "tags": ["books"], "summary": "本の更新（指定した項目だけ変更）", "security": [{"Bearer": []}],
        "parameters": [
          {"in": "path", "name": "id", "type": "integer", "required": true},
          {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBookRequest"}}
        ],
        "responses": {
          "200": {"description": "OK"},
          "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}},
          "422": {"description": "Validation", "schema": {"$ref": "#/definitions/Error"}}
        }
      },
      "delete": {
        "tags": ["books"], "summary": "本の削除（貸出中は不可）", "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
        "responses": {"204": {"description": "No Content"}, "422": {"description": "On loan", "schema": {"$ref": "#/definitions/Error"}}}
      }
    },
    "/books/isbn/{isbn}": {
      "get": {
        "tags": ["books"], "summary": "外部カタログで ISBN を検索", "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "isbn", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "Not found in external catalog"}, "503": {"description": "External service error"}}
      }
    },
    "/books/isbn": {
      "post": {
        "tags": ["books"], "summary": "ISBN から本を登録", "security": [{"Bearer": []}],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterFromISBNRequest"}}],
        "responses": {
          "201": {"description": "Created"},
          "404": {"description": "Not found in external catalog", "schema": {"$ref": "#/definitions/Error"}},
          "422": {"description": "Validation", "schema": {"$ref": "#/definitions/Error"}},
          "503": {"description": "External service error", "schema": {"$ref": "#/definitions/Error"}}
        }
      }
    },
    "/lendings": {
      "get": {
        "tags": ["lendings"], "summary": "貸出一覧", "security": [{"Bearer": []}],
        "parameters": [
          {"in": "query", "name": "outstanding", "type": "boolean"},
          {"in": "query", "name": "user_id", "type": "integer"},
          {"in": "query", "name": "book_id", "type": "integer"},
          {"in": "query", "name": "limit", "type": "integer"},
          {"in": "query", "name": "offset", "type": "integer"}
        ],
        "responses": {"200": {"description": "OK"}}
      },
      "post": {
        "tags": ["lendings"], "summary": "本を借りる", "security": [{"Bearer": []}],
        "responses": {"201": {"description": "Created"}, "409": {"description": "Out of stock", "schema": {"$ref": "#/definitions/Error"}}}
      }
    },
    "/lendings/{lending_ulid}": {
      "delete": {
        "tags": ["lendings"], "summary": "返却する", "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "lending_ulid", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}, "409": {"description": "Already returned", "schema": {"$ref": "#/definitions/Error"}}}
      }
    }
  },
  "definitions": {
    "Error": {
      "type": "object",
      "properties": {
        "error": {
          "type": "object",
          "properties": {
            "code": {"type": "string"},
            "message": {"type": "string"},
            "status": {"type": "integer"},
            "fields": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}}
          }
        }
      }
    },
    "LoginRequest": {
      "type": "object",
      "properties": {"email_address": {"type": "string"}, "password": {"type": "string"}}
    },
    "RegisterRequest": {
      "type": "object",
      "properties": {
        "name": {"type": "string"}, "email_address": {"type": "string"},
        "password": {"type": "string"}, "password_confirmation": {"type": "string"}
      }
    },
    "CreateBookRequest": {
      "type": "object",
      "properties": {
        "title": {"type": "string"}, "isbn": {"type": "string"}, "publisher": {"type": "string"},
        "published_date": {"type": "string"}, "stock_count": {"type": "integer"},
        "author_names": {"type": "string"}, "tag_names": {"type": "string"}
      }
    },
    "UpdateBookRequest": {
      "type": "object",
      "properties": {
        "title": {"type": "string"}, "isbn": {"type": "string"}, "publisher": {"type": "string"},
        "published_date": {"type": "string"}, "stock_count": {"type": "integer"},
        "author_names": {"type": "string"}, "tag_names": {"type": "string"}
      }
    },
    "RegisterFromISBNRequest": {
      "type": "object",
      "properties": {"isbn": {"type": "string"}, "stock_count": {"type": "integer"}}
    }
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Library API",
	Description:      "蔵書・貸出管理 API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
