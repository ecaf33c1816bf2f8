package apperr

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
)

// ===== Error model (catalog/lending/lookup 共通) =====

type Code string

const (
	CodeBadRequest       Code = "bad_request"
	CodeValidation       Code = "validation_error"
	CodeNotPermitted     Code = "not_permitted"
	CodeNotFound         Code = "record_not_found"
	CodeExternalNotFound Code = "external_service_record_not_found"
	CodeExternalService  Code = "external_service_error"
	CodeOutOfStock       Code = "out_of_stock"
	CodeAlreadyReturned  Code = "already_returned"
	CodeBookOnLoan       Code = "book_on_loan"
	CodeUnauthenticated  Code = "unauthenticated"
	CodeInternal         Code = "internal_error"
)

// FieldBase はフィールドに紐付かないエラー（削除ガードなど）のキー
const FieldBase = "base"

type APIError struct {
	Code    Code
	Message string
	Status  int
	Fields  map[string][]string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newErr(code Code, status int, msg string) *APIError {
	return &APIError{Code: code, Message: msg, Status: status}
}

func ErrBadRequest(msg string) *APIError { return newErr(CodeBadRequest, http.StatusBadRequest, msg) }
func ErrValidation(msg string) *APIError {
	return newErr(CodeValidation, http.StatusUnprocessableEntity, msg)
}
func ErrNotPermitted(msg string) *APIError { return newErr(CodeNotPermitted, http.StatusForbidden, msg) }
func ErrNotFound(msg string) *APIError     { return newErr(CodeNotFound, http.StatusNotFound, msg) }
func ErrExternalNotFound(msg string) *APIError {
	return newErr(CodeExternalNotFound, http.StatusNotFound, msg)
}
func ErrExternalService(msg string) *APIError {
	return newErr(CodeExternalService, http.StatusServiceUnavailable, msg)
}
func ErrOutOfStock(msg string) *APIError { return newErr(CodeOutOfStock, http.StatusConflict, msg) }
func ErrAlreadyReturned(msg string) *APIError {
	return newErr(CodeAlreadyReturned, http.StatusConflict, msg)
}
func ErrUnauthenticated(msg string) *APIError {
	return newErr(CodeUnauthenticated, http.StatusUnauthorized, msg)
}
func ErrInternal(msg string) *APIError { return newErr(CodeInternal, http.StatusInternalServerError, msg) }

// ErrBookOnLoan は削除ガードの失敗。base フィールドのエラーとして返す。
func ErrBookOnLoan(msg string) *APIError {
	e := newErr(CodeBookOnLoan, http.StatusUnprocessableEntity, msg)
	e.Fields = map[string][]string{FieldBase: {msg}}
	return e
}

// FieldErrors はフィールド単位のバリデーションエラーを集約する
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, msg string) { f[field] = append(f[field], msg) }

func (f FieldErrors) Empty() bool { return len(f) == 0 }

// Err は集約済みのエラーを ValidationError にまとめる。空なら nil。
func (f FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var msgs []string
	for _, k := range keys {
		for _, m := range f[k] {
			msgs = append(msgs, k+" "+m)
		}
	}
	e := ErrValidation(strings.Join(msgs, ", "))
	e.Fields = map[string][]string(f)
	return e
}

func As(err error) (*APIError, bool) {
	var api *APIError
	if errors.As(err, &api) {
		return api, true
	}
	return nil, false
}

// Is は err が指定コードの APIError かどうか
func Is(err error, code Code) bool {
	api, ok := As(err)
	return ok && api.Code == code
}

func ToHTTPStatus(err error) int {
	if api, ok := As(err); ok && api.Status != 0 {
		return api.Status
	}
	return http.StatusInternalServerError
}

// ===== レスポンス =====

type errorDTO struct {
	Error struct {
		Code    Code                `json:"code"`
		Message string              `json:"message"`
		Status  int                 `json:"status"`
		Fields  map[string][]string `json:"fields,omitempty"`
	} `json:"error"`
}

// Body はハンドラ用のエラーJSON。APIError 以外は中身を出さない。
func Body(err error) any {
	var e errorDTO
	if api, ok := As(err); ok {
		e.Error.Code = api.Code
		e.Error.Message = api.Message
		e.Error.Status = ToHTTPStatus(err)
		e.Error.Fields = api.Fields
		return e
	}
	e.Error.Code = CodeInternal
	e.Error.Message = "internal error"
	e.Error.Status = http.StatusInternalServerError
	return e
}

// Log はエラー応答を1行で出す。5xx は ERROR、それ以外は WARN。
func Log(method, path string, err error) {
	status := ToHTTPStatus(err)
	code := CodeInternal
	if api, ok := As(err); ok {
		code = api.Code
	}
	level := "[WARN]"
	if status >= 500 {
		level = "[ERROR]"
	}
	log.Printf("%s code=%s status=%d method=%s path=%s err=%v", level, code, status, method, path, err)
}
