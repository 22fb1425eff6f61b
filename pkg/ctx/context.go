// Package ctx provides the request context handed to every controller action.
//
// Instead of (http.ResponseWriter, *http.Request) a handler receives one
// *Context with helpers for params, binding, identity and the JSON envelope:
//
//	func (oc *OrderController) Show(c *ctx.Context) {
//	    id, ok := c.ParamUint("id")
//	    if !ok {
//	        return
//	    }
//	    c.Success(order)
//	}
//
//	router.Get("/orders/{id}", "orders.show", ctx.Wrap(oc.Show))
package ctx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shashiranjanraj/ferremas/pkg/auth"
	"github.com/shashiranjanraj/ferremas/pkg/bind"
	"github.com/shashiranjanraj/ferremas/pkg/middleware"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
	"github.com/shashiranjanraj/ferremas/pkg/response"
	"github.com/shashiranjanraj/ferremas/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter.
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// ParamUint parses a numeric path parameter. On failure it writes a 404
// and returns false.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || n == 0 {
		c.NotFound()
		return 0, false
	}
	return uint(n), true
}

// Query returns a query-string value. Returns "" if not present.
func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

// DefaultQuery returns a query-string value, or def if it is empty.
func (c *Context) DefaultQuery(key, def string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return def
}

// QueryInt parses an integer query value, returning def when absent or bad.
func (c *Context) QueryInt(key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

// QueryUint parses an optional id filter; zero means "not set".
func (c *Context) QueryUint(key string) uint {
	n, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

// PageParams reads ?page=&limit=.
func (c *Context) PageParams() (int, int) {
	return orm.Page(c.QueryInt("page", 1), c.QueryInt("limit", orm.DefaultLimit))
}

// PostForm returns a form field (urlencoded or multipart body, or query).
func (c *Context) PostForm(key string) string {
	return c.R.FormValue(key)
}

// Header returns the value of a request header.
func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

// Context returns the underlying request context.
func (c *Context) Context() context.Context { return c.R.Context() }

// ─── Identity ─────────────────────────────────────────────────────────────────

// Claims returns the authenticated token claims, or nil on public routes.
func (c *Context) Claims() *auth.Claims {
	claims, _ := middleware.ClaimsFromCtx(c.R)
	return claims
}

// UserID returns the authenticated user id (0 when anonymous).
func (c *Context) UserID() uint {
	if claims := c.Claims(); claims != nil {
		return claims.UserID
	}
	return 0
}

// Role returns the authenticated role ("" when anonymous).
func (c *Context) Role() string {
	if claims := c.Claims(); claims != nil {
		return claims.Role
	}
	return ""
}

// ─── Binding / Validation ─────────────────────────────────────────────────────

// BindJSON decodes the JSON body into dest and validates it. It writes 400
// on malformed JSON, 422 on validation failure, and returns false in both cases.
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// SetHeader sets a response header.
func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

// Status writes just the HTTP status code with an empty body.
func (c *Context) Status(code int) {
	c.status = code
	c.W.WriteHeader(code)
}

// JSON writes an arbitrary JSON body.
func (c *Context) JSON(code int, v any) {
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	c.status = code
	json.NewEncoder(c.W).Encode(v) //nolint:errcheck
}

func (c *Context) envelope(code int, e response.Envelope) {
	c.status = code
	response.Write(c.W, code, e)
}

// Success sends a 200 envelope.
func (c *Context) Success(data any) {
	c.envelope(http.StatusOK, response.Envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 envelope.
func (c *Context) Created(data any) {
	c.envelope(http.StatusCreated, response.Envelope{Status: http.StatusCreated, Data: data})
}

// Paginated sends a 200 envelope holding items and pagination metadata.
func (c *Context) Paginated(items any, p orm.Pagination) {
	c.Success(response.Page{Items: items, Pagination: p})
}

// Error sends an error envelope.
func (c *Context) Error(code int, message string) {
	c.envelope(code, response.Envelope{Status: code, Message: message})
}

// Fail sends an error envelope with a machine-readable code and details.
func (c *Context) Fail(code int, errCode, message string, details any) {
	c.envelope(code, response.Envelope{Status: code, Code: errCode, Message: message, Errors: details})
}

// ValidationError sends a 422 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.envelope(http.StatusUnprocessableEntity, response.Envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

func (c *Context) Unauthorized(message ...string) {
	c.Error(http.StatusUnauthorized, first(message, "Unauthorized"))
}

func (c *Context) Forbidden(message ...string) {
	c.Error(http.StatusForbidden, first(message, "Forbidden"))
}

func (c *Context) NotFound(message ...string) {
	c.Error(http.StatusNotFound, first(message, "Not found"))
}

// Redirect sends an HTTP redirect response.
func (c *Context) Redirect(code int, url string) {
	c.status = code
	http.Redirect(c.W, c.R, url, code)
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }

func first(msgs []string, def string) string {
	if len(msgs) > 0 && msgs[0] != "" {
		return msgs[0]
	}
	return def
}
