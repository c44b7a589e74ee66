// Package httputil provides the response envelope, error mapping, request parsing and
// common middleware shared by every HTTP handler.
//
// Every response body has the same shape:
//
//	{"success": true,  "data": {...}, "error": null}
//	{"success": false, "data": null,  "error": {"code": "FORBIDDEN", "message": "...", "details": {...}}}
//
// WriteAppError maps any error onto the apperror taxonomy. Causes of 5xx errors are
// logged with the request's context logger and never serialized.
//
// Middleware:
//
//	handler := httputil.Chain(
//	    httputil.RequestIDMiddleware,
//	    httputil.LoggingMiddleware,
//	    httputil.RecoveryMiddleware,
//	)(router)
package httputil
