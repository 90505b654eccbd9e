package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// Error writes an error response
func Error(w http.ResponseWriter, statusCode int, message string) {
	JSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// ErrorCode writes an error response carrying a stable machine-readable
// code so clients can branch on the rejection reason
func ErrorCode(w http.ResponseWriter, statusCode int, code, message string) {
	if code == "" {
		Error(w, statusCode, message)
		return
	}
	JSON(w, statusCode, map[string]string{
		"error": message,
		"code":  code,
	})
}

// Success writes a success response with data
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// Created writes a created response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// NoContent writes a no content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Paginated writes a paginated response
func Paginated(w http.ResponseWriter, data interface{}, total, limit, offset int) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
		"pagination": map[string]int{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// PaginatedWith writes a paginated response with extra top-level fields,
// used by listings that carry aggregates alongside the page
func PaginatedWith(w http.ResponseWriter, data interface{}, total, limit, offset int, extra map[string]interface{}) {
	body := map[string]interface{}{
		"success": true,
		"data":    data,
		"pagination": map[string]int{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	JSON(w, http.StatusOK, body)
}
