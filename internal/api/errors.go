package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/me/shennong/pkg/model"
)

// errorBody is the backend's error envelope. detail is a plain message, a
// JSON-encoded object of field messages (job validation), or a list of
// request validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type requestViolation struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func parseError(status int, body []byte) *model.APIError {
	apiErr := &model.APIError{StatusCode: status, Message: http.StatusText(status)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		if s := strings.TrimSpace(string(body)); s != "" {
			apiErr.Message = s
		}
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		var fields map[string]string
		if err := json.Unmarshal([]byte(detail), &fields); err == nil && len(fields) > 0 {
			apiErr.Message = "validation failed"
			apiErr.Details = fieldErrors(fields)
			return apiErr
		}
		apiErr.Message = detail
		return apiErr
	}

	var violations []requestViolation
	if err := json.Unmarshal(eb.Detail, &violations); err == nil {
		apiErr.Message = "validation failed"
		for _, v := range violations {
			apiErr.Details = append(apiErr.Details, model.FieldError{Field: locField(v.Loc), Message: v.Msg})
		}
		return apiErr
	}

	apiErr.Message = string(eb.Detail)
	return apiErr
}

func fieldErrors(fields map[string]string) []model.FieldError {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]model.FieldError, len(names))
	for i, k := range names {
		out[i] = model.FieldError{Field: k, Message: fields[k]}
	}
	return out
}

// locField joins a location path, dropping the leading "body"/"query" part.
func locField(loc []any) string {
	parts := make([]string, 0, len(loc))
	for i, p := range loc {
		s, ok := p.(string)
		if !ok {
			b, _ := json.Marshal(p)
			s = string(b)
		}
		if i == 0 && (s == "body" || s == "query" || s == "path") {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}
