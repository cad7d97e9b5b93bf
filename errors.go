package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"

	"linkbio/accounts"
	"linkbio/pkg/slug"
)

// ErrCode accompanies the HTTP status of every error response. There is no code
// for "not found"; a 404 says enough.
type ErrCode uint8

const (
	// HTTP 400
	BadContentType ErrCode = 1
	InvalidContent ErrCode = 2
	FieldErrors    ErrCode = 3

	// HTTP 401
	LoginRequired      ErrCode = 5
	InvalidToken       ErrCode = 7
	InvalidCredentials ErrCode = 8

	// HTTP 403
	RegistrationClosed ErrCode = 10

	// HTTP 409
	ProfileExists ErrCode = 12

	// HTTP 413
	FileTooLarge ErrCode = 20
	// HTTP 400, the upload is not a decodable image
	NotAnImage ErrCode = 21

	// HTTP 500
	Internal ErrCode = 50
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	ErrorCode ErrCode             `json:"error_code"`
	Error     string              `json:"error"`
	Fields    map[string][]string `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code ErrCode, msg string) {
	c.AbortWithStatusJSON(status, errorBody{ErrorCode: code, Error: msg, RequestID: requestID(c)})
}

func respondFields(c *gin.Context, fields map[string][]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		ErrorCode: FieldErrors,
		Error:     "invalid input",
		Fields:    fields,
		RequestID: requestID(c),
	})
}

func respondNotFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": what + " not found", "request_id": requestID(c)})
}

// respondInternal logs err with the request id and hands the client only an
// opaque code.
func respondInternal(c *gin.Context, op string, err error) {
	rid := requestID(c)
	glog.Errorf("[%s] %s %s: %s: %+v", rid, c.Request.Method, c.Request.URL.Path, op, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
		ErrorCode: Internal,
		Error:     "internal error",
		RequestID: rid,
	})
}

// respondBindError turns a binding failure into a 400 with per-field messages.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		fields := map[string][]string{}
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
		}
		respondFields(c, fields)
	case errors.As(err, &typeErr):
		respondFields(c, map[string][]string{typeErr.Field: {fmt.Sprintf("Expected a %s.", typeErr.Type.Kind())}})
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		respondError(c, http.StatusBadRequest, InvalidContent, "request body is not valid JSON")
	default:
		respondError(c, http.StatusBadRequest, InvalidContent, err.Error())
	}
}

const blankMessage = "This field may not be blank."

const usernameHelp = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "weburl":
		return "Enter a valid URL."
	case "username":
		return usernameHelp
	case "slug":
		return "Enter a valid slug consisting of lowercase letters, numbers, underscores or hyphens."
	}
	return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
}

// accountFieldError maps account errors that belong to a request field.
func accountFieldError(err error) (map[string][]string, bool) {
	switch {
	case errors.Is(err, accounts.ErrUsernameTaken):
		return map[string][]string{"username": {"A user with that username already exists."}}, true
	case errors.Is(err, accounts.ErrInvalidUsername):
		return map[string][]string{"username": {usernameHelp}}, true
	case errors.Is(err, accounts.ErrPasswordRequired):
		return map[string][]string{"password": {"This field is required."}}, true
	}
	return nil, false
}

var webSchemes = map[string]bool{"http": true, "https": true, "ftp": true, "ftps": true}

func validWebURL(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return webSchemes[strings.ToLower(u.Scheme)]
}

func validUsername(fl validator.FieldLevel) bool {
	return accounts.ValidUsername(fl.Field().String())
}

// registerValidators teaches gin's validator the custom tags and makes field
// errors use the json names clients send.
func registerValidators() {
	validatorsOnce.Do(installValidators)
}

var validatorsOnce sync.Once

func installValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		glog.Warning("gin validator engine is not validator/v10; custom tags unavailable")
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("weburl", validWebURL)
	_ = v.RegisterValidation("username", validUsername)
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "" || slug.Valid(fl.Field().String())
	})
}
