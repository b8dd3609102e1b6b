package middlewares

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	validatedBodyKey  = "validated.body"
	validatedQueryKey = "validated.query"
	validatedURIKey   = "validated.uri"
)

// ValidateBody binds the JSON body into T and runs its binding rules. On
// success the parsed value is available to later stages through Body[T].
func ValidateBody[T any]() gin.HandlerFunc {
	return validateInto[T](validatedBodyKey, func(c *gin.Context, out any) error {
		return c.ShouldBindJSON(out)
	})
}

// ValidateQuery binds query parameters (form tags) into T. A parameter given
// with an empty value ("?limit=") counts as absent.
func ValidateQuery[T any]() gin.HandlerFunc {
	return validateInto[T](validatedQueryKey, func(c *gin.Context, out any) error {
		if err := binding.MapFormWithTag(out, presentValues(c.Request.URL.Query()), "form"); err != nil {
			return err
		}
		return binding.Validator.ValidateStruct(out)
	})
}

func presentValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		for _, v := range vals {
			if v != "" {
				out[key] = append(out[key], v)
			}
		}
	}
	return out
}

// ValidateURI binds path parameters (uri tags) into T.
func ValidateURI[T any]() gin.HandlerFunc {
	return validateInto[T](validatedURIKey, func(c *gin.Context, out any) error {
		return c.ShouldBindUri(out)
	})
}

func Body[T any](c *gin.Context) (T, bool)  { return validated[T](c, validatedBodyKey) }
func Query[T any](c *gin.Context) (T, bool) { return validated[T](c, validatedQueryKey) }
func URI[T any](c *gin.Context) (T, bool)   { return validated[T](c, validatedURIKey) }

func validateInto[T any](key string, bind func(*gin.Context, any) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req T

		if err := bind(c, &req); err != nil {
			respond.Fail(c, BindError(err, &req))
			return
		}

		c.Set(key, req)
		c.Next()
	}
}

func validated[T any](c *gin.Context, key string) (T, bool) {
	var zero T

	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	req, ok := v.(T)
	return req, ok
}

// BindError turns a gin binding failure into a single validation error that
// lists every violated field.
func BindError(err error, out any) *apperr.Error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return apperr.New(apperr.KindPayloadTooLarge, "Request body too large")
	}

	return apperr.Validation("Validation error: " + strings.Join(violations(err, out), ", "))
}

func violations(err error, out any) []string {
	rootType := baseStructType(out)

	// validator errors (struct bind tags)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		msgs := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			msgs = append(msgs, fieldPath(rootType, fe)+" "+validationMessage(fe))
		}
		return msgs
	}

	if errors.Is(err, io.EOF) {
		return []string{"request body is required"}
	}

	// in the event of bad json
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []string{"request body is not valid JSON"}
	}

	// in the event of a type mismatch
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := jsonPathFromDotPath(rootType, typeErr.Field)
		if field == "" {
			field = "body"
		}
		return []string{fmt.Sprintf("%s must be of type %s", field, typeErr.Type.String())}
	}

	// query/uri values that do not parse into the target type
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return []string{fmt.Sprintf("%q is not a valid number", numErr.Num)}
	}

	return []string{"request could not be parsed"}
}

func validationMessage(fe validator.FieldError) string {
	rule, param := fe.Tag(), fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + param + unit
	case "max":
		return "must be at most " + param + unit
	case "len":
		return "must be exactly " + param + unit
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

func baseStructType(v any) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// fieldPath reports a violation by its wire name (json, form or uri tag)
// rather than the Go field name.
func fieldPath(rootType reflect.Type, fe validator.FieldError) string {
	// Namespace format is "<StructName>.<Field>[.<NestedField>...]".
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	if path := wirePath(rootType, parts); path != "" {
		return path
	}
	return fe.Field()
}

func jsonPathFromDotPath(rootType reflect.Type, dotPath string) string {
	dotPath = strings.TrimSpace(dotPath)
	if dotPath == "" {
		return ""
	}

	return wirePath(rootType, strings.Split(dotPath, "."))
}

func wirePath(rootType reflect.Type, parts []string) string {
	current := rootType
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		name := part
		var next reflect.Type

		for current != nil && current.Kind() == reflect.Pointer {
			current = current.Elem()
		}
		if current != nil && current.Kind() == reflect.Struct {
			if sf, ok := current.FieldByName(part); ok {
				name = wireName(sf)
				next = sf.Type
			}
		}

		out = append(out, name)
		current = next
	}

	return strings.Join(out, ".")
}

func wireName(sf reflect.StructField) string {
	for _, key := range []string{"json", "form", "uri"} {
		tag := sf.Tag.Get(key)
		if tag == "" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}
