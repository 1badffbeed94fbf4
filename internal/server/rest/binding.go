package rest

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the custom tags used by request types and makes
// field errors report JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		// maxbytes bounds the UTF-8 length, unlike max which counts runes.
		_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			return len(fl.Field().String()) <= n
		})
	})
}

// messageSource is implemented by request types. validationMessages maps
// "field.tag" (or just "field") to the message returned to the client.
type messageSource interface {
	validationMessages() map[string]string
}

// bindJSON decodes the body into req and converts any failure into a
// *common.ValidationError.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return toValidationError(err, req)
	}
	return nil
}

func toValidationError(err error, req any) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.NewValidationError("body", "Invalid request body")
	}

	var msgs map[string]string
	if src, ok := req.(messageSource); ok {
		msgs = src.validationMessages()
	}

	out := &common.ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := msgs[field+"."+fe.Tag()]
		if !ok {
			msg, ok = msgs[field]
		}
		if !ok {
			msg = defaultMessage(fe)
		}
		out.Add(field, msg)
	}
	return out
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "maxbytes":
		return "must be at most " + fe.Param() + " bytes"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
