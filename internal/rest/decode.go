package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeData unmarshals the envelope payload and runs struct validation over
// it. The server stays authoritative, so a payload that fails its own
// contract is logged and kept, never rejected.
func (c *Client) decodeData(ctx context.Context, data json.RawMessage, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode response data")
	}

	if err := validate.Struct(dest); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// Non-struct payloads are not validated.
			return nil
		}
		lctx := c.logg.WithField(ctx, "violations", describeValidationErrors(err))
		c.logg.Warn(lctx, "response payload violates contract")
	}
	return nil
}

func describeValidationErrors(err error) []string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	described := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		described = append(described, fmt.Sprintf("%s: failed %q", fieldErr.Field(), fieldErr.Tag()))
	}
	return described
}
