package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/utils"
)

type ErrorAttribute struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type ErrorSchema struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type HTTPSuccessResponse struct {
	Data interface{} `json:"data"`
}

type HTTPErrorResponse struct {
	Error ErrorSchema `json:"error"`
}

type HTTPValidationErrorResponse struct {
	Error      ErrorSchema      `json:"error"`
	Attributes []ErrorAttribute `json:"attributes"`
}

func NewSuccessResponse(data interface{}) HTTPSuccessResponse {
	return HTTPSuccessResponse{
		Data: data,
	}
}

// StatusOf maps an error to the HTTP status the API answers with.
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindValidation:
		return http.StatusUnprocessableEntity
	case errs.KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindGuestUnreachable, errs.KindIncompatibleAgent, errs.KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeOf(kind errs.Kind) string {
	switch kind {
	case errs.KindConflict:
		return utils.ConflictErrCode
	case errs.KindValidation:
		return utils.InvalidErrCode
	case errs.KindQuotaExceeded:
		return utils.QuotaExceededErrCode
	case errs.KindNotFound:
		return utils.NotFoundErrCode
	case errs.KindUnauthorized:
		return utils.UnauthorizedErrCode
	case errs.KindGuestUnreachable, errs.KindIncompatibleAgent, errs.KindInfrastructure:
		return utils.UnavailableErrCode
	default:
		return utils.UnexpectedErrCode
	}
}

func NewErrorResponse(ctx context.Context, err error, msg ...string) HTTPErrorResponse {
	schema := ErrorSchema{
		Code:    utils.UnexpectedErrCode,
		Message: utils.UnexpectedMsg,
	}

	var e *errs.Error
	if errorBag, ok := err.(utils.ErrorBag); ok {
		schema.Code = errorBag.GetCode()

		if len(msg) > 0 {
			schema.Message = msg[0]
		} else if translated := utils.TranslateFunc(ctx, schema.Code, nil); translated != "" {
			schema.Message = translated
		}
	} else if errors.As(err, &e) {
		schema.Code = codeOf(e.Kind)
		schema.Reason = e.Reason
		schema.Message = e.Message

		if len(msg) > 0 {
			schema.Message = msg[0]
		} else if translated := utils.TranslateFunc(ctx, schema.Code, map[string]interface{}{
			"Detail": e.Message,
		}); translated != "" {
			schema.Message = translated
		}
	}

	return HTTPErrorResponse{Error: schema}
}

func NewBodyParserErrorResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Error: ErrorSchema{
			Code:    utils.BodyParserErrCode,
			Message: utils.BodyParserMsg,
		},
	}
}

func NewValidationErrorResponse(errors map[string]string) HTTPValidationErrorResponse {
	var attrs []ErrorAttribute
	for k, v := range errors {
		attrs = append(attrs, ErrorAttribute{
			Name:    k,
			Message: v,
		})
	}

	return HTTPValidationErrorResponse{
		Error: ErrorSchema{
			Code:    utils.ValidationErrCode,
			Message: utils.ValidationMsg,
		},
		Attributes: attrs,
	}
}

func NewAuthorizationError() HTTPErrorResponse {
	return HTTPErrorResponse{
		Error: ErrorSchema{
			Code:    utils.UnauthorizedErrCode,
			Message: utils.UnauthorizedMsg,
		},
	}
}
