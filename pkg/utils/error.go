package utils

const (
	NotFoundErrCode      = "404"
	ValidationErrCode    = "509"
	UnexpectedErrCode    = "500"
	UnauthorizedErrCode  = "401"
	BodyParserErrCode    = "400"
	ConflictErrCode      = "409"
	QuotaExceededErrCode = "413"
	InvalidErrCode       = "422"
	UnavailableErrCode   = "503"

	NotFoundMsg     = "Not found!"
	UnexpectedMsg   = "An unexpected error has occurred."
	ValidationMsg   = "The given data was invalid."
	UnauthorizedMsg = "Authentication failed."
	BodyParserMsg   = "The given values could not be parsed."
)

type ErrorBag struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Cause   error  `json:"cause"`
}

func (e ErrorBag) Error() string {
	if e.Cause == nil {
		return e.Message
	}

	return e.Cause.Error()
}

func (e ErrorBag) GetCode() string {
	return e.Code
}
