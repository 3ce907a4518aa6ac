package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// All API responses go through the shared webapi envelope: successes carry
// {code: 0, data}, failures {code, message} with an HTTP 200 transport status.

type apiError struct {
	code uint32
	msg  string
}

func (e apiError) Error() string {
	return e.msg
}

// Code is read by proxyutil when building the failure envelope.
func (e apiError) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return apiError{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// ListData is the shape of every collection payload in the API.
type ListData struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
}

func List(c *gin.Context, list interface{}, total int64) {
	Success(c, ListData{List: list, Total: total})
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}
