package httpx

import (
	"github.com/gin-gonic/gin"
)

// Parse binds uri, query and JSON body (uri/form/json tags)
//
// Uri and query binding errors are ignored since most requests only tag some of them;
// a body that does not decode is ErrBadRequest.
func Parse(c *gin.Context, req interface{}) error {
	_ = c.ShouldBindUri(req)
	_ = c.ShouldBindQuery(req)

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return ErrBadRequest.Wrap(err)
		}
	}
	return nil
}
