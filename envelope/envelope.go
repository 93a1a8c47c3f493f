// Package envelope renders the {code, data, timestamp} reply shape shared by
// every AYumeRNA endpoint.
package envelope

import (
	"time"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Code      int       `json:"code"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is the data payload used for plain status messages.
type Message struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func New(code int, data any) Body {
	return Body{
		Code:      code,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func Write(c *gin.Context, status int, data any) {
	c.JSON(status, New(status, data))
}

// Abort writes the envelope and stops the handler chain.
func Abort(c *gin.Context, status int, msg string, err error) {
	m := Message{Message: msg}
	if err != nil {
		m.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, New(status, m))
}
