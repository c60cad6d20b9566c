package response

import (
	"log"
	"net/http"

	"anoa.com/classboard/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// DeviceIDKey is the gin context key set by the device middleware.
const DeviceIDKey = "device_id"

// GetDeviceID retrieves the device ID resolved by the device middleware.
func GetDeviceID(c *gin.Context) (string, error) {
	id := c.GetString(DeviceIDKey)
	if id == "" {
		return "", apperror.ErrUnauthorized
	}
	return id, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code == http.StatusInternalServerError {
		log.Printf("[Internal Error]: %v", err)
	}

	c.JSON(code, gin.H{"error": apperror.UserMessage(err)})
}
