package handlers

import (
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"private-lending/internal/errs"
	"private-lending/internal/utils"
)

// respondError maps a service error to its status code and stable code
func respondError(c *gin.Context, err error) {
	status, code := errs.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

// respondBadRequest reports a malformed request body
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    "INVALID_REQUEST",
	})
}

// callerAddress returns the wallet address set by the auth middleware
func callerAddress(c *gin.Context) (common.Address, bool) {
	value, ok := c.Get("user_address")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Authentication required",
			"code":    "MISSING_AUTH",
		})
		return common.Address{}, false
	}
	address, err := utils.ParseAddress(value.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Token carries no valid address",
			"code":    "INVALID_TOKEN",
		})
		return common.Address{}, false
	}
	return address, true
}

// addressParam parses a path parameter as an address, answering 400 when malformed
func addressParam(c *gin.Context, name string) (common.Address, bool) {
	address, err := utils.ParseAddress(c.Param(name))
	if err != nil {
		respondError(c, err)
		return common.Address{}, false
	}
	return address, true
}

// hashParam parses a path parameter as a bytes32, answering 400 when malformed
func hashParam(c *gin.Context, name string) (common.Hash, bool) {
	hash, err := utils.ParseHash(c.Param(name))
	if err != nil {
		respondError(c, err)
		return common.Hash{}, false
	}
	return hash, true
}
