package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/errs"
	"private-lending/internal/utils"
)

// OwnerGate guards owner-only operations. With no owner configured every call is rejected.
type OwnerGate struct {
	owner common.Address
	set   bool
}

// NewOwnerGate builds a gate from the configured owner address
func NewOwnerGate(owner string) OwnerGate {
	owner = strings.TrimSpace(owner)
	if !utils.IsEvmAddress(owner) {
		return OwnerGate{}
	}
	return OwnerGate{owner: common.HexToAddress(owner), set: true}
}

// Owner returns the configured owner
func (g OwnerGate) Owner() common.Address {
	return g.owner
}

// Check returns ErrAuthorization unless caller is the owner
func (g OwnerGate) Check(caller common.Address) error {
	if !g.set || caller != g.owner {
		return fmt.Errorf("%w: %s is not the owner", errs.ErrAuthorization, caller.Hex())
	}
	return nil
}

// Clock returns the current time. Services take one so tests can move time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
