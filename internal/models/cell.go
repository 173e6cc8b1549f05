package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/common"
)

// CellStatus tags the CellContext variant.
type CellStatus string

const (
	CellAvailable    CellStatus = "available"
	CellNoPermission CellStatus = "no_permission"
	CellNotAvailable CellStatus = "not_available"
)

// CellTower describes the serving cell at sampling time.
type CellTower struct {
	CellID         string    `json:"cell_id"`
	AreaCode       string    `json:"area_code"`
	MCC            string    `json:"mcc"`
	MNC            string    `json:"mnc"`
	OperatorName   string    `json:"operator_name"`
	OperatorCode   string    `json:"operator_code"`
	NetworkType    string    `json:"network_type"`
	SignalStrength int       `json:"signal_strength"`
	Timestamp      time.Time `json:"timestamp"`
}

// CellContext is cellular corroboration for a GPS fix. Exactly one variant
// is set: Tower for CellAvailable, Reason for CellNotAvailable, neither for
// CellNoPermission. The zero value is invalid on purpose.
type CellContext struct {
	Status CellStatus `json:"status"`
	Tower  *CellTower `json:"tower,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

func CellFromTower(t CellTower) CellContext {
	return CellContext{Status: CellAvailable, Tower: &t}
}

func CellNoPermissionContext() CellContext {
	return CellContext{Status: CellNoPermission}
}

func CellUnavailable(reason string) CellContext {
	if reason == "" {
		reason = "unknown"
	}
	return CellContext{Status: CellNotAvailable, Reason: reason}
}

func (c CellContext) Validate() error {
	switch c.Status {
	case CellAvailable:
		if c.Tower == nil {
			return fmt.Errorf("%w: available cell context without tower", common.ErrValidation)
		}
	case CellNoPermission:
		if c.Tower != nil {
			return fmt.Errorf("%w: no_permission cell context carries tower", common.ErrValidation)
		}
	case CellNotAvailable:
		if c.Tower != nil || c.Reason == "" {
			return fmt.Errorf("%w: not_available cell context needs a reason and no tower", common.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown cell status %q", common.ErrValidation, c.Status)
	}
	return nil
}

// String renders the context for human-readable artifacts.
func (c CellContext) String() string {
	switch c.Status {
	case CellAvailable:
		t := c.Tower
		return fmt.Sprintf("cell %s (LAC %s, %s-%s, %s %s, %d dBm)",
			t.CellID, t.AreaCode, t.MCC, t.MNC, t.OperatorName, t.NetworkType, t.SignalStrength)
	case CellNoPermission:
		return "cell info: permission denied"
	case CellNotAvailable:
		return "cell info not available: " + c.Reason
	default:
		return "cell info: invalid"
	}
}
