package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ReasonKind 不可用原因类型
type ReasonKind string

const (
	ReasonAlreadyDecided     ReasonKind = "already_decided"
	ReasonUnitOccupied       ReasonKind = "unit_occupied"
	ReasonPropertyAtCapacity ReasonKind = "property_at_capacity"
)

// UnavailableReason 单元不可用的原因，只有本包内的三种实现
type UnavailableReason interface {
	Kind() ReasonKind
	Details() map[string]interface{}
	Message() string
	unavailableReason()
}

// AlreadyDecided 同一单元已有其他 pending/approved 申请
type AlreadyDecided struct {
	Status        string
	ApplicationID uuid.UUID
}

func (AlreadyDecided) Kind() ReasonKind { return ReasonAlreadyDecided }

func (r AlreadyDecided) Details() map[string]interface{} {
	return map[string]interface{}{
		"status":         r.Status,
		"application_id": r.ApplicationID.String(),
	}
}

func (r AlreadyDecided) Message() string {
	return fmt.Sprintf("单元已有状态为 %s 的申请 %s", r.Status, r.ApplicationID)
}

func (AlreadyDecided) unavailableReason() {}

// UnitOccupied 单元已有在租租约
type UnitOccupied struct {
	TenantID uuid.UUID
}

func (UnitOccupied) Kind() ReasonKind { return ReasonUnitOccupied }

func (r UnitOccupied) Details() map[string]interface{} {
	return map[string]interface{}{"tenant_id": r.TenantID.String()}
}

func (r UnitOccupied) Message() string {
	return fmt.Sprintf("单元已被租约 %s 占用", r.TenantID)
}

func (UnitOccupied) unavailableReason() {}

// PropertyAtCapacity 物业已满租
type PropertyAtCapacity struct {
	Occupied int
	Total    int
}

func (PropertyAtCapacity) Kind() ReasonKind { return ReasonPropertyAtCapacity }

func (r PropertyAtCapacity) Details() map[string]interface{} {
	return map[string]interface{}{
		"occupied_units": r.Occupied,
		"total_units":    r.Total,
	}
}

func (r PropertyAtCapacity) Message() string {
	return fmt.Sprintf("物业已满租 (%d/%d)", r.Occupied, r.Total)
}

func (PropertyAtCapacity) unavailableReason() {}

// AvailabilityResult Reason 为 nil 表示可用
type AvailabilityResult struct {
	Reason UnavailableReason
}

func Available() AvailabilityResult {
	return AvailabilityResult{}
}

func Unavailable(reason UnavailableReason) AvailabilityResult {
	return AvailabilityResult{Reason: reason}
}

func (r AvailabilityResult) IsAvailable() bool {
	return r.Reason == nil
}

type reasonPayload struct {
	Kind    ReasonKind             `json:"kind"`
	Details map[string]interface{} `json:"details"`
}

type availabilityPayload struct {
	IsAvailable bool           `json:"is_available"`
	Reason      *reasonPayload `json:"reason,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// MarshalJSON 输出 {is_available, reason?: {kind, details}}
func (r AvailabilityResult) MarshalJSON() ([]byte, error) {
	payload := availabilityPayload{IsAvailable: r.IsAvailable()}
	if r.Reason != nil {
		payload.Reason = &reasonPayload{Kind: r.Reason.Kind(), Details: r.Reason.Details()}
		payload.Message = r.Reason.Message()
	}
	return json.Marshal(payload)
}
