package service

import (
	"sort"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/looplab/fsm"
)

// wooEvents 工序状态转换表
var wooEvents = fsm.Events{
	{Name: entity.OperationActionStart, Src: []string{entity.WOOStatusPending, entity.WOOStatusReady}, Dst: entity.WOOStatusInProgress},
	{Name: entity.OperationActionPause, Src: []string{entity.WOOStatusInProgress}, Dst: entity.WOOStatusPaused},
	{Name: entity.OperationActionResume, Src: []string{entity.WOOStatusPaused}, Dst: entity.WOOStatusInProgress},
	{Name: entity.OperationActionComplete, Src: []string{entity.WOOStatusInProgress}, Dst: entity.WOOStatusCompleted},
}

// wooMachine builds a throwaway machine positioned at status. The database row
// stays the source of truth; the machine only answers "is this legal".
func wooMachine(status string) *fsm.FSM {
	return fsm.NewFSM(status, wooEvents, fsm.Callbacks{})
}

// CanTransition 当前状态下是否允许该动作
func CanTransition(status, action string) bool {
	return wooMachine(status).Can(action)
}

// AllowedActions 当前状态下可执行的动作（排序后）
func AllowedActions(status string) []string {
	actions := wooMachine(status).AvailableTransitions()
	sort.Strings(actions)
	return actions
}

// SourceStatuses 允许执行该动作的起始状态
func SourceStatuses(action string) []string {
	for _, e := range wooEvents {
		if e.Name == action {
			return e.Src
		}
	}
	return nil
}

// TargetStatus 动作的目标状态
func TargetStatus(action string) (string, bool) {
	for _, e := range wooEvents {
		if e.Name == action {
			return e.Dst, true
		}
	}
	return "", false
}

// IsKnownAction 是否为合法动作
func IsKnownAction(action string) bool {
	_, ok := TargetStatus(action)
	return ok
}
