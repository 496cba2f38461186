package fsm

//go:generate mockgen -source=fsm.go -destination=mock_state_machine.go -package=fsm

// StateMachine 定义了应用层状态机需要实现的接口。
// 存储层通过这个接口把已提交的 Normal 日志交给业务逻辑，并在压缩/安装快照时整体导出或导入状态。
type StateMachine interface {
	// Apply 应用一条已提交命令并返回应用层定义的响应。
	// 返回 error 表示状态机已无法与日志保持一致，存储层会将其视为致命错误。
	Apply(index uint64, command []byte) (any, error)

	// GetSnapshot 导出状态机的完整状态，编码完全由应用决定。
	GetSnapshot() ([]byte, error)

	// ApplySnapshot 用快照数据完全覆盖当前状态。
	ApplySnapshot(snapshot []byte) error
}
