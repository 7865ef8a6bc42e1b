package transfer

// Amount bounds in minor units per operation.
const (
	MinWithdrawAmount int64 = 10
	MaxWithdrawAmount int64 = 250000
	MinSendAmount     int64 = 1
	MaxSendAmount     int64 = 250000
)
