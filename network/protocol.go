package network

const (
	MsgTypeHeartbeat = 1
	MsgTypeLogin     = 2

	MsgTypeCreateRoom  = 101
	MsgTypeJoinRoom    = 102
	MsgTypeLeaveRoom   = 103
	MsgTypeQueueRated  = 104
	MsgTypeCancelQueue = 105
	MsgTypeJoinDaily   = 106

	MsgTypeGuess    = 201
	MsgTypeWildcard = 202

	MsgTypeRoomState   = 301
	MsgTypeRoomEvent   = 302
	MsgTypeMatchFound  = 303
	MsgTypeError       = 304

	MsgTypeDailyBoard  = 401
	MsgTypeLeaderboard = 402
)
