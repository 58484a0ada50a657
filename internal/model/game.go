package model

import (
	"time"
)

// 游戏状态枚举：registering → starting → in_progress → completed/cancelled
const (
	GameStatusRegistering = "registering"
	GameStatusStarting    = "starting"
	GameStatusInProgress  = "in_progress"
	GameStatusCompleted   = "completed"
	GameStatusCancelled   = "cancelled"
)

// 玩家状态枚举：alive → eliminated/winner（单向，不可回退）
const (
	PlayerStatusAlive      = "alive"
	PlayerStatusEliminated = "eliminated"
	PlayerStatusWinner     = "winner"
)

// 回合状态枚举：open（收集预测）→ resolving → resolved
const (
	RoundStatusOpen      = "open"
	RoundStatusResolving = "resolving"
	RoundStatusResolved  = "resolved"
)

// 预测方向枚举
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// NonTerminalStatuses 非终态游戏状态（全局同一时刻至多一场）
var NonTerminalStatuses = []string{GameStatusRegistering, GameStatusStarting, GameStatusInProgress}

// IsTerminal 判断游戏状态是否为终态
func IsTerminal(status string) bool {
	return status == GameStatusCompleted || status == GameStatusCancelled
}

// Game 对应 games 表，一场LDS淘汰赛
// 不变量：PrizePool == 当前在册非免费席位入场费之和；PlayerCount == 在册行数
type Game struct {
	ID                 uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	GameUUID           string     `gorm:"column:game_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	Status             string     `gorm:"column:status;type:varchar(16);default:registering;index;comment:状态：registering/starting/in_progress/completed/cancelled"`
	Asset              string     `gorm:"column:asset;type:varchar(32);not null;comment:预测标的资产"`
	EntryFee           int64      `gorm:"column:entry_fee;type:bigint;not null;comment:入场费（最小货币单位）"`
	ScheduledStartTime time.Time  `gorm:"column:scheduled_start_time;type:timestamp;not null;comment:计划开赛时间"`
	ActualStartTime    *time.Time `gorm:"column:actual_start_time;type:timestamp;comment:实际开赛时间"`
	EndTime            *time.Time `gorm:"column:end_time;type:timestamp;comment:终局时间"`
	CurrentRound       int        `gorm:"column:current_round;type:int;default:0;comment:当前回合号（0=未开赛）"`
	PrizePool          int64      `gorm:"column:prize_pool;type:bigint;default:0;comment:累计奖池"`
	Rake               int64      `gorm:"column:rake;type:bigint;default:0;comment:结算时抽成"`
	SettledAt          *time.Time `gorm:"column:settled_at;type:timestamp;comment:结算完成时间（幂等守卫）"`
	PlayerCount        int        `gorm:"column:player_count;type:int;default:0;comment:在册玩家数"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (Game) TableName() string { return "games" }

// Player 对应 players 表，一场游戏的在册席位
// 不变量：(game_id, wallet_address) 唯一；同一钱包全局至多在一场非终态游戏中 alive
type Player struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerUUID        string    `gorm:"column:player_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	GameID            uint64    `gorm:"column:game_id;type:bigint;not null;uniqueIndex:uk_game_wallet;index;comment:所属游戏ID"`
	WalletAddress     string    `gorm:"column:wallet_address;type:varchar(64);not null;uniqueIndex:uk_game_wallet;index;comment:玩家钱包地址"`
	Status            string    `gorm:"column:status;type:varchar(16);default:alive;comment:状态：alive/eliminated/winner"`
	EliminatedAtRound *int      `gorm:"column:eliminated_at_round;type:int;comment:被淘汰的回合号"`
	Placement         *int      `gorm:"column:placement;type:int;comment:最终名次（1=冠军）"`
	PayoutAmount      int64     `gorm:"column:payout_amount;type:bigint;default:0;comment:结算派奖金额"`
	IsFreeBet         bool      `gorm:"column:is_free_bet;type:boolean;default:false;comment:是否免费席位（不计入奖池）"`
	JoinedAt          time.Time `gorm:"column:joined_at;type:timestamp;default:now();comment:入场时间"`
	UpdatedAt         time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (Player) TableName() string { return "players" }

// Round 对应 rounds 表，一场游戏的一个预测回合
// 不变量：第N+1回合创建前第N回合必须已 resolved；PlayersAliveAfter ≤ PlayersAliveBefore
type Round struct {
	ID                 uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	RoundUUID          string     `gorm:"column:round_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	GameID             uint64     `gorm:"column:game_id;type:bigint;not null;uniqueIndex:uk_game_round;comment:所属游戏ID"`
	RoundNumber        int        `gorm:"column:round_number;type:int;not null;uniqueIndex:uk_game_round;comment:回合号（1起）"`
	Status             string     `gorm:"column:status;type:varchar(16);default:open;comment:状态：open/resolving/resolved"`
	StartPrice         float64    `gorm:"column:start_price;type:numeric(18,8);not null;comment:开盘参考价"`
	EndPrice           *float64   `gorm:"column:end_price;type:numeric(18,8);comment:收盘参考价"`
	Result             *string    `gorm:"column:result;type:varchar(8);comment:回合结果：up/down"`
	PlayersAliveBefore int        `gorm:"column:players_alive_before;type:int;not null;comment:回合前存活人数"`
	PlayersAliveAfter  *int       `gorm:"column:players_alive_after;type:int;comment:回合后存活人数"`
	PredictionDeadline time.Time  `gorm:"column:prediction_deadline;type:timestamp;not null;comment:预测截止时间"`
	StartedAt          time.Time  `gorm:"column:started_at;type:timestamp;default:now();comment:回合开启时间"`
	ResolvedAt         *time.Time `gorm:"column:resolved_at;type:timestamp;comment:回合结算时间"`
}

func (Round) TableName() string { return "rounds" }

// Prediction 对应 predictions 表，一名玩家在某回合的方向预测
// 不变量：(game_id, round_number, wallet_address) 唯一；截止前可幂等覆盖
type Prediction struct {
	ID             uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PredictionUUID string     `gorm:"column:prediction_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	GameID         uint64     `gorm:"column:game_id;type:bigint;not null;uniqueIndex:uk_round_wallet;comment:所属游戏ID"`
	RoundNumber    int        `gorm:"column:round_number;type:int;not null;uniqueIndex:uk_round_wallet;comment:回合号"`
	WalletAddress  string     `gorm:"column:wallet_address;type:varchar(64);not null;uniqueIndex:uk_round_wallet;comment:玩家钱包地址"`
	Prediction     *string    `gorm:"column:prediction;type:varchar(8);comment:预测方向：up/down"`
	Correct        *bool      `gorm:"column:correct;type:boolean;comment:结算后是否命中"`
	Eliminated     *bool      `gorm:"column:eliminated;type:boolean;comment:结算后是否因此淘汰"`
	PredictedAt    *time.Time `gorm:"column:predicted_at;type:timestamp;comment:最后提交时间"`
}

func (Prediction) TableName() string { return "predictions" }
