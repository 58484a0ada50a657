package service_test

import (
	"context"
	"testing"
	"time"

	"LdsEngine/internal/config"
	"LdsEngine/internal/model"
	"LdsEngine/internal/service"

	"github.com/stretchr/testify/require"
)

// testEnv 组装全套服务与内存仓储，入场费10便于口算奖池
type testEnv struct {
	store      *memStore
	gameRepo   *fakeGameRepo
	playerRepo *fakePlayerRepo
	roundRepo  *fakeRoundRepo
	predRepo   *fakePredictionRepo
	payoutRepo *fakePayoutRepo
	oracle     *fakeOracle
	notifier   *fakeNotifier
	cfg        *config.GameConfig

	roster     *service.RosterService
	round      *service.RoundService
	settlement *service.SettlementService
	lifecycle  *service.LifecycleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	env := &testEnv{
		store:      store,
		gameRepo:   &fakeGameRepo{s: store},
		playerRepo: &fakePlayerRepo{s: store},
		roundRepo:  &fakeRoundRepo{s: store},
		predRepo:   &fakePredictionRepo{s: store},
		payoutRepo: &fakePayoutRepo{s: store},
		oracle:     &fakeOracle{},
		notifier:   &fakeNotifier{},
		cfg: &config.GameConfig{
			Asset:            "SOL/USD",
			EntryFee:         10,
			MinEntryFee:      1,
			MinPlayers:       2,
			PredictionWindow: time.Hour,
			TickInterval:     time.Second,
			ScheduleGap:      5 * time.Minute,
			RakeBps:          500,
			PayoutTable:      map[int]int64{1: 10000},
		},
	}
	logger := testLogger()
	env.roster = service.NewRosterService(env.gameRepo, env.playerRepo, logger)
	env.round = service.NewRoundService(env.gameRepo, env.roundRepo, env.predRepo,
		env.roster, env.oracle, env.notifier, env.cfg, logger)
	env.settlement = service.NewSettlementService(env.gameRepo, env.playerRepo,
		env.payoutRepo, env.cfg, logger)
	env.lifecycle = service.NewLifecycleService(env.gameRepo, env.playerRepo,
		env.round, env.settlement, env.notifier, env.cfg, logger)
	return env
}

// newRegisteringGame 创建一场报名中的游戏并让指定钱包入场
func (env *testEnv) newRegisteringGame(t *testing.T, wallets ...string) *model.Game {
	t.Helper()
	ctx := context.Background()
	game, err := env.lifecycle.CreateGame(ctx, env.cfg.EntryFee, time.Now().Add(time.Hour))
	require.NoError(t, err)
	for _, w := range wallets {
		_, err := env.roster.Join(ctx, game.GameUUID, w, false)
		require.NoError(t, err)
	}
	fresh, err := env.gameRepo.GetByID(ctx, game.ID)
	require.NoError(t, err)
	return fresh
}

// backdateSchedule 把计划开赛时间拨到过去，让下一次Tick进入开赛分支
func (env *testEnv) backdateSchedule(gameID uint64) {
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	if g, ok := env.store.games[gameID]; ok {
		g.ScheduledStartTime = time.Now().Add(-time.Minute)
	}
}

// startedGame 创建游戏、入场、推一次Tick直到in_progress且第1回合open
func (env *testEnv) startedGame(t *testing.T, wallets ...string) *model.Game {
	t.Helper()
	ctx := context.Background()
	game := env.newRegisteringGame(t, wallets...)
	env.backdateSchedule(game.ID)
	require.NoError(t, env.lifecycle.Tick(ctx))

	fresh, err := env.gameRepo.GetByID(ctx, game.ID)
	require.NoError(t, err)
	require.Equal(t, model.GameStatusInProgress, fresh.Status)
	require.Equal(t, 1, fresh.CurrentRound)
	return fresh
}

// predict 代若干钱包提交同方向预测
func (env *testEnv) predict(t *testing.T, game *model.Game, roundNumber int, direction string, wallets ...string) {
	t.Helper()
	for _, w := range wallets {
		_, err := env.round.RecordPrediction(context.Background(), game, roundNumber, w, direction)
		require.NoError(t, err)
	}
}
