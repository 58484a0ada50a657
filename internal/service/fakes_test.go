package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"LdsEngine/internal/interfaces"
	"LdsEngine/internal/model"
	"LdsEngine/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// memStore 内存版存储，配合下方各仓储包装类型实现全部仓储接口，
// 服务层测试无需真实数据库
type memStore struct {
	mu          sync.Mutex
	nextID      uint64
	games       map[uint64]*model.Game
	players     []*model.Player
	rounds      []*model.Round
	predictions []*model.Prediction
	payouts     []*model.FailedPayout
}

func newMemStore() *memStore {
	return &memStore{games: make(map[uint64]*model.Game)}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) findRound(gameID uint64, roundNumber int) *model.Round {
	for _, r := range m.rounds {
		if r.GameID == gameID && r.RoundNumber == roundNumber {
			return r
		}
	}
	return nil
}

// setDeadline 测试辅助：把回合预测截止时间拨到指定时刻
func (m *memStore) setDeadline(gameID uint64, roundNumber int, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.findRound(gameID, roundNumber); r != nil {
		r.PredictionDeadline = t
	}
}

func (m *memStore) applyGameFields(g *model.Game, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "current_round":
			g.CurrentRound = v.(int)
		case "actual_start_time":
			t := v.(time.Time)
			g.ActualStartTime = &t
		case "end_time":
			t := v.(time.Time)
			g.EndTime = &t
		}
	}
}

// ---- GameRepository ----

type fakeGameRepo struct{ s *memStore }

func (r *fakeGameRepo) CreateGame(ctx context.Context, game *model.Game) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	game.ID = r.s.id()
	game.CreatedAt = time.Now()
	r.s.games[game.ID] = game
	return nil
}

func (r *fakeGameRepo) GetByUUID(ctx context.Context, gameUUID string) (*model.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.games {
		if g.GameUUID == gameUUID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeGameRepo) GetByID(ctx context.Context, gameID uint64) (*model.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[gameID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGameRepo) GetActiveGame(ctx context.Context) (*model.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Game
	for _, g := range r.s.games {
		if model.IsTerminal(g.Status) {
			continue
		}
		if best == nil || g.ID < best.ID {
			best = g
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeGameRepo) TransitionStatus(ctx context.Context, gameID uint64, from, to string, extra map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[gameID]
	if !ok || g.Status != from {
		return repository.ErrStaleTransition
	}
	g.Status = to
	r.s.applyGameFields(g, extra)
	return nil
}

func (r *fakeGameRepo) UpdateFields(ctx context.Context, gameID uint64, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[gameID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.applyGameFields(g, fields)
	return nil
}

func (r *fakeGameRepo) ListUnsettled(ctx context.Context) ([]*model.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Game
	for _, g := range r.s.games {
		if g.Status == model.GameStatusCompleted && g.SettledAt == nil {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGameRepo) MarkSettled(ctx context.Context, gameID uint64, rake int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[gameID]
	if !ok || g.SettledAt != nil {
		return repository.ErrStaleTransition
	}
	now := time.Now()
	g.SettledAt = &now
	g.Rake = rake
	return nil
}

// ---- PlayerRepository ----

type fakePlayerRepo struct{ s *memStore }

func (r *fakePlayerRepo) JoinGame(ctx context.Context, gameID uint64, player *model.Player, poolDelta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[gameID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if g.Status != model.GameStatusRegistering {
		return repository.ErrGameNotRegistering
	}
	for _, p := range r.s.players {
		if p.GameID == gameID && p.WalletAddress == player.WalletAddress {
			return repository.ErrDuplicateWallet
		}
	}
	player.ID = r.s.id()
	r.s.players = append(r.s.players, player)
	g.PlayerCount++
	g.PrizePool += poolDelta
	return nil
}

func (r *fakePlayerRepo) LeaveGame(ctx context.Context, gameID uint64, wallet string, poolDelta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[gameID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if g.Status != model.GameStatusRegistering {
		return repository.ErrGameNotRegistering
	}
	for i, p := range r.s.players {
		if p.GameID == gameID && p.WalletAddress == wallet {
			r.s.players = append(r.s.players[:i], r.s.players[i+1:]...)
			g.PlayerCount--
			g.PrizePool -= poolDelta
			return nil
		}
	}
	return repository.ErrPlayerNotFound
}

func (r *fakePlayerRepo) GetPlayer(ctx context.Context, gameID uint64, wallet string) (*model.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.players {
		if p.GameID == gameID && p.WalletAddress == wallet {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPlayerNotFound
}

func (r *fakePlayerRepo) ListByGame(ctx context.Context, gameID uint64) ([]*model.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Player
	for _, p := range r.s.players {
		if p.GameID == gameID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePlayerRepo) ListAlive(ctx context.Context, gameID uint64) ([]*model.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Player
	for _, p := range r.s.players {
		if p.GameID == gameID && p.Status == model.PlayerStatusAlive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePlayerRepo) WalletAliveElsewhere(ctx context.Context, wallet string, excludeGameID uint64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.players {
		if p.WalletAddress != wallet || p.GameID == excludeGameID || p.Status != model.PlayerStatusAlive {
			continue
		}
		if g, ok := r.s.games[p.GameID]; ok && !model.IsTerminal(g.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePlayerRepo) MarkEliminated(ctx context.Context, gameID uint64, wallets []string, roundNumber int, placement int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		set[w] = true
	}
	for _, p := range r.s.players {
		if p.GameID == gameID && set[p.WalletAddress] && p.Status == model.PlayerStatusAlive {
			p.Status = model.PlayerStatusEliminated
			rn, pl := roundNumber, placement
			p.EliminatedAtRound = &rn
			p.Placement = &pl
		}
	}
	return nil
}

func (r *fakePlayerRepo) MarkWinner(ctx context.Context, gameID uint64, wallet string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.players {
		if p.GameID == gameID && p.WalletAddress == wallet && p.Status == model.PlayerStatusAlive {
			p.Status = model.PlayerStatusWinner
			one := 1
			p.Placement = &one
			return nil
		}
	}
	return repository.ErrStaleTransition
}

func (r *fakePlayerRepo) RestoreAlive(ctx context.Context, gameID uint64, wallets []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		set[w] = true
	}
	for _, p := range r.s.players {
		if p.GameID == gameID && set[p.WalletAddress] {
			p.Status = model.PlayerStatusAlive
			p.EliminatedAtRound = nil
			p.Placement = nil
		}
	}
	return nil
}

func (r *fakePlayerRepo) SetPayout(ctx context.Context, gameID uint64, wallet string, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.players {
		if p.GameID == gameID && p.WalletAddress == wallet {
			p.PayoutAmount = amount
			return nil
		}
	}
	return repository.ErrPlayerNotFound
}

// ---- RoundRepository ----

type fakeRoundRepo struct{ s *memStore }

func (r *fakeRoundRepo) CreateRound(ctx context.Context, round *model.Round) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round.ID = r.s.id()
	r.s.rounds = append(r.s.rounds, round)
	return nil
}

func (r *fakeRoundRepo) GetRound(ctx context.Context, gameID uint64, roundNumber int) (*model.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing := r.s.findRound(gameID, roundNumber)
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *existing
	return &cp, nil
}

func (r *fakeRoundRepo) ListByGame(ctx context.Context, gameID uint64) ([]*model.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Round
	for _, round := range r.s.rounds {
		if round.GameID == gameID {
			cp := *round
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRoundRepo) BeginResolving(ctx context.Context, gameID uint64, roundNumber int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round := r.s.findRound(gameID, roundNumber)
	if round == nil || round.Status != model.RoundStatusOpen {
		return repository.ErrStaleTransition
	}
	round.Status = model.RoundStatusResolving
	return nil
}

func (r *fakeRoundRepo) FinishResolve(ctx context.Context, gameID uint64, roundNumber int, endPrice float64, result string, aliveAfter int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round := r.s.findRound(gameID, roundNumber)
	if round == nil || round.Status != model.RoundStatusResolving {
		return repository.ErrStaleTransition
	}
	now := time.Now()
	round.Status = model.RoundStatusResolved
	round.EndPrice = &endPrice
	round.Result = &result
	round.PlayersAliveAfter = &aliveAfter
	round.ResolvedAt = &now
	return nil
}

func (r *fakeRoundRepo) ReopenRound(ctx context.Context, gameID uint64, roundNumber int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round := r.s.findRound(gameID, roundNumber)
	if round == nil || round.Status != model.RoundStatusResolving {
		return repository.ErrStaleTransition
	}
	round.Status = model.RoundStatusOpen
	return nil
}

// ---- PredictionRepository ----

type fakePredictionRepo struct{ s *memStore }

func (r *fakePredictionRepo) Upsert(ctx context.Context, p *model.Prediction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round := r.s.findRound(p.GameID, p.RoundNumber)
	if round == nil || round.Status != model.RoundStatusOpen {
		return repository.ErrRoundNotOpen
	}
	for _, existing := range r.s.predictions {
		if existing.GameID == p.GameID && existing.RoundNumber == p.RoundNumber && existing.WalletAddress == p.WalletAddress {
			existing.Prediction = p.Prediction
			existing.PredictedAt = p.PredictedAt
			return nil
		}
	}
	p.ID = r.s.id()
	r.s.predictions = append(r.s.predictions, p)
	return nil
}

func (r *fakePredictionRepo) ListByRound(ctx context.Context, gameID uint64, roundNumber int) ([]*model.Prediction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Prediction
	for _, p := range r.s.predictions {
		if p.GameID == gameID && p.RoundNumber == roundNumber {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePredictionRepo) CountByRound(ctx context.Context, gameID uint64, roundNumber int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, p := range r.s.predictions {
		if p.GameID == gameID && p.RoundNumber == roundNumber && p.Prediction != nil {
			count++
		}
	}
	return count, nil
}

func (r *fakePredictionRepo) MarkOutcome(ctx context.Context, gameID uint64, roundNumber int, wallet string, correct, eliminated bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.predictions {
		if p.GameID == gameID && p.RoundNumber == roundNumber && p.WalletAddress == wallet {
			c, e := correct, eliminated
			p.Correct = &c
			p.Eliminated = &e
			return nil
		}
	}
	return repository.ErrPlayerNotFound
}

func (r *fakePredictionRepo) CreateOutcome(ctx context.Context, p *model.Prediction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	r.s.predictions = append(r.s.predictions, p)
	return nil
}

// ---- FailedPayoutRepository ----

// fakePayoutRepo failWallet非空时对该钱包的入队报错，模拟结算中途失败
type fakePayoutRepo struct {
	s          *memStore
	failWallet string
}

func (r *fakePayoutRepo) Enqueue(ctx context.Context, record *model.FailedPayout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.failWallet != "" && record.Wallet == r.failWallet {
		return errors.New("enqueue unavailable")
	}
	// 与uk_payout_obligation唯一索引一致：重复义务入队为no-op
	for _, rec := range r.s.payouts {
		if rec.GameID == record.GameID && rec.Wallet == record.Wallet && rec.PayoutType == record.PayoutType {
			return nil
		}
	}
	record.ID = r.s.id()
	record.CreatedAt = time.Now()
	r.s.payouts = append(r.s.payouts, record)
	return nil
}

func (r *fakePayoutRepo) ListPending(ctx context.Context, limit int) ([]*model.FailedPayout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.FailedPayout
	for _, rec := range r.s.payouts {
		if rec.Status == model.PayoutStatusPending || rec.Status == model.PayoutStatusRetrying {
			cp := *rec
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakePayoutRepo) ListByWallet(ctx context.Context, wallet string) ([]*model.FailedPayout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.FailedPayout
	for _, rec := range r.s.payouts {
		if rec.Wallet == wallet {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePayoutRepo) ListByGame(ctx context.Context, gameID uint64) ([]*model.FailedPayout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.FailedPayout
	for _, rec := range r.s.payouts {
		if rec.GameID == gameID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePayoutRepo) mark(payoutUUID, status string, bumpRetry bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.payouts {
		if rec.PayoutUUID == payoutUUID {
			rec.Status = status
			if bumpRetry {
				rec.RetryCount++
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePayoutRepo) MarkRetrying(ctx context.Context, payoutUUID string) error {
	return r.mark(payoutUUID, model.PayoutStatusRetrying, true)
}

func (r *fakePayoutRepo) MarkRecovered(ctx context.Context, payoutUUID string) error {
	return r.mark(payoutUUID, model.PayoutStatusRecovered, false)
}

func (r *fakePayoutRepo) MarkFailedPermanent(ctx context.Context, payoutUUID string) error {
	return r.mark(payoutUUID, model.PayoutStatusFailedPermanent, false)
}

// ---- 预言机与通知器 ----

// fakeOracle 按预置序列逐次返回价格，耗尽后重复最后一个；
// Fail为真时模拟不可用，failAfter>0时仅前failAfter次调用成功
type fakeOracle struct {
	mu        sync.Mutex
	prices    []float64
	idx       int
	Fail      bool
	failAfter int
	calls     int
}

func (o *fakeOracle) GetPrice(ctx context.Context, asset string, at time.Time) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.Fail || (o.failAfter > 0 && o.calls > o.failAfter) {
		return 0, context.DeadlineExceeded
	}
	if len(o.prices) == 0 {
		return 100, nil
	}
	p := o.prices[o.idx]
	if o.idx < len(o.prices)-1 {
		o.idx++
	}
	return p, nil
}

func (o *fakeOracle) setFail(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fail = fail
	if !fail {
		o.failAfter = 0
	}
}

// fakeNotifier 记录全部事件
type fakeNotifier struct {
	mu     sync.Mutex
	events []interfaces.GameEvent
}

func (n *fakeNotifier) Notify(ctx context.Context, event interfaces.GameEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) byType(t string) []interfaces.GameEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []interfaces.GameEvent
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
