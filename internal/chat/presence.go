package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/repository"
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Registry 进程内在线注册表
// 短暂断线重连在宽限期内不对外产生状态翻动
type Registry struct {
	mu          sync.Mutex
	conns       map[uint64]map[*Client]struct{}
	graceTimers map[uint64]*time.Timer
	grace       time.Duration
	userRepo    repository.UserRepo
	eventBus    bus.Bus
}

func NewRegistry(grace time.Duration, userRepo repository.UserRepo, eventBus bus.Bus) *Registry {
	return &Registry{
		conns:       make(map[uint64]map[*Client]struct{}),
		graceTimers: make(map[uint64]*time.Timer),
		grace:       grace,
		userRepo:    userRepo,
		eventBus:    eventBus,
	}
}

// Register 登记一条已认证连接
func (s *Registry) Register(client *Client) {
	userID := client.UserID()

	s.mu.Lock()
	// 宽限期内回来的连接视为从未下线，不再重播上线事件
	timer, pendingGrace := s.graceTimers[userID]
	if pendingGrace {
		timer.Stop()
		delete(s.graceTimers, userID)
	}

	set, ok := s.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		s.conns[userID] = set
	}
	set[client] = struct{}{}
	wasOffline := !ok && !pendingGrace
	s.mu.Unlock()

	if wasOffline {
		s.setOnline(userID, true)
	}
}

// Unregister 注销连接，最后一条连接断开后启动下线宽限计时
func (s *Registry) Unregister(client *Client) {
	userID := client.UserID()

	s.mu.Lock()
	set, ok := s.conns[userID]
	if ok {
		delete(set, client)
		if len(set) == 0 {
			delete(s.conns, userID)
			if timer, exist := s.graceTimers[userID]; exist {
				timer.Stop()
			}
			s.graceTimers[userID] = time.AfterFunc(s.grace, func() {
				s.onGraceExpired(userID)
			})
		}
	}
	s.mu.Unlock()
}

func (s *Registry) onGraceExpired(userID uint64) {
	s.mu.Lock()
	delete(s.graceTimers, userID)
	_, stillOnline := s.conns[userID]
	s.mu.Unlock()

	if !stillOnline {
		s.setOnline(userID, false)
	}
}

// setOnline 状态落库并广播，均在注册表锁外执行
func (s *Registry) setOnline(userID uint64, online bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.userRepo.UpdatePresence(ctx, userID, online, time.Now()); err != nil {
			log.Error("在线状态落库失败", "user_id", userID, "online", online, "err", err)
		}
	}()

	payload, err := json.Marshal(&dto.EventDTO{
		Type: consts.EventPresenceChanged,
		Data: &dto.PresenceDTO{UserID: userID, Online: online},
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = s.eventBus.Publish(ctx, consts.PresenceChannel, payload); err != nil {
		log.Error("在线状态广播失败", "user_id", userID, "err", err)
	}
}

// ConnectionsFor 返回用户当前的全部连接
func (s *Registry) ConnectionsFor(userID uint64) []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.conns[userID]
	res := make([]*Client, 0, len(set))
	for c := range set {
		res = append(res, c)
	}
	return res
}

// Snapshot 遍历全部在线连接，路由器分发在线状态时使用
func (s *Registry) Snapshot() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*Client, 0)
	for _, set := range s.conns {
		for c := range set {
			res = append(res, c)
		}
	}
	return res
}

// IsOnline 判断用户是否有活跃连接
func (s *Registry) IsOnline(userID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[userID]
	return ok
}

// OnlineCount 在线用户数
func (s *Registry) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
