package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/cricketbingo/board"
	"github.com/wfunc/cricketbingo/broadcast"
	"github.com/wfunc/cricketbingo/daily"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/match"
	"github.com/wfunc/cricketbingo/matchmaking"
	"github.com/wfunc/cricketbingo/monitor"
	"github.com/wfunc/cricketbingo/network"
	"github.com/wfunc/cricketbingo/room"
	bingorpc "github.com/wfunc/cricketbingo/rpc"
	"github.com/wfunc/cricketbingo/services"
	"github.com/wfunc/cricketbingo/session"
)

const heartbeatInterval = 30 * time.Second

// GameServer is the websocket front door. Each connection gets a
// session; packets dispatch to the coordinator, the ranked queue or
// the daily scheduler, and room events pump back over the same
// connection.
type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	coordinator    *room.Coordinator
	sessionManager *session.Manager
	profileService *services.ProfileService
	matchmaker     *matchmaking.Matchmaker
	scheduler      *daily.Scheduler
	hub            *broadcast.Hub
	mon            *monitor.Monitor
	rpcServer      *bingorpc.Server
	shutdownChan   chan struct{}
}

type Deps struct {
	Coordinator    *room.Coordinator
	ProfileService *services.ProfileService
	Matchmaker     *matchmaking.Matchmaker
	Scheduler      *daily.Scheduler
	Hub            *broadcast.Hub
	Monitor        *monitor.Monitor
}

func NewGameServer(addr, rpcAddr string, deps Deps) *GameServer {
	s := &GameServer{
		addr:           addr,
		coordinator:    deps.Coordinator,
		sessionManager: session.NewManager(),
		profileService: deps.ProfileService,
		matchmaker:     deps.Matchmaker,
		scheduler:      deps.Scheduler,
		hub:            deps.Hub,
		mon:            deps.Monitor,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	rpcServer, err := bingorpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := bingorpc.NewAdminService(s.profileService, s.scheduler)
	rpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	go s.roomGaugeLoop()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Bingo server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) roomGaugeLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			if s.mon != nil {
				s.mon.SetActiveRooms(s.coordinator.ActiveRooms())
			}
		}
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.mon != nil {
		s.mon.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		if s.mon != nil {
			s.mon.DecOnlinePlayers()
		}
		uid := sess.UserID()
		if uid != "" {
			s.matchmaker.Cancel(uid)
		}
		if code := sess.DetachRoom(); code != "" && uid != "" {
			s.coordinator.Disconnect(code, uid)
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	if s.mon != nil {
		s.mon.IncMessagesReceived()
		defer func() { s.mon.ObserveMessageLatency(time.Since(start)) }()
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
	case network.MsgTypeLogin:
		s.handleLogin(sess, packet)
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypeQueueRated:
		s.handleQueueRated(sess)
	case network.MsgTypeCancelQueue:
		s.matchmaker.Cancel(sess.UserID())
	case network.MsgTypeJoinDaily:
		s.handleJoinDaily(sess)
	case network.MsgTypeGuess:
		s.handleGuess(sess, packet)
	case network.MsgTypeWildcard:
		s.handleWildcard(sess, packet)
	case network.MsgTypeDailyBoard:
		s.handleDailyBoard(sess, packet)
	case network.MsgTypeLeaderboard:
		s.handleLeaderboard(sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleLogin(sess *session.Session, packet *network.Packet) {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.UserID == "" {
		s.sendError(sess, "bad login payload")
		return
	}
	prof, err := s.profileService.GetOrCreate(req.UserID, req.Name)
	if err != nil {
		s.sendError(sess, "profile unavailable")
		return
	}
	sess.SetIdentity(prof.UserID, prof.Name)
	s.reply(sess, network.MsgTypeLogin, prof)
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	if !s.requireLogin(sess) {
		return
	}
	var req struct {
		Mode       string `json:"mode"`
		Pool       string `json:"pool"`
		Size       int    `json:"size"`
		Difficulty string `json:"difficulty"`
		Capacity   int    `json:"capacity"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad create payload")
		return
	}
	mode := match.Mode(req.Mode)
	if mode != match.ModeSolo && mode != match.ModeFriends {
		s.sendError(sess, "create supports solo and friends modes")
		return
	}

	code, view, err := s.coordinator.CreateRoom(mode, sess.UserID(), sess.Name(), room.Options{
		Pool:       req.Pool,
		Size:       req.Size,
		Difficulty: board.Difficulty(req.Difficulty),
		Capacity:   req.Capacity,
	})
	if err != nil {
		s.sendError(sess, err.Error())
		return
	}
	s.attachRoom(sess, code)
	s.reply(sess, network.MsgTypeRoomState, view)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	if !s.requireLogin(sess) {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Code == "" {
		s.sendError(sess, "bad join payload")
		return
	}

	view, err := s.coordinator.Join(req.Code, sess.UserID(), sess.Name())
	if err != nil {
		s.sendError(sess, err.Error())
		return
	}
	s.attachRoom(sess, req.Code)
	s.reply(sess, network.MsgTypeRoomState, view)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	if code := sess.DetachRoom(); code != "" {
		s.coordinator.Disconnect(code, sess.UserID())
	}
}

func (s *GameServer) handleQueueRated(sess *session.Session) {
	if !s.requireLogin(sess) {
		return
	}
	results, _, err := s.matchmaker.Enqueue(sess.UserID(), sess.Name())
	if err != nil {
		s.sendError(sess, "queue unavailable")
		return
	}
	go func() {
		res, ok := <-results
		if !ok {
			s.sendError(sess, "matchmaking failed, re-queue")
			return
		}
		s.attachRoom(sess, res.Code)
		s.reply(sess, network.MsgTypeMatchFound, res)
	}()
}

func (s *GameServer) handleJoinDaily(sess *session.Session) {
	if !s.requireLogin(sess) {
		return
	}
	code, view, err := s.scheduler.Join(sess.UserID(), sess.Name())
	if err != nil {
		s.sendError(sess, "daily challenge unavailable")
		return
	}
	s.attachRoom(sess, code)
	s.reply(sess, network.MsgTypeRoomState, view)
}

func (s *GameServer) handleGuess(sess *session.Session, packet *network.Packet) {
	code := sess.RoomCode()
	if code == "" {
		s.sendError(sess, "not in a room")
		return
	}
	if s.mon != nil {
		s.mon.IncGuessesSubmitted()
	}
	var req struct {
		Row    int    `json:"row"`
		Col    int    `json:"col"`
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad guess payload")
		return
	}
	res, err := s.coordinator.SubmitGuess(code, sess.UserID(), req.Row, req.Col, req.Answer)
	if err != nil {
		s.sendError(sess, err.Error())
		return
	}
	s.reply(sess, network.MsgTypeGuess, res)
}

func (s *GameServer) handleWildcard(sess *session.Session, packet *network.Packet) {
	code := sess.RoomCode()
	if code == "" {
		s.sendError(sess, "not in a room")
		return
	}
	var req struct {
		Player string `json:"player"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad wildcard payload")
		return
	}
	cells, err := s.coordinator.Wildcard(code, sess.UserID(), req.Player)
	if err != nil {
		s.sendError(sess, err.Error())
		return
	}
	s.reply(sess, network.MsgTypeWildcard, map[string]interface{}{"cells": cells})
}

func (s *GameServer) handleDailyBoard(sess *session.Session, packet *network.Packet) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad leaderboard payload")
		return
	}
	date := req.Date
	if date == "" {
		date = s.scheduler.Today()
	}
	entries, err := s.scheduler.Leaderboard(date)
	if err != nil {
		s.sendError(sess, "leaderboard unavailable")
		return
	}
	s.reply(sess, network.MsgTypeDailyBoard, map[string]interface{}{"date": date, "entries": entries})
}

func (s *GameServer) handleLeaderboard(sess *session.Session) {
	profiles, err := s.profileService.Leaderboard(10)
	if err != nil {
		s.sendError(sess, "leaderboard unavailable")
		return
	}
	s.reply(sess, network.MsgTypeLeaderboard, profiles)
}

// attachRoom subscribes the connection to the room's event stream and
// pumps events out until the subscription is cancelled. A failed write
// releases the subscription itself; cancel is identity-guarded in the
// hub, so this never tears down a replacement subscription.
func (s *GameServer) attachRoom(sess *session.Session, code string) {
	ch, cancel := s.hub.Subscribe(code, sess.UserID())
	sess.AttachRoom(code, cancel)
	go func() {
		defer cancel()
		for ev := range ch {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := sess.Send(network.MsgTypeRoomEvent, data); err != nil {
				return
			}
		}
	}()
}

func (s *GameServer) requireLogin(sess *session.Session) bool {
	if sess.UserID() == "" {
		s.sendError(sess, "login first")
		return false
	}
	return true
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("marshal reply %d: %v", msgID, err)
		return
	}
	sess.Send(msgID, data)
}

func (s *GameServer) sendError(sess *session.Session, msg string) {
	data, _ := json.Marshal(map[string]string{"error": msg})
	sess.Send(network.MsgTypeError, data)
}
