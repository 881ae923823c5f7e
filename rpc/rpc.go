package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/cricketbingo/daily"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/models"
	"github.com/wfunc/cricketbingo/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc. Methods keep
// the net/rpc signature: exported args struct, pointer reply, error
// return.
type AdminService struct {
	profiles  *services.ProfileService
	scheduler *daily.Scheduler
}

func NewAdminService(profiles *services.ProfileService, scheduler *daily.Scheduler) *AdminService {
	return &AdminService{profiles: profiles, scheduler: scheduler}
}

type GetProfileArgs struct {
	UserID string
}

type GetProfileReply struct {
	Profile *models.Profile
}

func (as *AdminService) GetProfile(args *GetProfileArgs, reply *GetProfileReply) error {
	p, err := as.profiles.Get(args.UserID)
	if err != nil {
		return err
	}
	reply.Profile = p
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Profiles []*models.Profile
}

func (as *AdminService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	profiles, err := as.profiles.Leaderboard(limit)
	if err != nil {
		return err
	}
	reply.Profiles = profiles
	return nil
}

type DailyLeaderboardArgs struct {
	Date string // YYYY-MM-DD; empty means today
}

type DailyLeaderboardReply struct {
	Date    string
	Entries []models.DailyEntry
}

func (as *AdminService) DailyLeaderboard(args *DailyLeaderboardArgs, reply *DailyLeaderboardReply) error {
	date := args.Date
	if date == "" {
		date = as.scheduler.Today()
	}
	entries, err := as.scheduler.Leaderboard(date)
	if err != nil {
		return err
	}
	reply.Date = date
	reply.Entries = entries
	return nil
}
